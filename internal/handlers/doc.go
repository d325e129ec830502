// Package handlers implements the HTTP API: catalog queries (random pages,
// ordered pagination, burst groups, anniversaries), file actions (ratings,
// relocation, restore), scan and maintenance triggers, and health probes.
package handlers

// Package watcher keeps the catalog current between scans. It subscribes
// to filesystem notifications under the media root, coalesces bursts of
// raw events per path, and hands settled batches to the scanner in a fixed
// order: deletions, then creations, then modifications.
package watcher

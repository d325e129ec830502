// Package scanner walks the media root and keeps the catalog in sync with
// it: full and scheduled walks, single-file ingest for the watcher, stale
// row sweeps, relocation of files into the quarantine and edit folders, and
// catalog maintenance.
package scanner

// Package database owns the sqlite catalog: media file rows, extracted
// metadata, the geocode cache, scan history and move history. It exposes
// typed accessors instead of the raw connection so query assembly, metric
// recording and the write-preservation rules live in one place.
package database

// Package workers provides worker pool sizing utilities that respect
// container CPU limits. The scanner uses it to size its metadata
// extraction pool.
package workers

//go:build !linux

package scanner

import (
	"os"
	"time"
)

// creationTime falls back to the modification time on platforms without a
// portable birth time in os.FileInfo.
func creationTime(fi os.FileInfo) time.Time {
	return fi.ModTime()
}

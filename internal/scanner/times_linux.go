//go:build linux

package scanner

import (
	"os"
	"syscall"
	"time"
)

// creationTime returns the best available creation timestamp. Linux stat
// has no birth time; inode change time is the closest stable stand-in,
// falling back to mtime.
func creationTime(fi os.FileInfo) time.Time {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		ctime := time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
		if ctime.Before(fi.ModTime()) {
			return ctime
		}
	}
	return fi.ModTime()
}

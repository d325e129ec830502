// Package extract pulls metadata out of media files: EXIF tags and pixel
// dimensions from images, container headers from MP4-family videos. An
// extractor never fails on a file that merely lacks metadata; an error
// means the file itself was unreadable.
package extract

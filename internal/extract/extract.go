package extract

import (
	"path/filepath"
	"strings"
	"time"

	"media-index/internal/mediatypes"
)

// Info is everything an extractor could pull out of a media file. Pointer
// fields stay nil when the file carries no such tag, so callers can tell
// "absent" from "zero".
type Info struct {
	Width       int
	Height      int
	Orientation string
	Duration    float64 // seconds, video only

	CaptureTime   *time.Time
	Latitude      *float64
	Longitude     *float64
	Altitude      *float64
	CameraMake    string
	CameraModel   string
	Rating        *int
	ISO           *int
	Aperture      *float64
	ShutterSpeed  string
	FocalLength   *float64
	FocalLength35 *int
	ExposureComp  string
	MeteringMode  string
	WhiteBalance  string
	Flash         string
}

// Extractor pulls metadata from one media file. Implementations must treat
// unreadable or tag-less files as empty Info, not as errors; an error means
// the file could not be opened at all.
type Extractor interface {
	Extract(path string) (*Info, error)
}

// ForFile routes a path to the image or video extractor by extension.
// Unsupported types get an empty Info.
type ForFile struct {
	Image Extractor
	Video Extractor
}

// Extract dispatches on the file's media type.
func (f *ForFile) Extract(path string) (*Info, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch mediatypes.GetFileType(ext) {
	case mediatypes.FileTypeImage:
		return f.Image.Extract(path)
	case mediatypes.FileTypeVideo:
		return f.Video.Extract(path)
	}
	return &Info{}, nil
}

// RatingWriter writes a star rating into the media file itself so the tag
// survives outside the catalog. Implementations report false when the
// container has no writable rating field.
type RatingWriter interface {
	WriteRating(path string, rating int) (bool, error)
}

// WriteRating routes to the type-appropriate extractor. Extractors without
// write support report false.
func (f *ForFile) WriteRating(path string, rating int) (bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch mediatypes.GetFileType(ext) {
	case mediatypes.FileTypeImage:
		if w, ok := f.Image.(RatingWriter); ok {
			return w.WriteRating(path, rating)
		}
	case mediatypes.FileTypeVideo:
		if w, ok := f.Video.(RatingWriter); ok {
			return w.WriteRating(path, rating)
		}
	}
	return false, nil
}

// orientationLabel classifies dimensions the way the query layer filters
// them.
func orientationLabel(width, height int) string {
	switch {
	case width == 0 || height == 0:
		return ""
	case width > height:
		return "landscape"
	case height > width:
		return "portrait"
	default:
		return "square"
	}
}

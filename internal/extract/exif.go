package extract

import (
	"fmt"
	"image"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"media-index/internal/logging"
)

func init() {
	exif.RegisterParsers(mknote.All...)
}

// ImageExtractor reads EXIF metadata and pixel dimensions from image files.
type ImageExtractor struct{}

// NewImageExtractor returns the EXIF-based image extractor.
func NewImageExtractor() *ImageExtractor {
	return &ImageExtractor{}
}

// WriteRating reports false: the EXIF decoder used here cannot re-encode a
// file, so ratings live in the catalog only.
func (e *ImageExtractor) WriteRating(path string, rating int) (bool, error) {
	return false, nil
}

// Extract opens the image once for its dimensions and once more for EXIF.
// Files without EXIF (screenshots, exports) still get dimensions and an
// orientation label.
func (e *ImageExtractor) Extract(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info := &Info{}

	if cfg, _, err := image.DecodeConfig(f); err == nil {
		info.Width = cfg.Width
		info.Height = cfg.Height
	}

	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("rewinding %s: %w", path, err)
	}

	x, err := exif.Decode(f)
	if err != nil {
		// No EXIF block is the common case for non-camera images.
		logging.Debug("No EXIF in %s: %v", path, err)
		info.Orientation = orientationLabel(info.Width, info.Height)
		return info, nil
	}

	e.readTags(x, info)

	// HEIC and some TIFF variants defeat DecodeConfig; EXIF pixel
	// dimensions are the fallback.
	if info.Width == 0 {
		if v, err := tagInt(x, exif.PixelXDimension); err == nil {
			info.Width = v
		}
	}
	if info.Height == 0 {
		if v, err := tagInt(x, exif.PixelYDimension); err == nil {
			info.Height = v
		}
	}

	// Rotated orientations store dimensions pre-rotation.
	if o, err := tagInt(x, exif.Orientation); err == nil && o >= 5 && o <= 8 {
		info.Width, info.Height = info.Height, info.Width
	}
	info.Orientation = orientationLabel(info.Width, info.Height)

	return info, nil
}

func (e *ImageExtractor) readTags(x *exif.Exif, info *Info) {
	if t, err := x.DateTime(); err == nil {
		info.CaptureTime = &t
	}

	if lat, lng, err := x.LatLong(); err == nil {
		info.Latitude = &lat
		info.Longitude = &lng
		if alt, err := altitude(x); err == nil {
			info.Altitude = &alt
		}
	}

	info.CameraMake = tagString(x, exif.Make)
	info.CameraModel = tagString(x, exif.Model)

	if v, err := tagInt(x, exif.ISOSpeedRatings); err == nil {
		info.ISO = &v
	}
	if v, err := tagRat(x, exif.FNumber); err == nil {
		info.Aperture = &v
	}
	if tag, err := x.Get(exif.ExposureTime); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			info.ShutterSpeed = shutterLabel(num, den)
		}
	}
	if v, err := tagRat(x, exif.FocalLength); err == nil {
		info.FocalLength = &v
	}
	if v, err := tagInt(x, exif.FocalLengthIn35mmFilm); err == nil && v > 0 {
		info.FocalLength35 = &v
	}
	if tag, err := x.Get(exif.ExposureBiasValue); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			info.ExposureComp = fmt.Sprintf("%+.1f EV", float64(num)/float64(den))
		}
	}
	if v, err := tagInt(x, exif.MeteringMode); err == nil {
		info.MeteringMode = meteringLabel(v)
	}
	if v, err := tagInt(x, exif.WhiteBalance); err == nil {
		if v == 0 {
			info.WhiteBalance = "auto"
		} else {
			info.WhiteBalance = "manual"
		}
	}
	if v, err := tagInt(x, exif.Flash); err == nil {
		if v&1 == 1 {
			info.Flash = "fired"
		} else {
			info.Flash = "did not fire"
		}
	}

	// Windows-style star rating; cameras rarely write it but editors do.
	if tag, err := x.Get(exif.FieldName("Rating")); err == nil {
		if v, err := tag.Int(0); err == nil && v >= 0 && v <= 5 {
			info.Rating = &v
		}
	}
}

func altitude(x *exif.Exif) (float64, error) {
	v, err := tagRat(x, exif.GPSAltitude)
	if err != nil {
		return 0, err
	}
	if ref, err := tagInt(x, exif.GPSAltitudeRef); err == nil && ref == 1 {
		v = -v
	}
	return v, nil
}

func tagString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return s
}

func tagInt(x *exif.Exif, name exif.FieldName) (int, error) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, err
	}
	return tag.Int(0)
}

func tagRat(x *exif.Exif, name exif.FieldName) (float64, error) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, err
	}
	num, den, err := tag.Rat2(0)
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return 0, fmt.Errorf("zero denominator in %s", name)
	}
	return float64(num) / float64(den), nil
}

// shutterLabel renders an exposure as photographers write it: fractions
// below a second, decimal seconds above.
func shutterLabel(num, den int64) string {
	v := float64(num) / float64(den)
	if v >= 1 {
		return fmt.Sprintf("%gs", v)
	}
	if num == 1 {
		return fmt.Sprintf("1/%ds", den)
	}
	return fmt.Sprintf("1/%.0fs", float64(den)/float64(num))
}

func meteringLabel(v int) string {
	switch v {
	case 1:
		return "average"
	case 2:
		return "center-weighted"
	case 3:
		return "spot"
	case 4:
		return "multi-spot"
	case 5:
		return "pattern"
	case 6:
		return "partial"
	default:
		return "unknown"
	}
}

package extract

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"media-index/internal/logging"
)

// VideoExtractor reads duration, dimensions and creation time from the
// container headers of MP4-family files (.mp4, .mov, .m4v). Other video
// containers fall back to an empty Info so the file still gets indexed.
type VideoExtractor struct{}

// NewVideoExtractor returns the container-header video extractor.
func NewVideoExtractor() *VideoExtractor {
	return &VideoExtractor{}
}

// WriteRating reports false: there is no portable rating atom across the
// containers this extractor reads.
func (e *VideoExtractor) WriteRating(path string, rating int) (bool, error) {
	return false, nil
}

// Extract parses the moov box if the container has one.
func (e *VideoExtractor) Extract(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info := &Info{}
	if err := parseBoxes(f, info); err != nil {
		// Malformed or non-ISO containers are indexed without metadata.
		logging.Debug("No container metadata in %s: %v", path, err)
	}
	info.Orientation = orientationLabel(info.Width, info.Height)
	return info, nil
}

// Seconds between the QuickTime epoch (1904-01-01) and the Unix epoch.
const quicktimeEpochOffset = 2082844800

// parseBoxes walks top-level ISO base media boxes looking for moov.
func parseBoxes(r io.ReadSeeker, info *Info) error {
	for {
		size, boxType, headerLen, err := readBoxHeader(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if boxType == "moov" {
			return parseMoov(r, size-headerLen, info)
		}
		if size < headerLen {
			return fmt.Errorf("box %q with impossible size %d", boxType, size)
		}
		if _, err := r.Seek(size-headerLen, io.SeekCurrent); err != nil {
			return err
		}
	}
}

func parseMoov(r io.ReadSeeker, remaining int64, info *Info) error {
	for remaining > 0 {
		size, boxType, headerLen, err := readBoxHeader(r)
		if err != nil {
			return err
		}
		if size < headerLen || size > remaining {
			return fmt.Errorf("box %q overruns its parent", boxType)
		}
		body := size - headerLen

		switch boxType {
		case "mvhd":
			if err := parseMvhd(r, body, info); err != nil {
				return err
			}
		case "trak":
			if err := parseTrak(r, body, info); err != nil {
				return err
			}
		default:
			if _, err := r.Seek(body, io.SeekCurrent); err != nil {
				return err
			}
		}
		remaining -= size
	}
	return nil
}

// parseMvhd reads the movie header: creation time, timescale, duration.
func parseMvhd(r io.ReadSeeker, body int64, info *Info) error {
	buf := make([]byte, body)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	if len(buf) < 4 {
		return fmt.Errorf("short mvhd")
	}

	version := buf[0]
	var creation, duration uint64
	var timescale uint32
	switch version {
	case 0:
		if len(buf) < 20 {
			return fmt.Errorf("short mvhd v0")
		}
		creation = uint64(binary.BigEndian.Uint32(buf[4:8]))
		timescale = binary.BigEndian.Uint32(buf[12:16])
		duration = uint64(binary.BigEndian.Uint32(buf[16:20]))
	case 1:
		if len(buf) < 32 {
			return fmt.Errorf("short mvhd v1")
		}
		creation = binary.BigEndian.Uint64(buf[4:12])
		timescale = binary.BigEndian.Uint32(buf[20:24])
		duration = binary.BigEndian.Uint64(buf[24:32])
	default:
		return fmt.Errorf("unknown mvhd version %d", version)
	}

	if timescale > 0 {
		info.Duration = float64(duration) / float64(timescale)
	}
	if creation > quicktimeEpochOffset {
		t := time.Unix(int64(creation)-quicktimeEpochOffset, 0)
		info.CaptureTime = &t
	}
	return nil
}

// parseTrak scans one track for its tkhd, keeping the first track that
// carries a visual size.
func parseTrak(r io.ReadSeeker, remaining int64, info *Info) error {
	for remaining > 0 {
		size, boxType, headerLen, err := readBoxHeader(r)
		if err != nil {
			return err
		}
		if size < headerLen || size > remaining {
			return fmt.Errorf("box %q overruns trak", boxType)
		}
		body := size - headerLen

		if boxType == "tkhd" && info.Width == 0 {
			if err := parseTkhd(r, body, info); err != nil {
				return err
			}
		} else {
			if _, err := r.Seek(body, io.SeekCurrent); err != nil {
				return err
			}
		}
		remaining -= size
	}
	return nil
}

// parseTkhd reads the track header's 16.16 fixed-point width and height
// from the end of the box.
func parseTkhd(r io.ReadSeeker, body int64, info *Info) error {
	buf := make([]byte, body)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	if len(buf) < 8 {
		return fmt.Errorf("short tkhd")
	}

	w := binary.BigEndian.Uint32(buf[len(buf)-8:]) >> 16
	h := binary.BigEndian.Uint32(buf[len(buf)-4:]) >> 16
	if w > 0 && h > 0 {
		info.Width = int(w)
		info.Height = int(h)
	}
	return nil
}

// readBoxHeader returns the total box size, its type and the header length
// consumed. Size 1 selects the 64-bit large-size form; size 0 (box extends
// to EOF) is not supported and treated as EOF.
func readBoxHeader(r io.Reader) (int64, string, int64, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, "", 0, err
	}

	size := int64(binary.BigEndian.Uint32(hdr[:4]))
	boxType := string(hdr[4:8])

	switch size {
	case 0:
		return 0, boxType, 0, io.EOF
	case 1:
		var large [8]byte
		if _, err := io.ReadFull(r, large[:]); err != nil {
			return 0, "", 0, err
		}
		return int64(binary.BigEndian.Uint64(large[:])), boxType, 16, nil
	default:
		return size, boxType, 8, nil
	}
}

package extract

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOrientationLabel(t *testing.T) {
	tests := []struct {
		w, h int
		want string
	}{
		{1920, 1080, "landscape"},
		{1080, 1920, "portrait"},
		{800, 800, "square"},
		{0, 600, ""},
		{600, 0, ""},
	}
	for _, tt := range tests {
		if got := orientationLabel(tt.w, tt.h); got != tt.want {
			t.Errorf("orientationLabel(%d, %d) = %q, want %q", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestShutterLabel(t *testing.T) {
	tests := []struct {
		num, den int64
		want     string
	}{
		{1, 250, "1/250s"},
		{1, 60, "1/60s"},
		{2, 1, "2s"},
		{10, 1600, "1/160s"},
	}
	for _, tt := range tests {
		if got := shutterLabel(tt.num, tt.den); got != tt.want {
			t.Errorf("shutterLabel(%d, %d) = %q, want %q", tt.num, tt.den, got, tt.want)
		}
	}
}

func writeTestPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return path
}

func TestImageExtractorDimensionsWithoutExif(t *testing.T) {
	path := writeTestPNG(t, 120, 80)

	info, err := NewImageExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if info.Width != 120 || info.Height != 80 {
		t.Errorf("dimensions = %dx%d, want 120x80", info.Width, info.Height)
	}
	if info.Orientation != "landscape" {
		t.Errorf("orientation = %q, want landscape", info.Orientation)
	}
	if info.CaptureTime != nil {
		t.Error("capture time should be nil without EXIF")
	}
	if info.Rating != nil {
		t.Error("rating should be nil without EXIF")
	}
}

func TestImageExtractorMissingFile(t *testing.T) {
	if _, err := NewImageExtractor().Extract("/nonexistent/nope.jpg"); err == nil {
		t.Error("expected error for missing file")
	}
}

// box assembles one ISO media box with the given payload.
func box(boxType string, payload []byte) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, uint32(8+len(payload)))
	b.WriteString(boxType)
	b.Write(payload)
	return b.Bytes()
}

// fixed1616 renders an integer as 16.16 fixed point.
func fixed1616(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v<<16)
	return b[:]
}

func writeTestMP4(t *testing.T, timescale, duration, creation uint32, w, h uint32) string {
	t.Helper()

	mvhd := make([]byte, 100)
	binary.BigEndian.PutUint32(mvhd[4:8], creation)
	binary.BigEndian.PutUint32(mvhd[12:16], timescale)
	binary.BigEndian.PutUint32(mvhd[16:20], duration)

	tkhd := make([]byte, 84)
	copy(tkhd[76:80], fixed1616(w))
	copy(tkhd[80:84], fixed1616(h))

	moov := append(box("mvhd", mvhd), box("trak", box("tkhd", tkhd))...)
	data := append(box("ftyp", []byte("isom0000")), box("moov", moov)...)

	path := filepath.Join(t.TempDir(), "test.mp4")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing mp4: %v", err)
	}
	return path
}

func TestVideoExtractorParsesMoov(t *testing.T) {
	creation := uint32(time.Date(2023, 7, 4, 12, 0, 0, 0, time.UTC).Unix() + quicktimeEpochOffset)
	path := writeTestMP4(t, 1000, 5500, creation, 1920, 1080)

	info, err := NewVideoExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if info.Duration != 5.5 {
		t.Errorf("duration = %v, want 5.5", info.Duration)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", info.Width, info.Height)
	}
	if info.Orientation != "landscape" {
		t.Errorf("orientation = %q, want landscape", info.Orientation)
	}
	if info.CaptureTime == nil {
		t.Fatal("capture time missing")
	}
	got := info.CaptureTime.UTC()
	if got.Year() != 2023 || got.Month() != time.July || got.Day() != 4 {
		t.Errorf("capture time = %v, want 2023-07-04", got)
	}
}

func TestVideoExtractorGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.mp4")
	if err := os.WriteFile(path, []byte("not a real container"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	// Unparseable containers index with empty metadata, not an error.
	info, err := NewVideoExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if info.Duration != 0 || info.CaptureTime != nil {
		t.Errorf("expected empty info, got %+v", info)
	}
}

type stubExtractor struct {
	called int
	info   *Info
}

func (s *stubExtractor) Extract(path string) (*Info, error) {
	s.called++
	return s.info, nil
}

func TestForFileRouting(t *testing.T) {
	img := &stubExtractor{info: &Info{Width: 1}}
	vid := &stubExtractor{info: &Info{Duration: 2}}
	ff := &ForFile{Image: img, Video: vid}

	if _, err := ff.Extract("/media/a.JPG"); err != nil {
		t.Fatalf("image route: %v", err)
	}
	if _, err := ff.Extract("/media/b.mov"); err != nil {
		t.Fatalf("video route: %v", err)
	}
	info, err := ff.Extract("/media/c.txt")
	if err != nil {
		t.Fatalf("other route: %v", err)
	}

	if img.called != 1 {
		t.Errorf("image extractor called %d times, want 1", img.called)
	}
	if vid.called != 1 {
		t.Errorf("video extractor called %d times, want 1", vid.called)
	}
	if info.Width != 0 || info.Duration != 0 {
		t.Errorf("unsupported type should yield empty info, got %+v", info)
	}
}

func TestWriteRatingUnsupported(t *testing.T) {
	f := &ForFile{Image: NewImageExtractor(), Video: NewVideoExtractor()}
	for _, p := range []string{"a.jpg", "b.mp4", "c.txt"} {
		ok, err := f.WriteRating(p, 5)
		if err != nil || ok {
			t.Errorf("WriteRating(%s) = %v, %v; want false, nil", p, ok, err)
		}
	}
}

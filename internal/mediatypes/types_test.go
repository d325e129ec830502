package mediatypes

import (
	"testing"
)

func TestGetFileType(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		want FileType
	}{
		{
			name: "JPEG image",
			ext:  ".jpg",
			want: FileTypeImage,
		},
		{
			name: "PNG image",
			ext:  ".png",
			want: FileTypeImage,
		},
		{
			name: "HEIC image",
			ext:  ".heic",
			want: FileTypeImage,
		},
		{
			name: "MP4 video",
			ext:  ".mp4",
			want: FileTypeVideo,
		},
		{
			name: "MKV video",
			ext:  ".mkv",
			want: FileTypeVideo,
		},
		{
			name: "Unknown extension",
			ext:  ".xyz",
			want: FileTypeOther,
		},
		{
			name: "Empty extension",
			ext:  "",
			want: FileTypeOther,
		},
		{
			name: "Text file",
			ext:  ".txt",
			want: FileTypeOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetFileType(tt.ext)
			if got != tt.want {
				t.Errorf("GetFileType(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestIsMediaFile(t *testing.T) {
	if !IsMediaFile(".jpg") || !IsMediaFile(".mov") {
		t.Error("supported extensions must count as media")
	}
	if IsMediaFile(".pdf") || IsMediaFile("") {
		t.Error("unsupported extensions must not count as media")
	}
}

func TestIsSpecialFolder(t *testing.T) {
	if !IsSpecialFolder(QuarantineFolder) || !IsSpecialFolder(EditFolder) {
		t.Error("reserved folders must be special")
	}
	if IsSpecialFolder("2024") || IsSpecialFolder("_Other") {
		t.Error("ordinary folders must not be special")
	}
}

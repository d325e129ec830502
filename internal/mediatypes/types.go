package mediatypes

// FileType represents the type of an indexed media file.
type FileType string

const (
	// FileTypeImage represents a supported image file.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a supported video file.
	FileTypeVideo FileType = "video"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// Special folder names inside the watched root. Files relocated here are
// excluded from scans and queries.
const (
	// QuarantineFolder receives files removed via the delete operation.
	QuarantineFolder = "_Junk"
	// EditFolder receives files marked for external editing.
	EditFolder = "_Edit"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".heic": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
	".m4v":  true,
	".mpg":  true,
	".mpeg": true,
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns FileTypeOther if the extension is not recognized.
func GetFileType(ext string) FileType {
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	return FileTypeOther
}

// IsMediaFile returns true if the extension represents a supported media file.
func IsMediaFile(ext string) bool {
	return GetFileType(ext) != FileTypeOther
}

// IsSpecialFolder reports whether the directory name is one of the folders
// reserved for relocated files.
func IsSpecialFolder(name string) bool {
	return name == QuarantineFolder || name == EditFolder
}

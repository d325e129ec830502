package database

import (
	"time"

	"media-index/internal/mediatypes"
)

// MediaFile is one row of the media_files table: a single indexed file.
// Identity is the absolute path.
type MediaFile struct {
	ID           int64               `json:"id"`
	Path         string              `json:"path"`
	Filename     string              `json:"filename"`
	Folder       string              `json:"folder"`
	Type         mediatypes.FileType `json:"fileType"`
	Size         int64               `json:"fileSize"`
	ModifiedTime time.Time           `json:"modifiedTime"`
	CreatedTime  time.Time           `json:"createdTime"`
	LastIndexed  time.Time           `json:"lastIndexed"`
	Width        int                 `json:"width,omitempty"`
	Height       int                 `json:"height,omitempty"`
	Orientation  string              `json:"orientation,omitempty"`
	Duration     float64             `json:"duration,omitempty"`
	IsFavorite   bool                `json:"isFavorite"`
	Rating       int                 `json:"rating"`
	RatedAt      time.Time           `json:"ratedAt,omitempty"`
}

// Metadata is the 1:1 companion row holding extracted metadata for a file.
// Pointer fields are nil when the extractor did not supply a value.
type Metadata struct {
	FileID          int64      `json:"fileId"`
	CaptureTime     *time.Time `json:"captureTime,omitempty"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	Altitude        *float64   `json:"altitude,omitempty"`
	LocationName    string     `json:"locationName,omitempty"`
	LocationCity    string     `json:"locationCity,omitempty"`
	LocationState   string     `json:"locationState,omitempty"`
	LocationCountry string     `json:"locationCountry,omitempty"`
	CameraMake      string     `json:"cameraMake,omitempty"`
	CameraModel     string     `json:"cameraModel,omitempty"`
	Rating          *int       `json:"rating,omitempty"`
	IsFavorite      *bool      `json:"isFavorite,omitempty"`
	ISO             *int       `json:"iso,omitempty"`
	Aperture        *float64   `json:"aperture,omitempty"`
	ShutterSpeed    string     `json:"shutterSpeed,omitempty"`
	FocalLength     *float64   `json:"focalLength,omitempty"`
	FocalLength35   *int       `json:"focalLength35mm,omitempty"`
	ExposureComp    string     `json:"exposureCompensation,omitempty"`
	MeteringMode    string     `json:"meteringMode,omitempty"`
	WhiteBalance    string     `json:"whiteBalance,omitempty"`
	Flash           string     `json:"flash,omitempty"`
	BurstSize       int        `json:"burstSize,omitempty"`
	BurstFavorites  []string   `json:"burstFavorites,omitempty"`
}

// Place holds a reverse-geocoded location.
type Place struct {
	Name    string `json:"locationName"`
	City    string `json:"locationCity"`
	State   string `json:"locationState"`
	Country string `json:"locationCountry"`
}

// Item is a query result row: the media file joined with the metadata fields
// consumers care about, plus the derived geocoding flags.
type Item struct {
	MediaFile
	CaptureTime     *time.Time `json:"captureTime,omitempty"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	LocationName    string     `json:"locationName,omitempty"`
	LocationCity    string     `json:"locationCity,omitempty"`
	LocationState   string     `json:"locationState,omitempty"`
	LocationCountry string     `json:"locationCountry,omitempty"`
	CameraMake      string     `json:"cameraMake,omitempty"`
	CameraModel     string     `json:"cameraModel,omitempty"`
	HasCoordinates  bool       `json:"hasCoordinates"`
	IsGeocoded      bool       `json:"isGeocoded"`
}

// ScanRecord is one row of scan_history: a single walk invocation.
type ScanRecord struct {
	ID           int64     `json:"id"`
	FolderPath   string    `json:"folderPath"`
	ScanType     string    `json:"scanType"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime,omitempty"`
	FilesAdded   int       `json:"filesAdded"`
	FilesUpdated int       `json:"filesUpdated"`
	Status       string    `json:"status"`
}

// Scan statuses.
const (
	ScanStatusRunning   = "running"
	ScanStatusCompleted = "completed"
	ScanStatusFailed    = "failed"
	ScanStatusAborted   = "aborted"
)

// MoveRecord is one row of move_history: a relocation to a special folder.
type MoveRecord struct {
	ID           int64     `json:"id"`
	OriginalPath string    `json:"originalPath"`
	NewPath      string    `json:"newPath"`
	MovedAt      time.Time `json:"movedAt"`
	Reason       string    `json:"reason,omitempty"`
	Restored     bool      `json:"restored"`
	RestoredAt   time.Time `json:"restoredAt,omitempty"`
}

// CatalogStats summarizes the catalog for the stats endpoint.
type CatalogStats struct {
	TotalFiles          int       `json:"totalFiles"`
	TotalImages         int       `json:"totalImages"`
	TotalVideos         int       `json:"totalVideos"`
	TotalFolders        int       `json:"totalFolders"`
	TotalFavorites      int       `json:"totalFavorites"`
	FilesWithLocation   int       `json:"filesWithLocation"`
	GeocodeCacheEntries int       `json:"geocodeCacheEntries"`
	GeocodeHits         int64     `json:"geocodeHits"`
	GeocodeMisses       int64     `json:"geocodeMisses"`
	LastScanTime        time.Time `json:"lastScanTime,omitempty"`
	ScanDuration        string    `json:"scanDuration,omitempty"`
}

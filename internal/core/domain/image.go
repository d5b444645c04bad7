package domain

import "time"

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

type Image struct {
	ID              int64            `json:"id"`
	Filename        string           `json:"filename"`
	Filepath        string           `json:"filepath"`
	FileSize        int64            `json:"file_size,omitempty"`
	Format          string           `json:"format,omitempty"`
	FileHash        string           `json:"file_hash,omitempty"`
	Width           int              `json:"width,omitempty"`
	Height          int              `json:"height,omitempty"`
	CameraMake      string           `json:"camera_make,omitempty"`
	CameraModel     string           `json:"camera_model,omitempty"`
	GPSLatitude     *float64         `json:"gps_latitude,omitempty"`
	GPSLongitude    *float64         `json:"gps_longitude,omitempty"`
	DateTaken       *time.Time       `json:"date_taken,omitempty"`
	LocationCountry string           `json:"location_country,omitempty"`
	LocationName    string           `json:"location_name,omitempty"`
	ThumbnailPath   string           `json:"thumbnail_path,omitempty"`
	Keywords        []string         `json:"keywords"`
	Categories      []string         `json:"categories"`
	Editorial       bool             `json:"editorial"`
	Status          ProcessingStatus `json:"status"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Metadata is the extractor's view of a single file. GPS and location
// fields are independently optional; their absence is not an error.
type Metadata struct {
	Filename        string
	Filepath        string
	FileSize        int64
	FileHash        string
	Format          string
	Width           int
	Height          int
	CameraMake      string
	CameraModel     string
	GPSLatitude     *float64
	GPSLongitude    *float64
	DateTaken       *time.Time
	LocationCountry string
	LocationName    string
}

type DuplicateKind string

const (
	DuplicateNone     DuplicateKind = ""
	DuplicateContent  DuplicateKind = "content"
	DuplicateFilepath DuplicateKind = "filepath"
	DuplicateFilename DuplicateKind = "filename"
)

// DuplicateCheck classifies a candidate file against stored records.
// Kind is set for filename collisions even though IsDuplicate stays false;
// the collision only suggests a disambiguated name.
type DuplicateCheck struct {
	IsDuplicate       bool
	Kind              DuplicateKind
	ExistingID        int64
	SuggestedFilename string
}

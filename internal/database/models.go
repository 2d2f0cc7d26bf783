package database

import (
	"time"

	"gorm.io/gorm"
)

// MediaLibrary represents a registered library root that scans run against.
type MediaLibrary struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Path      string         `json:"path" gorm:"uniqueIndex;not null"`
	Type      string         `json:"type"` // "movie", "tv", "music", "mixed"
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// MediaFileRecord is a known media file in the inventory. LibraryRoot plus
// Path form the composite identity used for duplicate detection.
type MediaFileRecord struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	CallerID      string    `json:"caller_id" gorm:"index"`
	LibraryRoot   string    `json:"library_root" gorm:"index:idx_file_identity"`
	Path          string    `json:"path" gorm:"index:idx_file_identity"`
	Name          string    `json:"name"`
	Extension     string    `json:"extension"`
	MediaCategory string    `json:"media_category"`
	Size          int64     `json:"size"`
	ModifiedTime  time.Time `json:"modified_time"`
	ScanID        string    `json:"scan_id" gorm:"index"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MediaDirectoryRecord is a known directory in the inventory, keyed the same
// way as files but held in a separate table so file/directory identities
// never collide.
type MediaDirectoryRecord struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	CallerID      string    `json:"caller_id" gorm:"index"`
	LibraryRoot   string    `json:"library_root" gorm:"index:idx_dir_identity"`
	Path          string    `json:"path" gorm:"index:idx_dir_identity"`
	Name          string    `json:"name"`
	MediaCategory string    `json:"media_category"`
	Size          int64     `json:"size"`
	ModifiedTime  time.Time `json:"modified_time"`
	ScanID        string    `json:"scan_id" gorm:"index"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ScanSummary is the persisted record of a finished scan.
type ScanSummary struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	ScanID           string     `json:"scan_id" gorm:"uniqueIndex"`
	LibraryRoot      string     `json:"library_root"`
	Status           string     `json:"status"`
	TotalItems       int64      `json:"total_items"`
	ProcessedItems   int64      `json:"processed_items"`
	FilesFound       int        `json:"files_found"`
	DirectoriesFound int        `json:"directories_found"`
	DuplicatesFound  int        `json:"duplicates_found"`
	ErrorCount       int        `json:"error_count"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Package scanner implements the asynchronous library scanning engine:
// two-pass directory traversal with live progress tracking, cooperative
// cancellation, and composite-key duplicate reconciliation.
package scanner

import (
	"errors"
	"sync"
	"time"
)

// ScanStatus represents the lifecycle state of a scan operation
type ScanStatus string

const (
	StatusScanning  ScanStatus = "scanning"
	StatusCompleted ScanStatus = "completed"
	StatusError     ScanStatus = "error"
	StatusCancelled ScanStatus = "cancelled"
)

// Terminal reports whether the status is one a scan cannot leave.
func (s ScanStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// ItemKind distinguishes file and directory items
type ItemKind string

const (
	KindFile      ItemKind = "file"
	KindDirectory ItemKind = "directory"
)

// MediaCategory is the coarse semantic classification of an item
type MediaCategory string

const (
	CategoryMovie   MediaCategory = "movie"
	CategorySeries  MediaCategory = "series"
	CategorySeason  MediaCategory = "season"
	CategoryEpisode MediaCategory = "episode"
	CategoryUnknown MediaCategory = "unknown"
)

// Sentinel errors surfaced by StartScan and status lookups.
var (
	ErrTooManyScans = errors.New("maximum concurrent scans reached")
	ErrPathRejected = errors.New("path not allowed")
	ErrScanNotFound = errors.New("scan not found")
)

// Error kinds recorded in a scan's error list.
const (
	ErrKindFile           = "file_error"
	ErrKindDirectory      = "directory_error"
	ErrKindScan           = "scan_error"
	ErrKindMetadata       = "metadata_error"
	ErrKindDuplicateCheck = "duplicate_check_error"
	ErrKindPersistence    = "persistence_error"
)

// ScanError is a single non-fatal error recorded during a scan.
type ScanError struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Path      string    `json:"path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ItemMetadata holds the basic filesystem metadata gathered for every item.
type ItemMetadata struct {
	Size         int64     `json:"size"`
	CreatedTime  time.Time `json:"created_time"`
	ModifiedTime time.Time `json:"modified_time"`
	Permissions  string    `json:"permissions"`
}

// TechnicalMetadata is the best-effort technical summary of a media file.
type TechnicalMetadata struct {
	Container  string  `json:"container,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	BitRate    int64   `json:"bit_rate,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	VideoCodec string  `json:"video_codec,omitempty"`
	AudioCodec string  `json:"audio_codec,omitempty"`

	// Tag data, populated for audio files
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Year   int    `json:"year,omitempty"`
}

// ParsedInfo is the result of heuristic filename parsing.
type ParsedInfo struct {
	Title   string `json:"title"`
	Year    *int   `json:"year,omitempty"`
	Season  *int   `json:"season,omitempty"`
	Episode *int   `json:"episode,omitempty"`
}

// DiscoveredItem is a single file or directory found during a scan.
type DiscoveredItem struct {
	Kind          ItemKind           `json:"kind"`
	Path          string             `json:"path"`
	Name          string             `json:"name"`
	Extension     string             `json:"extension,omitempty"`
	MediaCategory MediaCategory      `json:"media_category"`
	Metadata      ItemMetadata       `json:"metadata"`
	MediaMetadata *TechnicalMetadata `json:"media_metadata,omitempty"`
	ParsedInfo    *ParsedInfo        `json:"parsed_info,omitempty"`
}

// ExistingItem is a previously known inventory entry. LibraryRoot is the
// root the item was originally discovered under, which is not necessarily
// the root of the current scan.
type ExistingItem struct {
	LibraryRoot   string        `json:"library_root"`
	Path          string        `json:"path"`
	MediaCategory MediaCategory `json:"media_category"`
	Size          int64         `json:"size"`
	ModifiedTime  time.Time     `json:"modified_time"`
}

// FieldDifference records one field whose value changed between a discovered
// item and its existing inventory entry.
type FieldDifference struct {
	Field         string      `json:"field"`
	NewValue      interface{} `json:"new_value"`
	ExistingValue interface{} `json:"existing_value"`
}

// ItemDifference groups the field differences for one duplicate item.
type ItemDifference struct {
	Path        string            `json:"path"`
	Kind        ItemKind          `json:"kind"`
	Differences []FieldDifference `json:"differences"`
}

// DuplicateReport summarizes reconciliation of a scan against inventory.
type DuplicateReport struct {
	DuplicatesFound int              `json:"duplicates_found"`
	NewItems        int              `json:"new_items"`
	Differences     []ItemDifference `json:"differences"`
}

// PathVerification is the result of checking one path for existence and
// accessibility.
type PathVerification struct {
	Path       string        `json:"path"`
	Exists     bool          `json:"exists"`
	Accessible bool          `json:"accessible"`
	Metadata   *ItemMetadata `json:"metadata,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// ScanOptions controls a single scan operation.
type ScanOptions struct {
	// ExtractMetadata enables best-effort technical metadata extraction
	// for media files. Slower.
	ExtractMetadata bool `json:"extract_metadata"`

	// CheckDuplicates enables reconciliation against existing inventory
	// after the walk completes.
	CheckDuplicates bool `json:"check_duplicates"`

	// CallerID scopes online inventory lookups.
	CallerID string `json:"caller_id,omitempty"`

	// ExistingFiles and ExistingDirectories, when supplied, switch
	// duplicate checking to offline mode: no inventory lookup is made and
	// the provided snapshots are reconciled against directly.
	ExistingFiles       []ExistingItem `json:"existing_files,omitempty"`
	ExistingDirectories []ExistingItem `json:"existing_directories,omitempty"`
}

// OfflineInventory reports whether the caller supplied an inventory snapshot.
func (o ScanOptions) OfflineInventory() bool {
	return o.ExistingFiles != nil || o.ExistingDirectories != nil
}

// ScanProgress tracks the complete state of one scan operation. Counts and
// results are mutated only by the scan's own goroutine; external callers
// read snapshots or request cancellation through the accessors, which is
// what keeps status polling cheap.
type ScanProgress struct {
	mu sync.RWMutex

	scanID           string
	libraryRoot      string
	totalItems       int64
	processedItems   int64
	currentPath      string
	status           ScanStatus
	errors           []ScanError
	startTime        time.Time
	endTime          *time.Time
	filesFound       int
	directoriesFound int
	scanResults      []DiscoveredItem
	duplicateReport  *DuplicateReport
}

// NewScanProgress creates a progress record in scanning status.
func NewScanProgress(scanID, libraryRoot string) *ScanProgress {
	return &ScanProgress{
		scanID:      scanID,
		libraryRoot: libraryRoot,
		currentPath: libraryRoot,
		status:      StatusScanning,
		startTime:   time.Now(),
	}
}

// ScanID returns the scan identifier.
func (p *ScanProgress) ScanID() string { return p.scanID }

// LibraryRoot returns the root path the scan runs against.
func (p *ScanProgress) LibraryRoot() string { return p.libraryRoot }

// Status returns the current lifecycle status.
func (p *ScanProgress) Status() ScanStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Cancelled reports whether cancellation has been requested. Checked
// cooperatively by the walk before each entry.
func (p *ScanProgress) Cancelled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status == StatusCancelled
}

// Cancel transitions a scanning record to cancelled and stamps the end time.
// Returns false when the scan is already terminal.
func (p *ScanProgress) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusScanning {
		return false
	}
	p.status = StatusCancelled
	now := time.Now()
	p.endTime = &now
	return true
}

// SetTotal records the item count established by the counting pass.
func (p *ScanProgress) SetTotal(total int64) {
	p.mu.Lock()
	p.totalItems = total
	p.mu.Unlock()
}

// SetCurrentPath records the directory the walk last entered.
func (p *ScanProgress) SetCurrentPath(path string) {
	p.mu.Lock()
	p.currentPath = path
	p.mu.Unlock()
}

// IncrementProcessed bumps the processed counter by exactly one.
func (p *ScanProgress) IncrementProcessed() {
	p.mu.Lock()
	p.processedItems++
	p.mu.Unlock()
}

// AddError appends a non-fatal error entry.
func (p *ScanProgress) AddError(kind, message, path string) {
	p.mu.Lock()
	p.errors = append(p.errors, ScanError{
		Kind:      kind,
		Message:   message,
		Path:      path,
		Timestamp: time.Now(),
	})
	p.mu.Unlock()
}

// SetResults installs the discovered items and recomputes the found counts.
func (p *ScanProgress) SetResults(results []DiscoveredItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scanResults = results
	p.filesFound = 0
	p.directoriesFound = 0
	for _, item := range results {
		switch item.Kind {
		case KindFile:
			p.filesFound++
		case KindDirectory:
			p.directoriesFound++
		}
	}
}

// Results returns the current discovered items.
func (p *ScanProgress) Results() []DiscoveredItem {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]DiscoveredItem, len(p.scanResults))
	copy(out, p.scanResults)
	return out
}

// SetDuplicateReport attaches the reconciliation report.
func (p *ScanProgress) SetDuplicateReport(report *DuplicateReport) {
	p.mu.Lock()
	p.duplicateReport = report
	p.mu.Unlock()
}

// Finish transitions to a terminal status and stamps the end time. A record
// that was cancelled mid-walk keeps its cancelled status.
func (p *ScanProgress) Finish(status ScanStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.Terminal() {
		return
	}
	p.status = status
	now := time.Now()
	p.endTime = &now
}

// EndTime returns the completion time, or nil while scanning.
func (p *ScanProgress) EndTime() *time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.endTime
}

// ProgressSnapshot is a consistent, read-only view of a scan's state.
type ProgressSnapshot struct {
	ScanID           string           `json:"scan_id"`
	LibraryRoot      string           `json:"library_root"`
	TotalItems       int64            `json:"total_items"`
	ProcessedItems   int64            `json:"processed_items"`
	Percentage       float64          `json:"percentage"`
	CurrentPath      string           `json:"current_path"`
	Status           ScanStatus       `json:"status"`
	Errors           []ScanError      `json:"errors"`
	StartTime        time.Time        `json:"start_time"`
	EndTime          *time.Time       `json:"end_time,omitempty"`
	ElapsedSeconds   float64          `json:"elapsed_seconds"`
	FilesFound       int              `json:"files_found"`
	DirectoriesFound int              `json:"directories_found"`
	DuplicateReport  *DuplicateReport `json:"duplicate_report,omitempty"`
}

// Snapshot returns a point-in-time copy safe to serve to pollers. Results are
// intentionally excluded; fetch them separately once the scan completes.
func (p *ScanProgress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := ProgressSnapshot{
		ScanID:           p.scanID,
		LibraryRoot:      p.libraryRoot,
		TotalItems:       p.totalItems,
		ProcessedItems:   p.processedItems,
		CurrentPath:      p.currentPath,
		Status:           p.status,
		Errors:           append([]ScanError{}, p.errors...),
		StartTime:        p.startTime,
		EndTime:          p.endTime,
		FilesFound:       p.filesFound,
		DirectoriesFound: p.directoriesFound,
		DuplicateReport:  p.duplicateReport,
	}
	if p.totalItems > 0 {
		snap.Percentage = float64(p.processedItems) / float64(p.totalItems) * 100
	}
	end := time.Now()
	if p.endTime != nil {
		end = *p.endTime
	}
	snap.ElapsedSeconds = end.Sub(p.startTime).Seconds()
	return snap
}

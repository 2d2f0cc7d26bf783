package scanner

import (
	"context"
	"fmt"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/openmediakit/librarian/internal/database"
)

// InventoryLookup is the port used in online mode to fetch the previously
// known inventory for duplicate checking.
type InventoryLookup interface {
	ExistingFiles(ctx context.Context, callerID string) ([]ExistingItem, error)
	ExistingDirectories(ctx context.Context, callerID string) ([]ExistingItem, error)
}

// GormInventory implements InventoryLookup and result persistence against
// the relational inventory store.
type GormInventory struct {
	db *gorm.DB
}

// NewGormInventory creates an inventory service on the given handle.
func NewGormInventory(db *gorm.DB) *GormInventory {
	return &GormInventory{db: db}
}

// ExistingFiles returns all known files, scoped to the caller when set.
func (inv *GormInventory) ExistingFiles(ctx context.Context, callerID string) ([]ExistingItem, error) {
	var records []database.MediaFileRecord
	q := inv.db.WithContext(ctx)
	if callerID != "" {
		q = q.Where("caller_id = ?", callerID)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load existing files: %w", err)
	}

	items := make([]ExistingItem, len(records))
	for i, rec := range records {
		items[i] = ExistingItem{
			LibraryRoot:   rec.LibraryRoot,
			Path:          rec.Path,
			MediaCategory: MediaCategory(rec.MediaCategory),
			Size:          rec.Size,
			ModifiedTime:  rec.ModifiedTime,
		}
	}
	return items, nil
}

// ExistingDirectories returns all known directories, scoped to the caller
// when set.
func (inv *GormInventory) ExistingDirectories(ctx context.Context, callerID string) ([]ExistingItem, error) {
	var records []database.MediaDirectoryRecord
	q := inv.db.WithContext(ctx)
	if callerID != "" {
		q = q.Where("caller_id = ?", callerID)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load existing directories: %w", err)
	}

	items := make([]ExistingItem, len(records))
	for i, rec := range records {
		items[i] = ExistingItem{
			LibraryRoot:   rec.LibraryRoot,
			Path:          rec.Path,
			MediaCategory: MediaCategory(rec.MediaCategory),
			Size:          rec.Size,
			ModifiedTime:  rec.ModifiedTime,
		}
	}
	return items, nil
}

// ScannedFiles returns persisted file records, optionally filtered by scan
// id and library root, ordered by path with limit/offset pagination.
func (inv *GormInventory) ScannedFiles(ctx context.Context, scanID, libraryRoot string, limit, offset int) ([]database.MediaFileRecord, error) {
	var records []database.MediaFileRecord
	q := inv.scannedQuery(ctx, scanID, libraryRoot, limit, offset)
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load scanned files: %w", err)
	}
	return records, nil
}

// ScannedDirectories returns persisted directory records with the same
// filtering and pagination as ScannedFiles.
func (inv *GormInventory) ScannedDirectories(ctx context.Context, scanID, libraryRoot string, limit, offset int) ([]database.MediaDirectoryRecord, error) {
	var records []database.MediaDirectoryRecord
	q := inv.scannedQuery(ctx, scanID, libraryRoot, limit, offset)
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load scanned directories: %w", err)
	}
	return records, nil
}

func (inv *GormInventory) scannedQuery(ctx context.Context, scanID, libraryRoot string, limit, offset int) *gorm.DB {
	q := inv.db.WithContext(ctx).Order("path")
	if scanID != "" {
		q = q.Where("scan_id = ?", scanID)
	}
	if libraryRoot != "" {
		q = q.Where("library_root = ?", libraryRoot)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

// SaveResults persists discovered items into the inventory tables.
func (inv *GormInventory) SaveResults(ctx context.Context, scanID, libraryRoot, callerID string, items []DiscoveredItem) error {
	var files []database.MediaFileRecord
	var dirs []database.MediaDirectoryRecord

	for _, item := range items {
		switch item.Kind {
		case KindFile:
			files = append(files, database.MediaFileRecord{
				CallerID:      callerID,
				LibraryRoot:   libraryRoot,
				Path:          item.Path,
				Name:          item.Name,
				Extension:     filepath.Ext(item.Name),
				MediaCategory: string(item.MediaCategory),
				Size:          item.Metadata.Size,
				ModifiedTime:  item.Metadata.ModifiedTime,
				ScanID:        scanID,
			})
		case KindDirectory:
			dirs = append(dirs, database.MediaDirectoryRecord{
				CallerID:      callerID,
				LibraryRoot:   libraryRoot,
				Path:          item.Path,
				Name:          item.Name,
				MediaCategory: string(item.MediaCategory),
				Size:          item.Metadata.Size,
				ModifiedTime:  item.Metadata.ModifiedTime,
				ScanID:        scanID,
			})
		}
	}

	return inv.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(files) > 0 {
			if err := tx.CreateInBatches(files, 100).Error; err != nil {
				return fmt.Errorf("failed to save file records: %w", err)
			}
		}
		if len(dirs) > 0 {
			if err := tx.CreateInBatches(dirs, 100).Error; err != nil {
				return fmt.Errorf("failed to save directory records: %w", err)
			}
		}
		return nil
	})
}

// SaveSummary persists a record of a finished scan.
func (inv *GormInventory) SaveSummary(ctx context.Context, snap ProgressSnapshot) error {
	summary := database.ScanSummary{
		ScanID:           snap.ScanID,
		LibraryRoot:      snap.LibraryRoot,
		Status:           string(snap.Status),
		TotalItems:       snap.TotalItems,
		ProcessedItems:   snap.ProcessedItems,
		FilesFound:       snap.FilesFound,
		DirectoriesFound: snap.DirectoriesFound,
		ErrorCount:       len(snap.Errors),
		StartedAt:        snap.StartTime,
		CompletedAt:      snap.EndTime,
	}
	if snap.DuplicateReport != nil {
		summary.DuplicatesFound = snap.DuplicateReport.DuplicatesFound
	}
	if err := inv.db.WithContext(ctx).Create(&summary).Error; err != nil {
		return fmt.Errorf("failed to save scan summary: %w", err)
	}
	return nil
}

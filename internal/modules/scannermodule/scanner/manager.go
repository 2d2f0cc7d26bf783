package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openmediakit/librarian/internal/config"
	"github.com/openmediakit/librarian/internal/database"
	"github.com/openmediakit/librarian/internal/events"
	"github.com/openmediakit/librarian/internal/logger"
	"github.com/openmediakit/librarian/internal/utils"
)

// Manager orchestrates scanning operations: it enforces the concurrency
// ceiling and path security at start, runs each scan on its own goroutine
// drawing from a bounded worker pool, applies duplicate reconciliation and
// filtering, and owns the registry of progress records.
type Manager struct {
	registry    *Registry
	walker      *Walker
	reconciler  *Reconciler
	inventory   *GormInventory
	pathChecker PathChecker
	fileMeta    FileMetadataProvider
	eventBus    events.EventBus
	monitor     *SystemLoadMonitor
	fileMonitor *FileMonitor

	maxConcurrent int
	workerSlots   chan struct{}
	sweepInterval time.Duration
	completedTTL  time.Duration

	// startMu serializes admission so the concurrency ceiling cannot be
	// raced past by simultaneous StartScan calls.
	startMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager wires a scanner manager from configuration. db may be nil, in
// which case online inventory lookups and result persistence are disabled
// and duplicate checking works in offline mode only.
func NewManager(cfg *config.ScannerConfig, db *gorm.DB, eventBus events.EventBus) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	classifier := NewClassifier(cfg.VideoExtensions, cfg.AudioExtensions, cfg.SubtitleExtensions)
	extractor := NewCompositeExtractor(
		NewFFprobeExtractor(cfg.FFprobePath, cfg.MetadataTimeout),
		NewTagExtractor(cfg.AudioExtensions),
		cfg.VideoExtensions,
	)
	monitor := NewSystemLoadMonitor()

	var inventory *GormInventory
	if db != nil {
		inventory = NewGormInventory(db)
	}

	var fileMonitor *FileMonitor
	if cfg.EnableFileMonitor {
		fm, err := NewFileMonitor(eventBus)
		if err != nil {
			logger.Error("failed to create file monitor", "error", err)
		} else {
			fileMonitor = fm
		}
	}

	maxConcurrent := cfg.MaxConcurrentScans
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	workers := monitor.RecommendedWorkers(cfg.WorkerCount)

	m := &Manager{
		registry:      NewRegistry(),
		walker:        NewWalker(classifier, OSFileMetadata{}, extractor, cfg.ExcludedDirNames, cfg.MaxScanDepth),
		reconciler:    NewReconciler(cfg.CaseInsensitiveKeys),
		inventory:     inventory,
		pathChecker:   utils.NewPathResolver(cfg.AllowedBasePaths),
		fileMeta:      OSFileMetadata{},
		eventBus:      eventBus,
		monitor:       monitor,
		fileMonitor:   fileMonitor,
		maxConcurrent: maxConcurrent,
		workerSlots:   make(chan struct{}, workers),
		sweepInterval: cfg.SweepInterval,
		completedTTL:  cfg.CompletedScanTTL,
		ctx:           ctx,
		cancel:        cancel,
	}

	if m.sweepInterval > 0 {
		m.wg.Add(1)
		go m.sweepLoop()
	}
	return m
}

// StartScan begins an asynchronous scan of libraryRoot and returns its id.
// All failure information past this point arrives via GetStatus.
func (m *Manager) StartScan(libraryRoot string, opts ScanOptions) (string, error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	if m.registry.ActiveCount() >= m.maxConcurrent {
		return "", ErrTooManyScans
	}
	if !m.pathChecker.IsAllowed(libraryRoot) {
		return "", fmt.Errorf("%w: %s", ErrPathRejected, libraryRoot)
	}

	scanID := uuid.NewString()
	progress := NewScanProgress(scanID, libraryRoot)
	m.registry.Add(progress)

	if m.eventBus != nil {
		startEvent := events.NewSystemEvent(
			events.EventScanStarted,
			"Library Scan Started",
			fmt.Sprintf("Starting scan of %s", libraryRoot),
		)
		startEvent.Data = map[string]interface{}{
			"scan_id": scanID,
			"path":    libraryRoot,
		}
		m.eventBus.PublishAsync(startEvent)
	}

	m.wg.Add(1)
	go m.runScan(progress, opts)

	logger.Info("scan started", "scan_id", scanID, "path", libraryRoot)
	return scanID, nil
}

// runScan executes one scan end-to-end on its own goroutine.
func (m *Manager) runScan(progress *ScanProgress, opts ScanOptions) {
	defer m.wg.Done()

	// Take a slot from the bounded pool; the pool parallelizes across
	// scans, never within one scan's walk.
	select {
	case m.workerSlots <- struct{}{}:
	case <-m.ctx.Done():
		progress.Cancel()
		return
	}
	defer func() { <-m.workerSlots }()

	defer m.finishScan(progress)

	total, err := m.walker.CountItems(progress.LibraryRoot())
	if err != nil {
		progress.AddError(ErrKindScan, err.Error(), progress.LibraryRoot())
		progress.Finish(StatusError)
		return
	}
	progress.SetTotal(total)

	results, err := m.walker.Walk(m.ctx, progress.LibraryRoot(), opts.ExtractMetadata, progress)
	if err != nil {
		progress.AddError(ErrKindScan, err.Error(), progress.LibraryRoot())
		progress.Finish(StatusError)
		return
	}
	progress.SetResults(results)

	if progress.Cancelled() {
		return
	}

	if opts.CheckDuplicates {
		m.checkDuplicates(progress, opts)
	}

	if m.inventory != nil {
		if err := m.inventory.SaveResults(m.ctx, progress.ScanID(), progress.LibraryRoot(), opts.CallerID, progress.Results()); err != nil {
			logger.Warn("failed to persist scan results", "scan_id", progress.ScanID(), "error", err)
			progress.AddError(ErrKindPersistence, err.Error(), "")
		}
	}

	progress.Finish(StatusCompleted)
}

// checkDuplicates materializes the existing-inventory snapshot (offline from
// options, online through the inventory port) and applies reconciliation.
// Failures here never fail the scan.
func (m *Manager) checkDuplicates(progress *ScanProgress, opts ScanOptions) {
	var existingFiles, existingDirs []ExistingItem

	if opts.OfflineInventory() {
		existingFiles = opts.ExistingFiles
		existingDirs = opts.ExistingDirectories
	} else {
		if m.inventory == nil {
			progress.AddError(ErrKindDuplicateCheck, "no inventory store configured for online duplicate checking", "")
			return
		}
		var err error
		existingFiles, err = m.inventory.ExistingFiles(m.ctx, opts.CallerID)
		if err == nil {
			existingDirs, err = m.inventory.ExistingDirectories(m.ctx, opts.CallerID)
		}
		if err != nil {
			logger.Error("duplicate checking failed", "scan_id", progress.ScanID(), "error", err)
			progress.AddError(ErrKindDuplicateCheck, err.Error(), "")
			return
		}
	}

	items := progress.Results()
	report := m.reconciler.Reconcile(items, progress.LibraryRoot(), existingFiles, existingDirs)
	progress.SetDuplicateReport(report)

	// Only new items are retained for downstream persistence.
	if report.DuplicatesFound > 0 {
		filtered := m.reconciler.FilterDuplicates(items, progress.LibraryRoot(), existingFiles, existingDirs)
		progress.SetResults(filtered)
		logger.Info("filtered duplicate items from scan results",
			"scan_id", progress.ScanID(),
			"original", len(items),
			"kept", len(filtered))
	}
}

// finishScan publishes the terminal event, persists the summary, and starts
// file monitoring for completed scans.
func (m *Manager) finishScan(progress *ScanProgress) {
	snap := progress.Snapshot()

	if m.inventory != nil {
		if err := m.inventory.SaveSummary(context.Background(), snap); err != nil {
			logger.Warn("failed to persist scan summary", "scan_id", snap.ScanID, "error", err)
		}
	}

	if m.eventBus != nil {
		var event events.Event
		switch snap.Status {
		case StatusCompleted:
			event = events.NewSystemEvent(
				events.EventScanCompleted,
				"Library Scan Completed",
				fmt.Sprintf("Scan of %s completed", snap.LibraryRoot),
			)
		case StatusCancelled:
			event = events.NewSystemEvent(
				events.EventScanCancelled,
				"Library Scan Cancelled",
				fmt.Sprintf("Scan of %s cancelled", snap.LibraryRoot),
			)
		default:
			event = events.NewSystemEvent(
				events.EventScanFailed,
				"Library Scan Failed",
				fmt.Sprintf("Scan of %s failed", snap.LibraryRoot),
			)
		}
		event.Data = map[string]interface{}{
			"scan_id":           snap.ScanID,
			"path":              snap.LibraryRoot,
			"status":            string(snap.Status),
			"total_items":       snap.TotalItems,
			"processed_items":   snap.ProcessedItems,
			"files_found":       snap.FilesFound,
			"directories_found": snap.DirectoriesFound,
			"errors":            len(snap.Errors),
		}
		m.eventBus.PublishAsync(event)
	}

	if snap.Status == StatusCompleted && m.fileMonitor != nil {
		if err := m.fileMonitor.Watch(snap.LibraryRoot); err != nil {
			logger.Warn("failed to start file monitoring", "path", snap.LibraryRoot, "error", err)
		}
	}

	logger.Info("scan finished",
		"scan_id", snap.ScanID,
		"status", string(snap.Status),
		"total_items", snap.TotalItems,
		"processed_items", snap.ProcessedItems,
		"elapsed_seconds", snap.ElapsedSeconds)
}

// GetStatus returns a snapshot of a scan's progress.
func (m *Manager) GetStatus(scanID string) (ProgressSnapshot, error) {
	progress := m.registry.Get(scanID)
	if progress == nil {
		return ProgressSnapshot{}, ErrScanNotFound
	}
	return progress.Snapshot(), nil
}

// GetResults returns the discovered items for a scan. Partial results of a
// cancelled scan are served as-is.
func (m *Manager) GetResults(scanID string) ([]DiscoveredItem, error) {
	progress := m.registry.Get(scanID)
	if progress == nil {
		return nil, ErrScanNotFound
	}
	return progress.Results(), nil
}

// StopScan requests cancellation of a running scan. Returns false when the
// scan is unknown or already terminal.
func (m *Manager) StopScan(scanID string) bool {
	stopped := m.registry.Cancel(scanID)
	if stopped {
		logger.Info("scan cancelled", "scan_id", scanID)
	}
	return stopped
}

// ListScans returns snapshots of all scans, optionally filtered by status.
func (m *Manager) ListScans(statusFilter ScanStatus) []ProgressSnapshot {
	return m.registry.List(statusFilter)
}

// CleanupScan removes a scan record regardless of its status.
func (m *Manager) CleanupScan(scanID string) bool {
	return m.registry.Remove(scanID)
}

// CleanupOlderThan evicts terminal scans older than maxAge.
func (m *Manager) CleanupOlderThan(maxAge time.Duration) int {
	return m.registry.Sweep(maxAge)
}

// VerifyPaths checks each path for existence and accessibility. Paths
// outside the allowed bases are reported inaccessible without touching the
// filesystem.
func (m *Manager) VerifyPaths(paths []string) []PathVerification {
	results := make([]PathVerification, 0, len(paths))
	for _, p := range paths {
		if !m.pathChecker.IsAllowed(p) {
			results = append(results, PathVerification{Path: p, Error: "path not allowed"})
			continue
		}
		meta, err := m.fileMeta.Stat(p)
		if err != nil {
			results = append(results, PathVerification{Path: p, Error: err.Error()})
			continue
		}
		results = append(results, PathVerification{
			Path:       p,
			Exists:     true,
			Accessible: true,
			Metadata:   &meta,
		})
	}
	return results
}

// ScannedFiles returns persisted file records from the inventory store.
func (m *Manager) ScannedFiles(ctx context.Context, scanID, libraryRoot string, limit, offset int) ([]database.MediaFileRecord, error) {
	if m.inventory == nil {
		return nil, fmt.Errorf("no inventory store configured")
	}
	return m.inventory.ScannedFiles(ctx, scanID, libraryRoot, limit, offset)
}

// ScannedDirectories returns persisted directory records from the inventory
// store.
func (m *Manager) ScannedDirectories(ctx context.Context, scanID, libraryRoot string, limit, offset int) ([]database.MediaDirectoryRecord, error) {
	if m.inventory == nil {
		return nil, fmt.Errorf("no inventory store configured")
	}
	return m.inventory.ScannedDirectories(ctx, scanID, libraryRoot, limit, offset)
}

// ActiveScanCount returns how many scans are currently running.
func (m *Manager) ActiveScanCount() int {
	return m.registry.ActiveCount()
}

// SystemInfo returns host load information for status reporting.
func (m *Manager) SystemInfo() map[string]interface{} {
	return m.monitor.GetSystemInfo()
}

// DirtyLibraries returns watched library roots with changes since their
// last scan.
func (m *Manager) DirtyLibraries() []string {
	if m.fileMonitor == nil {
		return nil
	}
	return m.fileMonitor.DirtyLibraries()
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.registry.Sweep(m.completedTTL)
		case <-m.ctx.Done():
			return
		}
	}
}

// Shutdown cancels running scans, waits for them to settle, and evicts all
// terminal records.
func (m *Manager) Shutdown() {
	for _, snap := range m.registry.List(StatusScanning) {
		m.registry.Cancel(snap.ScanID)
	}
	m.cancel()
	m.wg.Wait()

	m.monitor.Stop()
	if m.fileMonitor != nil {
		m.fileMonitor.Stop()
	}
	m.registry.Sweep(0)
	logger.Info("scanner manager stopped")
}

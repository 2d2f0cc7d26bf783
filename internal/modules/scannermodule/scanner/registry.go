package scanner

import (
	"sync"
	"time"

	"github.com/openmediakit/librarian/internal/logger"
)

// Registry owns every ScanProgress record, active and finished. Records stay
// resident until explicitly removed or swept so callers can poll results
// after completion.
type Registry struct {
	mu    sync.RWMutex
	scans map[string]*ScanProgress
}

// NewRegistry creates an empty scan registry.
func NewRegistry() *Registry {
	return &Registry{scans: make(map[string]*ScanProgress)}
}

// Add registers a new progress record.
func (r *Registry) Add(progress *ScanProgress) {
	r.mu.Lock()
	r.scans[progress.ScanID()] = progress
	r.mu.Unlock()
}

// Get returns the record for a scan id, or nil when unknown.
func (r *Registry) Get(scanID string) *ScanProgress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scans[scanID]
}

// Remove deletes a record regardless of status.
func (r *Registry) Remove(scanID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scans[scanID]; !ok {
		return false
	}
	delete(r.scans, scanID)
	return true
}

// List returns snapshots of all records, optionally filtered by status.
func (r *Registry) List(statusFilter ScanStatus) []ProgressSnapshot {
	r.mu.RLock()
	records := make([]*ScanProgress, 0, len(r.scans))
	for _, p := range r.scans {
		records = append(records, p)
	}
	r.mu.RUnlock()

	out := make([]ProgressSnapshot, 0, len(records))
	for _, p := range records {
		snap := p.Snapshot()
		if statusFilter != "" && snap.Status != statusFilter {
			continue
		}
		out = append(out, snap)
	}
	return out
}

// ActiveCount returns the number of scans still in scanning status.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, p := range r.scans {
		if p.Status() == StatusScanning {
			count++
		}
	}
	return count
}

// Cancel requests cancellation of a running scan. Returns false when the
// scan is unknown or already terminal.
func (r *Registry) Cancel(scanID string) bool {
	r.mu.RLock()
	progress := r.scans[scanID]
	r.mu.RUnlock()
	if progress == nil {
		return false
	}
	return progress.Cancel()
}

// Sweep removes every terminal record whose end time is older than maxAge.
// A maxAge of zero evicts all terminal records immediately.
func (r *Registry) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, p := range r.scans {
		if !p.Status().Terminal() {
			continue
		}
		end := p.EndTime()
		if end == nil {
			continue
		}
		if maxAge == 0 || end.Before(cutoff) {
			delete(r.scans, id)
			removed++
		}
	}
	if removed > 0 {
		logger.Debug("swept finished scans", "removed", removed)
	}
	return removed
}

package scannermodule

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openmediakit/librarian/internal/modules/scannermodule/scanner"
)

// ScanRequest is the body of a scan start request.
type ScanRequest struct {
	Path            string                 `json:"path" binding:"required"`
	ExtractMetadata bool                   `json:"extract_metadata"`
	CheckDuplicates bool                   `json:"check_duplicates"`
	CallerID        string                 `json:"caller_id"`
	ExistingFiles   []scanner.ExistingItem `json:"existing_files"`
	ExistingDirs    []scanner.ExistingItem `json:"existing_directories"`
}

// StopRequest identifies the scan to cancel.
type StopRequest struct {
	ScanID string `json:"scan_id" binding:"required"`
}

// VerifyRequest lists the paths to check.
type VerifyRequest struct {
	FilePaths []string `json:"file_paths" binding:"required"`
}

// ScannedQueryRequest filters and paginates inventory reads.
type ScannedQueryRequest struct {
	ScanID      string `json:"scan_id"`
	LibraryRoot string `json:"library_root"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
}

func (r *ScannedQueryRequest) applyDefaults() {
	if r.Limit <= 0 {
		r.Limit = 100
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
}

// getGeneralStatus returns scanner-wide state: how many scans are running,
// host load, and libraries with filesystem changes since their last scan.
func (m *Module) getGeneralStatus(c *gin.Context) {
	status := "idle"
	if m.scannerManager.ActiveScanCount() > 0 {
		status = "scanning"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          status,
		"active_scans":    m.scannerManager.ActiveScanCount(),
		"dirty_libraries": m.scannerManager.DirtyLibraries(),
		"system":          m.scannerManager.SystemInfo(),
		"scanner_id":      m.ID(),
		"scanner_name":    m.Name(),
	})
}

// startLibraryScan starts an asynchronous scan and returns its id immediately.
func (m *Module) startLibraryScan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid scan request: " + err.Error(),
		})
		return
	}

	opts := scanner.ScanOptions{
		ExtractMetadata:     req.ExtractMetadata,
		CheckDuplicates:     req.CheckDuplicates,
		CallerID:            req.CallerID,
		ExistingFiles:       req.ExistingFiles,
		ExistingDirectories: req.ExistingDirs,
	}

	scanID, err := m.scannerManager.StartScan(req.Path, opts)
	if err != nil {
		switch {
		case errors.Is(err, scanner.ErrTooManyScans):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		case errors.Is(err, scanner.ErrPathRejected):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scan_id": scanID,
		"message": "Scan started successfully",
	})
}

// verifyPaths checks that previously scanned paths still exist and are
// accessible.
func (m *Module) verifyPaths(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid verify request: " + err.Error(),
		})
		return
	}

	results := m.scannerManager.VerifyPaths(req.FilePaths)

	accessible := 0
	missing := 0
	for _, r := range results {
		if r.Accessible {
			accessible++
		}
		if !r.Exists {
			missing++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"verification_results": results,
		"summary": gin.H{
			"total":      len(results),
			"accessible": accessible,
			"missing":    missing,
		},
	})
}

// getScannedFiles returns persisted file records, filtered and paginated.
func (m *Module) getScannedFiles(c *gin.Context) {
	var req ScannedQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query request: " + err.Error(),
		})
		return
	}
	req.applyDefaults()

	files, err := m.scannerManager.ScannedFiles(c.Request.Context(), req.ScanID, req.LibraryRoot, req.Limit, req.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files":  files,
		"count":  len(files),
		"limit":  req.Limit,
		"offset": req.Offset,
	})
}

// getScannedDirectories returns persisted directory records, filtered and
// paginated.
func (m *Module) getScannedDirectories(c *gin.Context) {
	var req ScannedQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query request: " + err.Error(),
		})
		return
	}
	req.applyDefaults()

	dirs, err := m.scannerManager.ScannedDirectories(c.Request.Context(), req.ScanID, req.LibraryRoot, req.Limit, req.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"directories": dirs,
		"count":       len(dirs),
		"limit":       req.Limit,
		"offset":      req.Offset,
	})
}

// getScanStatus returns the progress snapshot of a specific scan
func (m *Module) getScanStatus(c *gin.Context) {
	snap, err := m.scannerManager.GetStatus(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Scan not found",
		})
		return
	}

	c.JSON(http.StatusOK, snap)
}

// getScanResults returns the discovered items of a scan. Results of a running
// or cancelled scan are served as far as the walk got.
func (m *Module) getScanResults(c *gin.Context) {
	scanID := c.Param("id")
	results, err := m.scannerManager.GetResults(scanID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Scan not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scan_id": scanID,
		"count":   len(results),
		"results": results,
	})
}

// stopScan requests cancellation of a running scan
func (m *Module) stopScan(c *gin.Context) {
	var req StopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid stop request: " + err.Error(),
		})
		return
	}

	stopped := m.scannerManager.StopScan(req.ScanID)
	c.JSON(http.StatusOK, gin.H{
		"scan_id": req.ScanID,
		"stopped": stopped,
	})
}

// listScans returns snapshots of all known scans, optionally filtered by
// status via ?status_filter=scanning|completed|error|cancelled.
func (m *Module) listScans(c *gin.Context) {
	filter := scanner.ScanStatus(c.Query("status_filter"))
	scans := m.scannerManager.ListScans(filter)

	c.JSON(http.StatusOK, gin.H{
		"count": len(scans),
		"scans": scans,
	})
}

// cleanupScan removes a single scan record regardless of its status
func (m *Module) cleanupScan(c *gin.Context) {
	scanID := c.Param("id")
	if !m.scannerManager.CleanupScan(scanID) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Scan not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scan_id": scanID,
		"message": "Scan record removed",
	})
}

// cleanupOldScans evicts terminal scans older than ?max_age_hours (default 24).
func (m *Module) cleanupOldScans(c *gin.Context) {
	maxAgeHours := 24.0
	if v := c.Query("max_age_hours"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid max_age_hours",
			})
			return
		}
		maxAgeHours = parsed
	}

	removed := m.scannerManager.CleanupOlderThan(time.Duration(maxAgeHours * float64(time.Hour)))
	c.JSON(http.StatusOK, gin.H{
		"removed": removed,
	})
}

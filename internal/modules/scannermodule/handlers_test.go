package scannermodule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/openmediakit/librarian/internal/config"
	"github.com/openmediakit/librarian/internal/database"
)

func setupTestModule(t *testing.T, mutate func(*config.ScannerConfig)) (*Module, *gin.Engine) {
	return setupTestModuleWithDB(t, nil, mutate)
}

func setupTestModuleWithDB(t *testing.T, db *gorm.DB, mutate func(*config.ScannerConfig)) (*Module, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default().Scanner
	cfg.EnableFileMonitor = false
	cfg.SweepInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}

	mod := NewModule(&cfg, db, nil)
	require.NoError(t, mod.Init())
	t.Cleanup(mod.Shutdown)

	r := gin.New()
	mod.RegisterRoutes(r)
	return mod, r
}

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func startScanAndWait(t *testing.T, r *gin.Engine, path string) string {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/api/library/scan", gin.H{"path": path})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		ScanID string `json:"scan_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ScanID)

	require.Eventually(t, func() bool {
		sw := doJSON(r, http.MethodGet, "/api/scan/status/"+resp.ScanID, nil)
		if sw.Code != http.StatusOK {
			return false
		}
		var status struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(sw.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.Status != "scanning"
	}, 10*time.Second, 10*time.Millisecond)
	return resp.ScanID
}

func TestStartScanEndpoint(t *testing.T) {
	_, r := setupTestModule(t, nil)
	dir := t.TempDir()

	scanID := startScanAndWait(t, r, dir)

	w := doJSON(r, http.MethodGet, "/api/scan/status/"+scanID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap struct {
		Status         string  `json:"status"`
		TotalItems     int64   `json:"total_items"`
		ProcessedItems int64   `json:"processed_items"`
		Percentage     float64 `json:"percentage"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "completed", snap.Status)
	assert.Equal(t, snap.TotalItems, snap.ProcessedItems)
}

func TestStartScanEndpoint_MissingPath(t *testing.T) {
	_, r := setupTestModule(t, nil)

	w := doJSON(r, http.MethodPost, "/api/library/scan", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartScanEndpoint_PathRejected(t *testing.T) {
	_, r := setupTestModule(t, func(cfg *config.ScannerConfig) {
		cfg.AllowedBasePaths = []string{"/srv/media"}
	})

	w := doJSON(r, http.MethodPost, "/api/library/scan", gin.H{"path": t.TempDir()})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStartScanEndpoint_TooManyScans(t *testing.T) {
	_, r := setupTestModule(t, func(cfg *config.ScannerConfig) {
		cfg.MaxConcurrentScans = 1
	})

	// A wide fixture keeps the first scan busy long enough for the second
	// request to hit the ceiling.
	dir := t.TempDir()
	for i := 0; i < 50; i++ {
		sub := filepath.Join(dir, fmt.Sprintf("dir-%02d", i))
		require.NoError(t, os.MkdirAll(sub, 0755))
		for j := 0; j < 40; j++ {
			require.NoError(t, os.WriteFile(filepath.Join(sub, fmt.Sprintf("f-%02d.mp4", j)), []byte("x"), 0644))
		}
	}

	w := doJSON(r, http.MethodPost, "/api/library/scan", gin.H{"path": dir})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/library/scan", gin.H{"path": t.TempDir()})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestScanResultsEndpoint(t *testing.T) {
	_, r := setupTestModule(t, nil)
	dir := t.TempDir()
	scanID := startScanAndWait(t, r, dir)

	w := doJSON(r, http.MethodGet, "/api/scan/results/"+scanID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ScanID string `json:"scan_id"`
		Count  int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, scanID, resp.ScanID)
	assert.Equal(t, 0, resp.Count)
}

func TestScanStatusEndpoint_NotFound(t *testing.T) {
	_, r := setupTestModule(t, nil)

	w := doJSON(r, http.MethodGet, "/api/scan/status/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/api/scan/results/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStopScanEndpoint(t *testing.T) {
	_, r := setupTestModule(t, nil)
	scanID := startScanAndWait(t, r, t.TempDir())

	// Already terminal, so stopping reports false rather than erroring.
	w := doJSON(r, http.MethodPost, "/api/scan/stop", gin.H{"scan_id": scanID})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Stopped bool `json:"stopped"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Stopped)

	w = doJSON(r, http.MethodPost, "/api/scan/stop", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListScansEndpoint(t *testing.T) {
	_, r := setupTestModule(t, nil)
	startScanAndWait(t, r, t.TempDir())
	startScanAndWait(t, r, t.TempDir())

	w := doJSON(r, http.MethodGet, "/api/scans", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)

	w = doJSON(r, http.MethodGet, "/api/scans?status_filter=scanning", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
}

func TestCleanupEndpoints(t *testing.T) {
	_, r := setupTestModule(t, nil)
	scanID := startScanAndWait(t, r, t.TempDir())

	w := doJSON(r, http.MethodDelete, "/api/scan/cleanup/"+scanID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, http.MethodDelete, "/api/scan/cleanup/"+scanID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	second := startScanAndWait(t, r, t.TempDir())
	w = doJSON(r, http.MethodDelete, "/api/scans/cleanup?max_age_hours=0", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Removed int `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Removed)

	w = doJSON(r, http.MethodGet, "/api/scan/status/"+second, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodDelete, "/api/scans/cleanup?max_age_hours=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyEndpoint(t *testing.T) {
	dir := t.TempDir()
	_, r := setupTestModule(t, func(cfg *config.ScannerConfig) {
		cfg.AllowedBasePaths = []string{dir}
	})

	existing := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0644))
	missing := filepath.Join(dir, "gone.mkv")
	outside := "/etc/passwd"

	w := doJSON(r, http.MethodPost, "/api/library/verify", gin.H{
		"file_paths": []string{existing, missing, outside},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []struct {
			Path       string `json:"path"`
			Exists     bool   `json:"exists"`
			Accessible bool   `json:"accessible"`
			Error      string `json:"error"`
		} `json:"verification_results"`
		Summary struct {
			Total      int `json:"total"`
			Accessible int `json:"accessible"`
			Missing    int `json:"missing"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Len(t, resp.Results, 3)
	assert.True(t, resp.Results[0].Exists)
	assert.True(t, resp.Results[0].Accessible)
	assert.False(t, resp.Results[1].Exists)
	assert.NotEmpty(t, resp.Results[1].Error)
	assert.False(t, resp.Results[2].Accessible)
	assert.Equal(t, "path not allowed", resp.Results[2].Error)

	assert.Equal(t, 3, resp.Summary.Total)
	assert.Equal(t, 1, resp.Summary.Accessible)
	assert.Equal(t, 2, resp.Summary.Missing)

	w = doJSON(r, http.MethodPost, "/api/library/verify", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScannedFilesEndpoint(t *testing.T) {
	db := setupHandlerTestDB(t)
	_, r := setupTestModuleWithDB(t, db, nil)

	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("film-%d.mp4", i)), []byte("x"), 0644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Extras"), 0755))

	scanID := startScanAndWait(t, r, dir)

	var resp struct {
		Count  int `json:"count"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}

	w := doJSON(r, http.MethodPost, "/api/library/scanned-files", gin.H{"scan_id": scanID})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, 100, resp.Limit)

	w = doJSON(r, http.MethodPost, "/api/library/scanned-files", gin.H{"scan_id": scanID, "limit": 2})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)

	w = doJSON(r, http.MethodPost, "/api/library/scanned-files", gin.H{"scan_id": scanID, "limit": 2, "offset": 2})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	w = doJSON(r, http.MethodPost, "/api/library/scanned-files", gin.H{"scan_id": "unknown"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)

	w = doJSON(r, http.MethodPost, "/api/library/scanned-directories", gin.H{"scan_id": scanID})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestScannedFilesEndpoint_NoDatabase(t *testing.T) {
	_, r := setupTestModule(t, nil)

	w := doJSON(r, http.MethodPost, "/api/library/scanned-files", gin.H{})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doJSON(r, http.MethodPost, "/api/library/scanned-directories", gin.H{})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGeneralStatusEndpoint(t *testing.T) {
	_, r := setupTestModule(t, nil)

	w := doJSON(r, http.MethodGet, "/api/scanner/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status      string                 `json:"status"`
		ActiveScans int                    `json:"active_scans"`
		System      map[string]interface{} `json:"system"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "idle", resp.Status)
	assert.Equal(t, 0, resp.ActiveScans)
	assert.NotEmpty(t, resp.System)
}

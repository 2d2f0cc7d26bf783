package scannermodule

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the scanner module routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		// Scanner status
		api.GET("/scanner/status", m.getGeneralStatus)

		// Library helpers
		api.POST("/library/verify", m.verifyPaths)
		api.POST("/library/scanned-files", m.getScannedFiles)
		api.POST("/library/scanned-directories", m.getScannedDirectories)

		// Scan lifecycle
		api.POST("/library/scan", m.startLibraryScan)
		api.GET("/scan/status/:id", m.getScanStatus)
		api.GET("/scan/results/:id", m.getScanResults)
		api.POST("/scan/stop", m.stopScan)

		// Scan registry management
		api.GET("/scans", m.listScans)
		api.DELETE("/scan/cleanup/:id", m.cleanupScan)
		api.DELETE("/scans/cleanup", m.cleanupOldScans)
	}
}

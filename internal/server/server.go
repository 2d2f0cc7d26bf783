// Package server assembles the HTTP API.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmediakit/librarian/internal/config"
	"github.com/openmediakit/librarian/internal/database"
	"github.com/openmediakit/librarian/internal/events"
	"github.com/openmediakit/librarian/internal/modules/scannermodule"
)

// Server holds the router and the modules it serves.
type Server struct {
	router        *gin.Engine
	scannerModule *scannermodule.Module
}

// New builds the router, initializes the scanner module, and registers all
// routes.
func New(cfg *config.Config, eventBus events.EventBus) (*Server, error) {
	r := gin.Default()

	if cfg.Server.EnableCORS {
		r.Use(corsMiddleware())
	}

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "librarian",
		})
	})

	scanMod := scannermodule.NewModule(&cfg.Scanner, database.GetDB(), eventBus)
	if err := scanMod.Init(); err != nil {
		return nil, err
	}
	scanMod.RegisterRoutes(r)

	return &Server{
		router:        r,
		scannerModule: scanMod,
	}, nil
}

// Router returns the underlying gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Shutdown stops the modules.
func (s *Server) Shutdown() {
	s.scannerModule.Shutdown()
}

// corsMiddleware allows cross-origin requests during development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

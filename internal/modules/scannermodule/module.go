// Package scannermodule exposes the library scanning engine over HTTP and
// owns its lifecycle within the application.
package scannermodule

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/openmediakit/librarian/internal/config"
	"github.com/openmediakit/librarian/internal/events"
	"github.com/openmediakit/librarian/internal/logger"
	"github.com/openmediakit/librarian/internal/modules/scannermodule/scanner"
)

const (
	// ModuleID is the unique identifier for the scanner module
	ModuleID = "system.scanner"

	// ModuleName is the display name for the scanner module
	ModuleName = "Library Scanner"
)

// Module wires the scanner manager into the HTTP layer.
type Module struct {
	scannerManager *scanner.Manager
	db             *gorm.DB
	eventBus       events.EventBus
	cfg            *config.ScannerConfig
}

// NewModule creates the scanner module. db may be nil to run without the
// inventory store.
func NewModule(cfg *config.ScannerConfig, db *gorm.DB, eventBus events.EventBus) *Module {
	return &Module{
		db:       db,
		eventBus: eventBus,
		cfg:      cfg,
	}
}

// ID returns the unique module identifier
func (m *Module) ID() string {
	return ModuleID
}

// Name returns the module display name
func (m *Module) Name() string {
	return ModuleName
}

// Init creates the scanner manager and its background workers.
func (m *Module) Init() error {
	logger.Info("initializing scanner module")

	if m.cfg == nil {
		return fmt.Errorf("scanner module requires configuration")
	}

	m.scannerManager = scanner.NewManager(m.cfg, m.db, m.eventBus)
	return nil
}

// Shutdown stops running scans and background monitors.
func (m *Module) Shutdown() {
	if m.scannerManager != nil {
		m.scannerManager.Shutdown()
	}
}

// Manager returns the underlying scanner manager.
func (m *Module) Manager() *scanner.Manager {
	return m.scannerManager
}

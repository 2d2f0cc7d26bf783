package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openmediakit/librarian/internal/events"
	"github.com/openmediakit/librarian/internal/logger"
)

// FileMonitor watches scanned library roots for filesystem changes and
// flags them as needing a rescan. Changes are debounced per library and
// announced on the event bus.
type FileMonitor struct {
	eventBus events.EventBus
	watcher  *fsnotify.Watcher

	mu        sync.Mutex
	libraries map[string]bool      // watched root -> dirty
	lastEvent map[string]time.Time // watched root -> last change

	debounce time.Duration
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewFileMonitor creates a monitor backed by an fsnotify watcher.
func NewFileMonitor(eventBus events.EventBus) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fm := &FileMonitor{
		eventBus:  eventBus,
		watcher:   watcher,
		libraries: make(map[string]bool),
		lastEvent: make(map[string]time.Time),
		debounce:  5 * time.Second,
		done:      make(chan struct{}),
	}
	fm.wg.Add(1)
	go fm.eventLoop()
	return fm, nil
}

// Watch adds a library root to the watch set. inotify watches are
// per-directory, so every existing subdirectory gets its own watch;
// directories created later are picked up by handleEvent.
func (fm *FileMonitor) Watch(libraryRoot string) error {
	fm.mu.Lock()
	if _, ok := fm.libraries[libraryRoot]; ok {
		fm.mu.Unlock()
		return nil
	}
	fm.libraries[libraryRoot] = false
	fm.mu.Unlock()

	if err := fm.watcher.Add(libraryRoot); err != nil {
		return fmt.Errorf("failed to watch %s: %w", libraryRoot, err)
	}
	if err := fm.addRecursiveWatch(libraryRoot); err != nil {
		logger.Warn("failed to watch some subdirectories", "path", libraryRoot, "error", err)
	}
	logger.Info("watching library for changes", "path", libraryRoot)
	return nil
}

// addRecursiveWatch adds watches for all subdirectories under the root.
func (fm *FileMonitor) addRecursiveWatch(rootPath string) error {
	return filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != rootPath {
			if err := fm.watcher.Add(path); err != nil {
				logger.Debug("failed to watch subdirectory", "path", path, "error", err)
			}
		}
		return nil
	})
}

// DirtyLibraries returns watched roots that changed since their last scan
// and clears the dirty flags.
func (fm *FileMonitor) DirtyLibraries() []string {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	var dirty []string
	for root, isDirty := range fm.libraries {
		if isDirty {
			dirty = append(dirty, root)
			fm.libraries[root] = false
		}
	}
	return dirty
}

func (fm *FileMonitor) eventLoop() {
	defer fm.wg.Done()
	for {
		select {
		case event, ok := <-fm.watcher.Events:
			if !ok {
				return
			}
			fm.handleEvent(event)
		case err, ok := <-fm.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("file watcher error", "error", err)
		case <-fm.done:
			return
		}
	}
}

func (fm *FileMonitor) handleEvent(event fsnotify.Event) {
	root := fm.rootFor(event.Name)
	if root == "" {
		return
	}

	// New directories need their own watch for changes inside them.
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fm.watcher.Add(event.Name); err != nil {
				logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
		}
	}

	fm.mu.Lock()
	now := time.Now()
	recent := now.Sub(fm.lastEvent[root]) < fm.debounce
	fm.lastEvent[root] = now
	fm.libraries[root] = true
	fm.mu.Unlock()

	if recent {
		return
	}

	logger.Debug("library change detected", "path", event.Name, "op", event.Op.String())
	if fm.eventBus != nil {
		changeEvent := events.NewSystemEvent(
			events.EventLibraryChanged,
			"Library Changed",
			fmt.Sprintf("Change detected under %s", root),
		)
		changeEvent.Data = map[string]interface{}{
			"library_root": root,
			"path":         event.Name,
			"op":           event.Op.String(),
		}
		fm.eventBus.PublishAsync(changeEvent)
	}
}

func (fm *FileMonitor) rootFor(path string) string {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	for root := range fm.libraries {
		if path == root || strings.HasPrefix(path, root+string(os.PathSeparator)) {
			return root
		}
	}
	return ""
}

// Stop closes the watcher and terminates the event loop.
func (fm *FileMonitor) Stop() {
	fm.once.Do(func() {
		close(fm.done)
		fm.watcher.Close()
		fm.wg.Wait()
	})
}

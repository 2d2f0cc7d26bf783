package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openmediakit/librarian/internal/logger"
)

// Walker performs the two-pass traversal for a single scan: a counting pass
// that establishes the total before any processing, then a processing pass
// that classifies entries and collects DiscoveredItems. The walk is
// deliberately sequential within one scan; parallelism lives at the manager
// level, across scans, which keeps every write to the progress record on a
// single goroutine.
type Walker struct {
	classifier   *Classifier
	fileMeta     FileMetadataProvider
	mediaMeta    MediaMetadataExtractor
	excludedDirs map[string]bool
	maxDepth     int
}

// NewWalker creates a walker. mediaMeta may be nil when technical metadata
// extraction is unavailable.
func NewWalker(classifier *Classifier, fileMeta FileMetadataProvider, mediaMeta MediaMetadataExtractor, excludedDirs []string, maxDepth int) *Walker {
	excluded := make(map[string]bool, len(excludedDirs))
	for _, name := range excludedDirs {
		excluded[name] = true
	}
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &Walker{
		classifier:   classifier,
		fileMeta:     fileMeta,
		mediaMeta:    mediaMeta,
		excludedDirs: excluded,
		maxDepth:     maxDepth,
	}
}

// skipDir reports whether a directory name is excluded from traversal.
func (w *Walker) skipDir(name string) bool {
	if len(name) > 0 && name[0] == '.' {
		return true
	}
	return w.excludedDirs[name]
}

// CountItems walks the tree counting directories plus media-eligible files,
// applying the same exclusion and depth rules as the processing pass. A
// failure to read the root is fatal; anything deeper is skipped.
func (w *Walker) CountItems(root string) (int64, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("failed to read scan root %s: %w", root, err)
	}
	return w.countEntries(root, entries, 0), nil
}

func (w *Walker) countEntries(dir string, entries []os.DirEntry, depth int) int64 {
	var total int64
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if w.skipDir(name) {
				continue
			}
			// Directories beyond the depth limit are still counted;
			// they just aren't descended into.
			total++
			if depth+1 <= w.maxDepth {
				subPath := filepath.Join(dir, name)
				subEntries, err := os.ReadDir(subPath)
				if err != nil {
					logger.Warn("count pass could not read directory", "path", subPath, "error", err)
					continue
				}
				total += w.countEntries(subPath, subEntries, depth+1)
			}
			continue
		}
		if w.classifier.IsMediaFile(name) {
			total++
		}
	}
	return total
}

// Walk runs the processing pass, appending per-item errors to progress and
// incrementing the processed counter exactly once per visited entry. A
// cancelled progress record stops descent; collected results are returned
// as-is. The returned error is fatal (root unreadable) only.
func (w *Walker) Walk(ctx context.Context, root string, extractMetadata bool, progress *ScanProgress) ([]DiscoveredItem, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan root %s: %w", root, err)
	}

	var results []DiscoveredItem
	w.walkEntries(ctx, root, entries, 0, extractMetadata, progress, &results)
	return results, nil
}

func (w *Walker) walkEntries(ctx context.Context, dir string, entries []os.DirEntry, depth int, extractMetadata bool, progress *ScanProgress, results *[]DiscoveredItem) {
	progress.SetCurrentPath(dir)

	type pendingDir struct {
		path string
	}
	var descend []pendingDir

	for _, entry := range entries {
		if progress.Cancelled() {
			return
		}

		name := entry.Name()
		path := filepath.Join(dir, name)

		if entry.IsDir() {
			if w.skipDir(name) {
				continue
			}
			if item, err := w.processDirectory(path, name); err != nil {
				progress.AddError(ErrKindDirectory, err.Error(), path)
			} else {
				*results = append(*results, item)
			}
			progress.IncrementProcessed()

			if depth+1 <= w.maxDepth {
				descend = append(descend, pendingDir{path: path})
			}
			continue
		}

		if !w.classifier.IsMediaFile(name) {
			continue
		}
		if item, err := w.processFile(ctx, path, name, extractMetadata, progress); err != nil {
			progress.AddError(ErrKindFile, err.Error(), path)
		} else {
			*results = append(*results, item)
		}
		progress.IncrementProcessed()
	}

	for _, sub := range descend {
		if progress.Cancelled() {
			return
		}
		subEntries, err := os.ReadDir(sub.path)
		if err != nil {
			progress.AddError(ErrKindDirectory, err.Error(), sub.path)
			continue
		}
		w.walkEntries(ctx, sub.path, subEntries, depth+1, extractMetadata, progress, results)
	}
}

// processDirectory classifies a directory and gathers its metadata.
func (w *Walker) processDirectory(path, name string) (DiscoveredItem, error) {
	meta, err := w.fileMeta.Stat(path)
	if err != nil {
		return DiscoveredItem{}, err
	}

	listing, err := os.ReadDir(path)
	if err != nil {
		// Unreadable listing degrades classification, not discovery.
		listing = nil
	}

	return DiscoveredItem{
		Kind:          KindDirectory,
		Path:          path,
		Name:          name,
		MediaCategory: w.classifier.DirectoryCategory(name, listing),
		Metadata:      meta,
	}, nil
}

// processFile classifies a media file, gathers metadata, and parses the
// filename. Technical metadata extraction is best-effort: a failure is
// recorded as a non-fatal error and the item is kept without it.
func (w *Walker) processFile(ctx context.Context, path, name string, extractMetadata bool, progress *ScanProgress) (DiscoveredItem, error) {
	meta, err := w.fileMeta.Stat(path)
	if err != nil {
		return DiscoveredItem{}, err
	}

	item := DiscoveredItem{
		Kind:          KindFile,
		Path:          path,
		Name:          name,
		Extension:     filepath.Ext(name),
		MediaCategory: w.classifier.FileCategory(name),
		Metadata:      meta,
	}

	parsed := w.classifier.ParseFilename(name)
	item.ParsedInfo = &parsed

	if extractMetadata && w.mediaMeta != nil && w.classifier.IsMediaFile(name) {
		technical, err := w.mediaMeta.Extract(ctx, path)
		if err != nil {
			progress.AddError(ErrKindMetadata, err.Error(), path)
		} else {
			item.MediaMetadata = technical
		}
	}
	return item, nil
}

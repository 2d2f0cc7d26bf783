package scanner

import (
	"strings"

	"github.com/openmediakit/librarian/internal/logger"
)

// Reconciler compares freshly discovered items against an existing-inventory
// snapshot, classifying each as new or duplicate. Identity is the composite
// key libraryRoot + ":" + path, so items sharing a path under different
// library roots never collide. The algorithm is agnostic to where the
// snapshot came from; online and offline modes differ only in how the
// caller materialized it.
type Reconciler struct {
	// caseInsensitive lowercases both sides of the composite key before
	// comparison. Default policy is byte-exact: paths differing only in
	// letter case are distinct items.
	caseInsensitive bool
}

// NewReconciler creates a reconciler with the given case policy.
func NewReconciler(caseInsensitive bool) *Reconciler {
	return &Reconciler{caseInsensitive: caseInsensitive}
}

// CompositeKey builds the duplicate-detection identity for an item path
// under a library root.
func (r *Reconciler) CompositeKey(libraryRoot, path string) string {
	key := libraryRoot + ":" + path
	if r.caseInsensitive {
		key = strings.ToLower(key)
	}
	return key
}

// Reconcile classifies items against the existing inventory and returns the
// duplicate report. Existing items are keyed by their own stored library
// root; discovered items by the current scan's root.
func (r *Reconciler) Reconcile(items []DiscoveredItem, libraryRoot string, existingFiles, existingDirs []ExistingItem) *DuplicateReport {
	fileKeys := make(map[string]ExistingItem, len(existingFiles))
	for _, item := range existingFiles {
		fileKeys[r.CompositeKey(item.LibraryRoot, item.Path)] = item
	}
	dirKeys := make(map[string]ExistingItem, len(existingDirs))
	for _, item := range existingDirs {
		dirKeys[r.CompositeKey(item.LibraryRoot, item.Path)] = item
	}

	report := &DuplicateReport{Differences: []ItemDifference{}}

	for _, item := range items {
		key := r.CompositeKey(libraryRoot, item.Path)

		var existing ExistingItem
		var found bool
		switch item.Kind {
		case KindFile:
			existing, found = fileKeys[key]
		case KindDirectory:
			existing, found = dirKeys[key]
		default:
			continue
		}

		if !found {
			report.NewItems++
			continue
		}

		report.DuplicatesFound++
		if diffs := r.compareItem(item, existing); len(diffs) > 0 {
			report.Differences = append(report.Differences, ItemDifference{
				Path:        item.Path,
				Kind:        item.Kind,
				Differences: diffs,
			})
		}
	}

	logger.Debug("reconciliation finished",
		"library_root", libraryRoot,
		"duplicates", report.DuplicatesFound,
		"new_items", report.NewItems,
		"differences", len(report.Differences))

	return report
}

// compareItem diffs the fields tracked for duplicate items. An identical
// duplicate yields an empty list.
func (r *Reconciler) compareItem(item DiscoveredItem, existing ExistingItem) []FieldDifference {
	var diffs []FieldDifference

	if item.Metadata.Size != existing.Size {
		diffs = append(diffs, FieldDifference{
			Field:         "size",
			NewValue:      item.Metadata.Size,
			ExistingValue: existing.Size,
		})
	}
	if !item.Metadata.ModifiedTime.Equal(existing.ModifiedTime) {
		diffs = append(diffs, FieldDifference{
			Field:         "modified_time",
			NewValue:      item.Metadata.ModifiedTime,
			ExistingValue: existing.ModifiedTime,
		})
	}
	if item.MediaCategory != existing.MediaCategory {
		diffs = append(diffs, FieldDifference{
			Field:         "media_category",
			NewValue:      item.MediaCategory,
			ExistingValue: existing.MediaCategory,
		})
	}
	return diffs
}

// FilterDuplicates removes items reported as duplicates, keeping only new
// items. Applied by the engine after reconciliation so downstream
// persistence sees new items only.
func (r *Reconciler) FilterDuplicates(items []DiscoveredItem, libraryRoot string, existingFiles, existingDirs []ExistingItem) []DiscoveredItem {
	fileKeys := make(map[string]bool, len(existingFiles))
	for _, item := range existingFiles {
		fileKeys[r.CompositeKey(item.LibraryRoot, item.Path)] = true
	}
	dirKeys := make(map[string]bool, len(existingDirs))
	for _, item := range existingDirs {
		dirKeys[r.CompositeKey(item.LibraryRoot, item.Path)] = true
	}

	kept := make([]DiscoveredItem, 0, len(items))
	for _, item := range items {
		key := r.CompositeKey(libraryRoot, item.Path)
		switch item.Kind {
		case KindFile:
			if fileKeys[key] {
				continue
			}
		case KindDirectory:
			if dirKeys[key] {
				continue
			}
		}
		kept = append(kept, item)
	}
	return kept
}

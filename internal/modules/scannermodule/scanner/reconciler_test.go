package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMtime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func discoveredFile(path string, size int64, category MediaCategory) DiscoveredItem {
	return DiscoveredItem{
		Kind:          KindFile,
		Path:          path,
		MediaCategory: category,
		Metadata:      ItemMetadata{Size: size, ModifiedTime: testMtime},
	}
}

func discoveredDir(path string, category MediaCategory) DiscoveredItem {
	return DiscoveredItem{
		Kind:          KindDirectory,
		Path:          path,
		MediaCategory: category,
		Metadata:      ItemMetadata{ModifiedTime: testMtime},
	}
}

func existingItem(root, path string, size int64, category MediaCategory) ExistingItem {
	return ExistingItem{
		LibraryRoot:   root,
		Path:          path,
		Size:          size,
		ModifiedTime:  testMtime,
		MediaCategory: category,
	}
}

func TestReconcile_DifferentLibraryRootsAreDistinct(t *testing.T) {
	r := NewReconciler(false)

	items := []DiscoveredItem{discoveredFile("/movies/x.mp4", 100, CategoryMovie)}
	existing := []ExistingItem{existingItem("/lib-a", "/movies/x.mp4", 100, CategoryMovie)}

	report := r.Reconcile(items, "/lib-b", existing, nil)

	assert.Equal(t, 0, report.DuplicatesFound)
	assert.Equal(t, 1, report.NewItems)
	assert.Empty(t, report.Differences)
}

func TestReconcile_ExactDuplicateHasEmptyDiff(t *testing.T) {
	r := NewReconciler(false)

	items := []DiscoveredItem{discoveredFile("/m/a.mp4", 100, CategoryMovie)}
	existing := []ExistingItem{existingItem("/lib-a", "/m/a.mp4", 100, CategoryMovie)}

	report := r.Reconcile(items, "/lib-a", existing, nil)

	assert.Equal(t, 1, report.DuplicatesFound)
	assert.Equal(t, 0, report.NewItems)
	assert.Empty(t, report.Differences)
}

func TestReconcile_DifferingSizeIsReported(t *testing.T) {
	r := NewReconciler(false)

	items := []DiscoveredItem{discoveredFile("/m/a.mp4", 100, CategoryMovie)}
	existing := []ExistingItem{existingItem("/lib-a", "/m/a.mp4", 200, CategoryMovie)}

	report := r.Reconcile(items, "/lib-a", existing, nil)

	assert.Equal(t, 1, report.DuplicatesFound)
	require.Len(t, report.Differences, 1)
	require.Len(t, report.Differences[0].Differences, 1)
	diff := report.Differences[0].Differences[0]
	assert.Equal(t, "size", diff.Field)
	assert.Equal(t, int64(100), diff.NewValue)
	assert.Equal(t, int64(200), diff.ExistingValue)
}

func TestReconcile_MixedBatch(t *testing.T) {
	r := NewReconciler(false)

	items := []DiscoveredItem{
		discoveredFile("/m/new1.mp4", 1, CategoryMovie),
		discoveredFile("/m/new2.mp4", 2, CategoryMovie),
		discoveredFile("/m/dup.mp4", 3, CategoryMovie),
		discoveredDir("/m/new-dir", CategoryUnknown),
		discoveredDir("/m/dup-dir", CategorySeries),
	}
	existingFiles := []ExistingItem{existingItem("/lib", "/m/dup.mp4", 3, CategoryMovie)}
	existingDirs := []ExistingItem{existingItem("/lib", "/m/dup-dir", 0, CategorySeries)}

	report := r.Reconcile(items, "/lib", existingFiles, existingDirs)

	assert.Equal(t, 2, report.DuplicatesFound)
	assert.Equal(t, 3, report.NewItems)
}

func TestReconcile_FileAndDirectoryIdentitiesAreSeparate(t *testing.T) {
	r := NewReconciler(false)

	// A directory at the same composite key as an existing *file* is new.
	items := []DiscoveredItem{discoveredDir("/m/thing", CategoryUnknown)}
	existingFiles := []ExistingItem{existingItem("/lib", "/m/thing", 5, CategoryMovie)}

	report := r.Reconcile(items, "/lib", existingFiles, nil)

	assert.Equal(t, 0, report.DuplicatesFound)
	assert.Equal(t, 1, report.NewItems)
}

func TestReconcile_CaseSensitiveByDefault(t *testing.T) {
	r := NewReconciler(false)

	items := []DiscoveredItem{discoveredFile("/m/Movie.mp4", 10, CategoryMovie)}
	existing := []ExistingItem{existingItem("/lib", "/m/movie.mp4", 10, CategoryMovie)}

	report := r.Reconcile(items, "/lib", existing, nil)

	assert.Equal(t, 0, report.DuplicatesFound)
	assert.Equal(t, 1, report.NewItems)
}

func TestReconcile_CaseInsensitivePolicy(t *testing.T) {
	r := NewReconciler(true)

	items := []DiscoveredItem{discoveredFile("/m/Movie.mp4", 10, CategoryMovie)}
	existing := []ExistingItem{existingItem("/lib", "/m/movie.mp4", 10, CategoryMovie)}

	report := r.Reconcile(items, "/lib", existing, nil)

	assert.Equal(t, 1, report.DuplicatesFound)
	assert.Equal(t, 0, report.NewItems)
}

func TestReconcile_EmptyInput(t *testing.T) {
	r := NewReconciler(false)

	report := r.Reconcile(nil, "/lib", []ExistingItem{existingItem("/lib", "/m/a.mp4", 1, CategoryMovie)}, nil)

	assert.Equal(t, 0, report.DuplicatesFound)
	assert.Equal(t, 0, report.NewItems)
	assert.Empty(t, report.Differences)
}

func TestReconcile_MultipleFieldDifferences(t *testing.T) {
	r := NewReconciler(false)

	item := discoveredFile("/m/a.mp4", 100, CategoryMovie)
	item.Metadata.ModifiedTime = testMtime.Add(time.Hour)
	existing := existingItem("/lib", "/m/a.mp4", 200, CategoryEpisode)

	report := r.Reconcile([]DiscoveredItem{item}, "/lib", []ExistingItem{existing}, nil)

	assert.Equal(t, 1, report.DuplicatesFound)
	require.Len(t, report.Differences, 1)
	fields := make([]string, 0, 3)
	for _, d := range report.Differences[0].Differences {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"size", "modified_time", "media_category"}, fields)
}

func TestFilterDuplicates(t *testing.T) {
	r := NewReconciler(false)

	items := []DiscoveredItem{
		discoveredFile("/m/new.mp4", 1, CategoryMovie),
		discoveredFile("/m/dup.mp4", 2, CategoryMovie),
		discoveredDir("/m/dup-dir", CategorySeries),
	}
	existingFiles := []ExistingItem{existingItem("/lib", "/m/dup.mp4", 2, CategoryMovie)}
	existingDirs := []ExistingItem{existingItem("/lib", "/m/dup-dir", 0, CategorySeries)}

	kept := r.FilterDuplicates(items, "/lib", existingFiles, existingDirs)

	require.Len(t, kept, 1)
	assert.Equal(t, "/m/new.mp4", kept[0].Path)
}

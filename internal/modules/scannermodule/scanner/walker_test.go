package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmediakit/librarian/internal/utils"
)

// failingExtractor always fails, exercising the best-effort metadata path.
type failingExtractor struct{}

func (failingExtractor) Extract(ctx context.Context, path string) (*TechnicalMetadata, error) {
	return nil, errors.New("extraction blew up")
}

// stubExtractor returns a fixed technical summary.
type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, path string) (*TechnicalMetadata, error) {
	return &TechnicalMetadata{Container: "matroska", VideoCodec: "h264"}, nil
}

func newTestWalker(mediaMeta MediaMetadataExtractor, maxDepth int) *Walker {
	return NewWalker(newTestClassifier(), OSFileMetadata{}, mediaMeta, []string{"@eaDir"}, maxDepth)
}

// createLibraryFixture builds:
//
//	root/
//	  Film (2020)/Film (2020).mp4
//	  Show (2018)/Season 01/Show S01E01.mkv
//	  song.mp3
//	  notes.txt        (not media)
//	  .hidden/x.mp4    (skipped)
//	  @eaDir/y.mp4     (skipped)
//
// which counts 3 directories and 3 media files.
func createLibraryFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := []string{
		"Film (2020)/Film (2020).mp4",
		"Show (2018)/Season 01/Show S01E01.mkv",
		"song.mp3",
		"notes.txt",
		".hidden/x.mp4",
		"@eaDir/y.mp4",
	}
	for _, f := range files {
		full := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("test media data"), 0644))
	}
	return root
}

func TestWalker_CountItems(t *testing.T) {
	w := newTestWalker(nil, 10)
	root := createLibraryFixture(t)

	total, err := w.CountItems(root)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
}

func TestWalker_CountItems_MissingRoot(t *testing.T) {
	w := newTestWalker(nil, 10)

	_, err := w.CountItems("/does/not/exist")
	assert.Error(t, err)
}

func TestWalker_WalkMatchesCount(t *testing.T) {
	w := newTestWalker(nil, 10)
	root := createLibraryFixture(t)

	total, err := w.CountItems(root)
	require.NoError(t, err)

	progress := NewScanProgress("scan-1", root)
	progress.SetTotal(total)

	results, err := w.Walk(context.Background(), root, false, progress)
	require.NoError(t, err)

	snap := progress.Snapshot()
	assert.Equal(t, total, snap.ProcessedItems)
	assert.Len(t, results, int(total))
	assert.Empty(t, snap.Errors)
	assert.InDelta(t, 100.0, snap.Percentage, 0.001)
}

func TestWalker_Classification(t *testing.T) {
	w := newTestWalker(nil, 10)
	root := createLibraryFixture(t)

	progress := NewScanProgress("scan-1", root)
	results, err := w.Walk(context.Background(), root, false, progress)
	require.NoError(t, err)

	categories := make(map[string]MediaCategory)
	kinds := make(map[string]ItemKind)
	for _, item := range results {
		categories[item.Name] = item.MediaCategory
		kinds[item.Name] = item.Kind
	}

	assert.Equal(t, CategoryMovie, categories["Film (2020)"])
	assert.Equal(t, KindDirectory, kinds["Film (2020)"])
	assert.Equal(t, CategorySeries, categories["Show (2018)"])
	assert.Equal(t, CategorySeason, categories["Season 01"])
	assert.Equal(t, CategoryMovie, categories["Film (2020).mp4"])
	assert.Equal(t, CategoryEpisode, categories["Show S01E01.mkv"])
	assert.Equal(t, CategoryUnknown, categories["song.mp3"])

	// Non-media and excluded entries do not appear at all.
	_, found := kinds["notes.txt"]
	assert.False(t, found)
	_, found = kinds[".hidden"]
	assert.False(t, found)
	_, found = kinds["@eaDir"]
	assert.False(t, found)
}

func TestWalker_ParsedInfoAndMetadata(t *testing.T) {
	w := newTestWalker(nil, 10)
	root := createLibraryFixture(t)

	progress := NewScanProgress("scan-1", root)
	results, err := w.Walk(context.Background(), root, false, progress)
	require.NoError(t, err)

	for _, item := range results {
		if item.Name != "Film (2020).mp4" {
			continue
		}
		require.NotNil(t, item.ParsedInfo)
		assert.Equal(t, "Film", item.ParsedInfo.Title)
		require.NotNil(t, item.ParsedInfo.Year)
		assert.Equal(t, 2020, *item.ParsedInfo.Year)
		assert.Equal(t, int64(len("test media data")), item.Metadata.Size)
		assert.Equal(t, ".mp4", item.Extension)
		assert.False(t, item.Metadata.ModifiedTime.IsZero())
		return
	}
	t.Fatal("expected Film (2020).mp4 in results")
}

func TestWalker_DepthLimit(t *testing.T) {
	root := t.TempDir()
	// a (depth 1) / b (depth 2) / c (depth 3), media file at each level.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b", "c"), 0755))
	for _, f := range []string{"top.mp4", "a/one.mp4", "a/b/two.mp4", "a/b/c/three.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, f), []byte("x"), 0644))
	}

	w := newTestWalker(nil, 1)

	// Depth 1: root's files and dirs are processed, "a" is descended into.
	// "b" is counted as a directory but never entered, so two.mp4 and
	// below are invisible.
	total, err := w.CountItems(root)
	require.NoError(t, err)
	// top.mp4 + a + one.mp4 + b
	assert.Equal(t, int64(4), total)

	progress := NewScanProgress("scan-1", root)
	results, err := w.Walk(context.Background(), root, false, progress)
	require.NoError(t, err)
	assert.Equal(t, total, progress.Snapshot().ProcessedItems)
	assert.Len(t, results, 4)
}

func TestWalker_CancellationStopsDescent(t *testing.T) {
	w := newTestWalker(nil, 10)
	root := createLibraryFixture(t)

	progress := NewScanProgress("scan-1", root)
	require.True(t, progress.Cancel())

	results, err := w.Walk(context.Background(), root, false, progress)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int64(0), progress.Snapshot().ProcessedItems)
}

func TestWalker_MetadataExtractionFailureIsNonFatal(t *testing.T) {
	w := newTestWalker(failingExtractor{}, 10)
	root := createLibraryFixture(t)

	progress := NewScanProgress("scan-1", root)
	results, err := w.Walk(context.Background(), root, true, progress)
	require.NoError(t, err)

	snap := progress.Snapshot()
	// One metadata error per media file, but every item is still included.
	assert.Len(t, results, 6)
	require.NotEmpty(t, snap.Errors)
	for _, e := range snap.Errors {
		assert.Equal(t, ErrKindMetadata, e.Kind)
	}
	for _, item := range results {
		assert.Nil(t, item.MediaMetadata)
	}
}

func TestWalker_MetadataExtractionSuccess(t *testing.T) {
	w := newTestWalker(stubExtractor{}, 10)
	root := createLibraryFixture(t)

	progress := NewScanProgress("scan-1", root)
	results, err := w.Walk(context.Background(), root, true, progress)
	require.NoError(t, err)

	var checked bool
	for _, item := range results {
		if item.Kind != KindFile {
			continue
		}
		require.NotNil(t, item.MediaMetadata, "file %s should carry technical metadata", item.Name)
		assert.Equal(t, "matroska", item.MediaMetadata.Container)
		checked = true
	}
	assert.True(t, checked)
	assert.Empty(t, progress.Snapshot().Errors)
}

func TestWalker_EmptyRootYieldsZeroTotal(t *testing.T) {
	w := newTestWalker(nil, 10)
	root := t.TempDir()

	total, err := w.CountItems(root)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	progress := NewScanProgress("scan-1", root)
	progress.SetTotal(total)
	snap := progress.Snapshot()
	assert.Equal(t, 0.0, snap.Percentage)
}

// Guard against the extension set accidentally going case-sensitive.
func TestWalker_UppercaseExtensions(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "FILM.MP4"), []byte("x"), 0644))

	w := NewWalker(
		NewClassifier(utils.DefaultVideoExtensions, nil, nil),
		OSFileMetadata{}, nil, nil, 10,
	)
	total, err := w.CountItems(root)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

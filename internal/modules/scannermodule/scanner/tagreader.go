package scanner

import (
	"context"
	"fmt"
	"os"

	"github.com/dhowden/tag"

	"github.com/openmediakit/librarian/internal/utils"
)

// TagExtractor reads embedded tags from audio files. Video files are routed
// to the ffprobe extractor; everything else is skipped.
type TagExtractor struct {
	audioExtensions utils.ExtensionSet
}

// NewTagExtractor creates a tag reader for the given audio extensions.
func NewTagExtractor(audioExtensions []string) *TagExtractor {
	return &TagExtractor{audioExtensions: utils.NewExtensionSet(audioExtensions)}
}

// Handles reports whether the file is one this extractor can read.
func (e *TagExtractor) Handles(path string) bool {
	return e.audioExtensions.Contains(path)
}

// Extract reads the audio file's embedded tags.
func (e *TagExtractor) Extract(ctx context.Context, path string) (*TechnicalMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}

	return &TechnicalMetadata{
		Container: string(meta.FileType()),
		Title:     meta.Title(),
		Artist:    meta.Artist(),
		Album:     meta.Album(),
		Year:      meta.Year(),
	}, nil
}

// CompositeExtractor routes extraction by file type: ffprobe for video,
// tag reading for audio.
type CompositeExtractor struct {
	video    *FFprobeExtractor
	audio    *TagExtractor
	videoExt utils.ExtensionSet
}

// NewCompositeExtractor builds the default media metadata extractor.
func NewCompositeExtractor(video *FFprobeExtractor, audio *TagExtractor, videoExtensions []string) *CompositeExtractor {
	return &CompositeExtractor{
		video:    video,
		audio:    audio,
		videoExt: utils.NewExtensionSet(videoExtensions),
	}
}

// Extract dispatches to the extractor matching the file type.
func (e *CompositeExtractor) Extract(ctx context.Context, path string) (*TechnicalMetadata, error) {
	if e.videoExt.Contains(path) {
		return e.video.Extract(ctx, path)
	}
	if e.audio.Handles(path) {
		return e.audio.Extract(ctx, path)
	}
	return nil, nil
}

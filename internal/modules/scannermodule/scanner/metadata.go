package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// FileMetadataProvider is the port for basic filesystem metadata.
type FileMetadataProvider interface {
	Stat(path string) (ItemMetadata, error)
}

// MediaMetadataExtractor is the optional port for technical metadata.
// Extraction is best-effort; failures are recorded per item and never abort
// a scan.
type MediaMetadataExtractor interface {
	Extract(ctx context.Context, path string) (*TechnicalMetadata, error)
}

// PathChecker is the path-security port consulted before a scan starts.
type PathChecker interface {
	IsAllowed(path string) bool
}

// OSFileMetadata implements FileMetadataProvider against the local
// filesystem.
type OSFileMetadata struct{}

// Stat returns size, timestamps, and permissions for a path.
func (OSFileMetadata) Stat(path string) (ItemMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ItemMetadata{}, err
	}
	return ItemMetadata{
		Size: info.Size(),
		// File creation time is not portable; mtime stands in.
		CreatedTime:  info.ModTime(),
		ModifiedTime: info.ModTime(),
		Permissions:  info.Mode().String(),
	}, nil
}

// FFprobeExtractor extracts technical metadata from video files by shelling
// out to ffprobe and parsing its JSON output.
type FFprobeExtractor struct {
	ffprobePath string
	timeout     time.Duration
}

// NewFFprobeExtractor creates an extractor using the given ffprobe binary.
func NewFFprobeExtractor(ffprobePath string, timeout time.Duration) *FFprobeExtractor {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FFprobeExtractor{ffprobePath: ffprobePath, timeout: timeout}
}

type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Extract runs ffprobe against the file and maps the result.
func (e *FFprobeExtractor) Extract(ctx context.Context, path string) (*TechnicalMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output for %s: %w", path, err)
	}

	meta := &TechnicalMetadata{Container: probe.Format.FormatName}
	if probe.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			meta.Duration = d
		}
	}
	if probe.Format.BitRate != "" {
		if b, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
			meta.BitRate = b
		}
	}
	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if meta.VideoCodec == "" {
				meta.VideoCodec = stream.CodecName
				meta.Width = stream.Width
				meta.Height = stream.Height
			}
		case "audio":
			if meta.AudioCodec == "" {
				meta.AudioCodec = stream.CodecName
			}
		}
	}
	return meta, nil
}

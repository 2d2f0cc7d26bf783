package utils

import (
	"path/filepath"
	"strings"
)

// ExtensionSet is a case-insensitive file extension membership set.
type ExtensionSet map[string]bool

// NewExtensionSet builds a set from extension lists. Extensions are
// normalized to lowercase with a leading dot.
func NewExtensionSet(lists ...[]string) ExtensionSet {
	set := make(ExtensionSet)
	for _, list := range lists {
		for _, ext := range list {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			set[ext] = true
		}
	}
	return set
}

// Contains reports whether the filename's extension is in the set.
func (s ExtensionSet) Contains(filename string) bool {
	return s[strings.ToLower(filepath.Ext(filename))]
}

// DefaultVideoExtensions lists the video formats recognized out of the box.
var DefaultVideoExtensions = []string{
	".mp4", ".mkv", ".avi", ".mov", ".wmv", ".m4v", ".flv", ".webm",
}

// DefaultAudioExtensions lists the audio formats recognized out of the box.
var DefaultAudioExtensions = []string{
	".mp3", ".flac", ".wav", ".aac", ".ogg",
}

// DefaultSubtitleExtensions lists the subtitle formats recognized out of the box.
var DefaultSubtitleExtensions = []string{
	".srt", ".vtt", ".ass", ".ssa", ".sub", ".idx",
}

package scanner

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/openmediakit/librarian/internal/utils"
)

// Episode marker: S01E01 and friends.
var episodeRx = regexp.MustCompile(`(?i)S(\d+)E(\d+)`)

// Year in parentheses: (1999), (2024).
var yearRx = regexp.MustCompile(`\((\d{4})\)`)

// Classifier holds the extension sets used to decide media eligibility and
// the name-pattern heuristics for coarse categorization. Stateless beyond
// its configuration; safe for concurrent use.
type Classifier struct {
	mediaExtensions utils.ExtensionSet
	videoExtensions utils.ExtensionSet
}

// NewClassifier builds a classifier from extension lists.
func NewClassifier(video, audio, subtitle []string) *Classifier {
	return &Classifier{
		mediaExtensions: utils.NewExtensionSet(video, audio, subtitle),
		videoExtensions: utils.NewExtensionSet(video),
	}
}

// IsMediaFile reports whether the filename has a supported media extension.
func (c *Classifier) IsMediaFile(name string) bool {
	return c.mediaExtensions.Contains(name)
}

// IsVideoFile reports whether the filename has a supported video extension.
func (c *Classifier) IsVideoFile(name string) bool {
	return c.videoExtensions.Contains(name)
}

// FileCategory infers a file's category from its name: an S01E01-style
// marker means episode, a parenthesized year means movie.
func (c *Classifier) FileCategory(name string) MediaCategory {
	if episodeRx.MatchString(name) {
		return CategoryEpisode
	}
	if yearRx.MatchString(name) {
		return CategoryMovie
	}
	return CategoryUnknown
}

// DirectoryCategory infers a directory's category from its name and listing.
// A "season" prefix wins outright. A parenthesized token marks a titled
// folder: it is a movie folder when any sibling file is video-eligible,
// otherwise a series folder.
func (c *Classifier) DirectoryCategory(name string, entries []fs.DirEntry) MediaCategory {
	if strings.HasPrefix(strings.ToLower(name), "season") {
		return CategorySeason
	}
	if strings.Contains(name, "(") && strings.Contains(name, ")") {
		for _, entry := range entries {
			if !entry.IsDir() && c.IsVideoFile(entry.Name()) {
				return CategoryMovie
			}
		}
		return CategorySeries
	}
	return CategoryUnknown
}

// ParseFilename extracts title, year, and season/episode numbers from a
// filename. The title is the prefix preceding the first year or episode
// marker, with the extension stripped.
func (c *Classifier) ParseFilename(name string) ParsedInfo {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	info := ParsedInfo{Title: strings.TrimSpace(base)}

	yearMatch := yearRx.FindStringSubmatchIndex(base)
	if yearMatch != nil {
		if year, err := strconv.Atoi(base[yearMatch[2]:yearMatch[3]]); err == nil {
			info.Year = &year
		}
	}

	episodeMatch := episodeRx.FindStringSubmatchIndex(base)
	if episodeMatch != nil {
		if season, err := strconv.Atoi(base[episodeMatch[2]:episodeMatch[3]]); err == nil {
			info.Season = &season
		}
		if episode, err := strconv.Atoi(base[episodeMatch[4]:episodeMatch[5]]); err == nil {
			info.Episode = &episode
		}
	}

	switch {
	case yearMatch != nil:
		info.Title = strings.TrimSpace(base[:yearMatch[0]])
	case episodeMatch != nil:
		info.Title = strings.TrimSpace(base[:episodeMatch[0]])
	}
	return info
}

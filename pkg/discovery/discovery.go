// Package discovery finds and downloads royalty-free tracks for a mix. It
// queries Jamendo and Freesound, filters candidates by duration, and streams
// the selected mp3s into the music directory.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/haivivi/mixcraft/pkg/freesound"
	"github.com/haivivi/mixcraft/pkg/jamendo"
)

// Default duration bounds for candidate tracks, matching what works well for
// mixing: long enough to transition into, short enough to keep variety.
const (
	DefaultMinDuration = 60 * time.Second
	DefaultMaxDuration = 300 * time.Second
	DefaultMaxTracks   = 5
)

// SourcingError reports that no usable tracks could be obtained for a query.
type SourcingError struct {
	Query string
	Err   error
}

func (e *SourcingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discovery: no tracks for %q: %v", e.Query, e.Err)
	}
	return fmt.Sprintf("discovery: no tracks for %q", e.Query)
}

func (e *SourcingError) Unwrap() error { return e.Err }

// Candidate is a downloadable track found by a search.
type Candidate struct {
	Source    string        `json:"source" yaml:"source"` // jamendo | freesound
	ID        string        `json:"id" yaml:"id"`
	Title     string        `json:"title" yaml:"title"`
	Artist    string        `json:"artist" yaml:"artist"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	SourceURL string        `json:"source_url" yaml:"source_url"`
	Genres    []string      `json:"genres,omitempty" yaml:"genres,omitempty"`
	BPM       float64       `json:"bpm,omitempty" yaml:"bpm,omitempty"`

	// LocalPath is set once the track has been downloaded.
	LocalPath string `json:"local_path,omitempty" yaml:"local_path,omitempty"`
}

// Request bounds a discovery run.
type Request struct {
	// Query is the search text, typically "<genre> <mood>".
	Query string

	// MinDuration and MaxDuration bound candidate track length. Zero values
	// take the package defaults.
	MinDuration time.Duration
	MaxDuration time.Duration

	// MaxTracks caps how many tracks are downloaded (default 5).
	MaxTracks int
}

// Finder searches the configured sources and downloads candidates.
type Finder struct {
	jamendo         *jamendo.Client
	freesound       *freesound.Client
	musicDir        string
	originalQuality bool
	logger          *slog.Logger
}

// Option configures a Finder.
type Option func(*Finder)

// WithJamendo enables the Jamendo source.
func WithJamendo(c *jamendo.Client) Option {
	return func(f *Finder) { f.jamendo = c }
}

// WithFreesound enables the Freesound source.
func WithFreesound(c *freesound.Client) Option {
	return func(f *Finder) { f.freesound = c }
}

// WithMusicDir sets the download directory.
func WithMusicDir(dir string) Option {
	return func(f *Finder) { f.musicDir = dir }
}

// WithOriginalQuality downloads Freesound originals instead of HQ previews.
// Requires the freesound client to carry an OAuth2 token source.
func WithOriginalQuality(v bool) Option {
	return func(f *Finder) { f.originalQuality = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Finder) { f.logger = l }
}

// NewFinder creates a Finder. At least one source must be configured.
func NewFinder(opts ...Option) *Finder {
	f := &Finder{musicDir: ".", logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Discover searches all configured sources, filters by duration, downloads up
// to MaxTracks results, and returns the downloaded candidates. A run that
// yields no downloadable tracks returns a SourcingError.
func (f *Finder) Discover(ctx context.Context, req *Request) ([]Candidate, error) {
	minDur := req.MinDuration
	if minDur == 0 {
		minDur = DefaultMinDuration
	}
	maxDur := req.MaxDuration
	if maxDur == 0 {
		maxDur = DefaultMaxDuration
	}
	maxTracks := req.MaxTracks
	if maxTracks <= 0 {
		maxTracks = DefaultMaxTracks
	}

	var candidates []Candidate
	var searchErr error

	if f.jamendo != nil {
		found, err := f.searchJamendo(ctx, req.Query, minDur, maxDur, maxTracks)
		if err != nil {
			f.logger.Warn("jamendo search failed", "query", req.Query, "error", err)
			searchErr = err
		} else {
			candidates = append(candidates, found...)
		}
	}
	if f.freesound != nil {
		found, err := f.searchFreesound(ctx, req.Query, minDur, maxDur, maxTracks)
		if err != nil {
			f.logger.Warn("freesound search failed", "query", req.Query, "error", err)
			searchErr = err
		} else {
			candidates = append(candidates, found...)
		}
	}

	if len(candidates) == 0 {
		return nil, &SourcingError{Query: req.Query, Err: searchErr}
	}
	if len(candidates) > maxTracks {
		candidates = candidates[:maxTracks]
	}

	if err := os.MkdirAll(f.musicDir, 0o755); err != nil {
		return nil, fmt.Errorf("discovery: create music dir: %w", err)
	}

	var downloaded []Candidate
	for i := range candidates {
		c := &candidates[i]
		if err := f.download(ctx, c); err != nil {
			f.logger.Warn("download failed", "source", c.Source, "id", c.ID, "error", err)
			continue
		}
		f.logger.Info("downloaded track", "title", c.Title, "artist", c.Artist, "path", c.LocalPath)
		downloaded = append(downloaded, *c)
	}

	if len(downloaded) == 0 {
		return nil, &SourcingError{Query: req.Query, Err: fmt.Errorf("all downloads failed")}
	}
	return downloaded, nil
}

func (f *Finder) searchJamendo(ctx context.Context, query string, minDur, maxDur time.Duration, limit int) ([]Candidate, error) {
	tracks, err := f.jamendo.Tracks.Search(ctx, &jamendo.SearchRequest{
		Query: query,
		Tags:  []string{"instrumental"},
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, t := range tracks {
		dur := time.Duration(t.Duration) * time.Second
		if dur < minDur || dur > maxDur {
			continue
		}
		out = append(out, Candidate{
			Source:    "jamendo",
			ID:        t.ID,
			Title:     t.Name,
			Artist:    t.ArtistName,
			Duration:  dur,
			SourceURL: t.Audio,
			Genres:    t.MusicInfo.Tags.Genres,
			BPM:       t.MusicInfo.BPM,
		})
	}
	return out, nil
}

func (f *Finder) searchFreesound(ctx context.Context, query string, minDur, maxDur time.Duration, limit int) ([]Candidate, error) {
	sounds, err := f.freesound.Sounds.Search(ctx, &freesound.SearchRequest{
		Query:    query + " music instrumental",
		Filter:   freesound.DurationFilter(int(minDur.Seconds()), int(maxDur.Seconds())),
		PageSize: limit,
	})
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, s := range sounds {
		url := s.Previews.HQMP3
		if f.originalQuality {
			url = s.Download
		}
		out = append(out, Candidate{
			Source:    "freesound",
			ID:        strconv.Itoa(s.ID),
			Title:     s.Name,
			Artist:    s.Username,
			Duration:  time.Duration(s.Duration * float64(time.Second)),
			SourceURL: url,
			Genres:    s.Tags,
		})
	}
	return out, nil
}

func (f *Finder) download(ctx context.Context, c *Candidate) error {
	name := fmt.Sprintf("%s_%s.mp3", sanitizeName(c.Artist+"_"+c.Title), c.ID)
	path := filepath.Join(f.musicDir, name)

	out, err := os.Create(path)
	if err != nil {
		return err
	}

	switch c.Source {
	case "jamendo":
		err = f.jamendo.Tracks.Download(ctx, &jamendo.Track{ID: c.ID, Audio: c.SourceURL}, out)
	case "freesound":
		sound := &freesound.Sound{
			Previews: freesound.Previews{HQMP3: c.SourceURL},
			Download: c.SourceURL,
		}
		if f.originalQuality {
			err = f.freesound.Sounds.DownloadOriginal(ctx, sound, out)
		} else {
			err = f.freesound.Sounds.DownloadPreview(ctx, sound, out)
		}
	default:
		err = fmt.Errorf("unknown source %q", c.Source)
	}

	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	c.LocalPath = path
	return nil
}

// sanitizeName keeps letters, digits, spaces, hyphens, and underscores.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

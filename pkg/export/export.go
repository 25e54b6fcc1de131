// Package export finalizes a rendered mix: a mastering pass, a timestamped
// file in the exports directory, a human-readable report, and a YAML
// metadata sidecar.
package export

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haivivi/mixcraft/pkg/audio"
	"github.com/haivivi/mixcraft/pkg/feedback"
	"github.com/haivivi/mixcraft/pkg/mix"
	"github.com/haivivi/mixcraft/pkg/producer"
)

// Request describes one export.
type Request struct {
	// Title names the mix. It is sanitized into the export filename.
	Title string

	// Prompt is the user request that produced the mix.
	Prompt string

	Result    *mix.Result
	Plan      *producer.MixPlan
	Critiques []*producer.Critique
	Status    feedback.Status
}

// Manifest describes the files an export produced.
type Manifest struct {
	Title        string        `json:"title" yaml:"title"`
	AudioPath    string        `json:"audio_path" yaml:"audio_path"`
	ReportPath   string        `json:"report_path" yaml:"report_path"`
	MetadataPath string        `json:"metadata_path" yaml:"metadata_path"`
	SizeBytes    int64         `json:"size_bytes" yaml:"size_bytes"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	ExportedAt   time.Time     `json:"exported_at" yaml:"exported_at"`
}

// Exporter writes finished mixes into a directory.
type Exporter struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Exporter)

func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// WithClock overrides the timestamp source. Tests use it for stable names.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

func NewExporter(dir string, opts ...Option) *Exporter {
	e := &Exporter{
		dir:    dir,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export masters the rendered mix and writes it, a text report, and a YAML
// sidecar into the exports directory.
func (e *Exporter) Export(req *Request) (*Manifest, error) {
	if req.Result == nil || req.Result.AudioPath == "" {
		return nil, fmt.Errorf("export: no rendered mix to export")
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	clip, err := audio.DecodeFile(req.Result.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("export: read render: %w", err)
	}
	master(clip)

	base := fmt.Sprintf("%s_%s", sanitizeTitle(req.Title), e.now().Format("20060102_150405"))
	audioPath := filepath.Join(e.dir, base+".wav")
	if err := audio.EncodeWAV(audioPath, clip); err != nil {
		return nil, fmt.Errorf("export: write %s: %w", audioPath, err)
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	m := &Manifest{
		Title:      req.Title,
		AudioPath:  audioPath,
		SizeBytes:  info.Size(),
		Duration:   clip.Duration(),
		ExportedAt: e.now(),
	}

	// Report and sidecar failures do not invalidate the exported audio.
	reportPath := filepath.Join(e.dir, base+"_report.txt")
	if err := os.WriteFile(reportPath, []byte(renderReport(req, m)), 0o644); err != nil {
		e.logger.Warn("could not write mix report", "path", reportPath, "error", err)
	} else {
		m.ReportPath = reportPath
	}

	metaPath := filepath.Join(e.dir, base+".yaml")
	if err := writeMetadata(metaPath, req, m); err != nil {
		e.logger.Warn("could not write metadata sidecar", "path", metaPath, "error", err)
	} else {
		m.MetadataPath = metaPath
	}

	e.logger.Info("mix exported",
		"path", audioPath,
		"duration", clip.Duration().Round(time.Second),
		"size_bytes", info.Size(),
	)
	return m, nil
}

// Package bundles an export's files plus a README into a zip archive next
// to the exported audio, and returns the archive path.
func (e *Exporter) Package(m *Manifest) (string, error) {
	base := strings.TrimSuffix(filepath.Base(m.AudioPath), filepath.Ext(m.AudioPath))
	zipPath := filepath.Join(e.dir, base+"_package.zip")

	f, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("export: package: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, p := range []string{m.AudioPath, m.ReportPath, m.MetadataPath} {
		if p == "" {
			continue
		}
		if err := addZipFile(zw, p); err != nil {
			zw.Close()
			return "", fmt.Errorf("export: package %s: %w", p, err)
		}
	}
	w, err := zw.Create("README.md")
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("export: package: %w", err)
	}
	if _, err := io.WriteString(w, packageReadme(m)); err != nil {
		zw.Close()
		return "", fmt.Errorf("export: package: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("export: package: %w", err)
	}
	return zipPath, nil
}

// master applies the final processing chain: normalize to -1 dB peak,
// light compression, and head/tail fades when the render has none.
func master(c *audio.Clip) {
	c.Normalize(1.0)
	c.Compress(-20, 2.0)

	if c.Duration() <= 10*time.Second {
		return
	}
	overall := c.RMS()
	if c.Slice(0, time.Second).RMS() > overall*0.5 {
		c.FadeIn(500 * time.Millisecond)
	}
	tail := c.Duration() - time.Second
	if c.Slice(tail, c.Duration()).RMS() > overall*0.5 {
		c.FadeOut(time.Second)
	}
}

func sanitizeTitle(title string) string {
	if title == "" {
		return "mix"
	}
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return "mix"
	}
	return s
}

func renderReport(req *Request, m *Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mix: %s\n", req.Title)
	fmt.Fprintf(&b, "Exported: %s\n", m.ExportedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration: %s\n", m.Duration.Round(time.Second))
	fmt.Fprintf(&b, "Status: %s\n", req.Status)
	if req.Prompt != "" {
		fmt.Fprintf(&b, "Prompt: %s\n", req.Prompt)
	}
	if req.Plan != nil {
		fmt.Fprintf(&b, "Mood: %s  Genre: %s\n", req.Plan.Mood, req.Plan.Genre)
	}
	fmt.Fprintf(&b, "Refinements: %d\n", req.Result.IterationCount)

	b.WriteString("\nTracklist:\n")
	for i, t := range req.Result.TrackSequence {
		fmt.Fprintf(&b, "  %d. %s - %s [%s %s]\n", i+1, t.Artist, t.Title, t.Source, t.ID)
	}

	if len(req.Result.TransitionPoints) > 0 {
		b.WriteString("\nTransitions:\n")
		for _, p := range req.Result.TransitionPoints {
			fmt.Fprintf(&b, "  %s\n", p.Round(100*time.Millisecond))
		}
	}

	if len(req.Critiques) > 0 {
		b.WriteString("\nCritiques:\n")
		for i, c := range req.Critiques {
			fmt.Fprintf(&b, "  %d. score %.1f: %s\n", i+1, c.QualityScore, c.Notes)
			for _, a := range c.Adjustments {
				fmt.Fprintf(&b, "     - %s: %s\n", a.Action, a.Reason)
			}
		}
	}
	return b.String()
}

type metadataFile struct {
	Title      string          `yaml:"title"`
	Prompt     string          `yaml:"prompt,omitempty"`
	ExportedAt time.Time       `yaml:"exported_at"`
	Duration   string          `yaml:"duration"`
	Status     feedback.Status `yaml:"status"`
	Iterations int             `yaml:"iterations"`
	Mood       string          `yaml:"mood,omitempty"`
	Genre      string          `yaml:"genre,omitempty"`
	Tempo      float64         `yaml:"average_tempo,omitempty"`
	Score      float64         `yaml:"quality_score,omitempty"`
	Tracks     []metadataTrack `yaml:"tracks"`
}

type metadataTrack struct {
	Source   string `yaml:"source"`
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Artist   string `yaml:"artist"`
	URL      string `yaml:"url,omitempty"`
	Duration string `yaml:"duration,omitempty"`
}

func writeMetadata(path string, req *Request, m *Manifest) error {
	meta := metadataFile{
		Title:      req.Title,
		Prompt:     req.Prompt,
		ExportedAt: m.ExportedAt,
		Duration:   m.Duration.Round(time.Second).String(),
		Status:     req.Status,
		Iterations: req.Result.IterationCount,
		Tempo:      req.Result.AverageTempo,
	}
	if req.Plan != nil {
		meta.Mood = req.Plan.Mood
		meta.Genre = req.Plan.Genre
	}
	if n := len(req.Critiques); n > 0 {
		meta.Score = req.Critiques[n-1].QualityScore
	}
	for _, t := range req.Result.TrackSequence {
		meta.Tracks = append(meta.Tracks, metadataTrack{
			Source:   t.Source,
			ID:       t.ID,
			Title:    t.Title,
			Artist:   t.Artist,
			URL:      t.SourceURL,
			Duration: t.Duration.Round(time.Second).String(),
		})
	}
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func addZipFile(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

func packageReadme(m *Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", m.Title)
	fmt.Fprintf(&b, "Generated %s. Duration %s.\n\n", m.ExportedAt.Format("2006-01-02 15:04"), m.Duration.Round(time.Second))
	b.WriteString("Files:\n\n")
	fmt.Fprintf(&b, "- `%s` - the final mix (16-bit WAV)\n", filepath.Base(m.AudioPath))
	if m.ReportPath != "" {
		fmt.Fprintf(&b, "- `%s` - generation report\n", filepath.Base(m.ReportPath))
	}
	if m.MetadataPath != "" {
		fmt.Fprintf(&b, "- `%s` - mix metadata\n", filepath.Base(m.MetadataPath))
	}
	b.WriteString("\nSource tracks are royalty-free; verify licensing before commercial use.\n")
	return b.String()
}

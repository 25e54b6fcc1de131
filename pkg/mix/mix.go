// Package mix assembles analyzed tracks into a single rendered mix. The
// engine supports crossfade, beat-matched, and simple transitions, three mix
// styles, and a target-duration trim, and records the track sequence and
// transition points of each render.
package mix

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/mixcraft/pkg/analysis"
	"github.com/haivivi/mixcraft/pkg/audio"
	"github.com/haivivi/mixcraft/pkg/discovery"
	"github.com/haivivi/mixcraft/pkg/producer"
)

// DefaultFadeDuration matches the fade the assembler uses when the plan does
// not specify one.
const DefaultFadeDuration = 3 * time.Second

// RenderError reports a failed mix render.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("mix: render failed: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Track pairs a downloaded candidate with its analysis.
type Track struct {
	Candidate discovery.Candidate
	Analysis  *analysis.Analysis
}

// Params control one render.
type Params struct {
	// TransitionType is one of producer.TransitionCrossfade,
	// TransitionBeatMatch, TransitionSimple.
	TransitionType string

	// Style is one of producer.StyleSeamless, StyleEnergetic, StyleBasic.
	Style string

	// FadeDuration is the crossfade length (default 3s).
	FadeDuration time.Duration

	// TargetDuration trims the mix when it runs longer. Zero keeps the
	// natural length.
	TargetDuration time.Duration

	// GainDB applies an overall gain before mastering.
	GainDB float64

	// TrimStart and TrimEnd cut the rendered mix before mastering. Zero
	// TrimEnd means the natural end.
	TrimStart time.Duration
	TrimEnd   time.Duration
}

// Result describes one rendered mix. It is the unit the feedback loop
// critiques and refines; AudioPath always points at the newest render.
type Result struct {
	AudioPath        string                `json:"audio_path" yaml:"audio_path"`
	Duration         time.Duration         `json:"duration" yaml:"duration"`
	TrackSequence    []discovery.Candidate `json:"track_sequence" yaml:"track_sequence"`
	TransitionPoints []time.Duration       `json:"transition_points" yaml:"transition_points"`
	IterationCount   int                   `json:"iteration_count" yaml:"iteration_count"`
	AverageTempo     float64               `json:"average_tempo" yaml:"average_tempo"`
	EnergyFlow       []string              `json:"energy_flow" yaml:"energy_flow"`
	Params           Params                `json:"-" yaml:"-"`
}

// Engine renders mixes into a working directory.
type Engine struct {
	workDir string
	format  audio.Format
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkDir sets the directory draft renders are written to.
func WithWorkDir(dir string) Option {
	return func(e *Engine) { e.workDir = dir }
}

// WithFormat sets the working PCM format.
func WithFormat(f audio.Format) Option {
	return func(e *Engine) { e.format = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		workDir: os.TempDir(),
		format:  audio.DefaultFormat,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render assembles the tracks into a single mix and writes a draft WAV into
// the work directory.
func (e *Engine) Render(ctx context.Context, tracks []Track, params Params) (*Result, error) {
	if len(tracks) == 0 {
		return nil, &RenderError{Err: fmt.Errorf("no tracks to mix")}
	}
	if params.FadeDuration <= 0 {
		params.FadeDuration = DefaultFadeDuration
	}

	segments, err := e.loadSegments(ctx, tracks)
	if err != nil {
		return nil, &RenderError{Err: err}
	}

	var mixed *audio.Clip
	var transitions []time.Duration
	switch params.Style {
	case producer.StyleEnergetic:
		segments = sortByEnergy(segments)
		mixed, transitions = e.renderEnergetic(segments, params)
	case producer.StyleBasic:
		mixed, transitions = e.renderBasic(segments, params)
	default:
		mixed, transitions = e.renderSeamless(segments, params)
	}

	if params.TrimStart > 0 || params.TrimEnd > 0 {
		end := params.TrimEnd
		if end <= 0 || end > mixed.Duration() {
			end = mixed.Duration()
		}
		mixed = mixed.Slice(params.TrimStart, end)
		transitions = shiftTransitions(transitions, params.TrimStart, mixed.Duration())
	}

	if params.TargetDuration > 0 && mixed.Duration() > params.TargetDuration {
		mixed = mixed.Slice(0, params.TargetDuration).FadeOut(2 * time.Second)
		transitions = shiftTransitions(transitions, 0, params.TargetDuration)
		e.logger.Debug("trimmed mix to target duration", "target", params.TargetDuration)
	}

	if params.GainDB != 0 {
		mixed.Gain(params.GainDB)
	}
	mixed.Normalize(0.1)
	mixed.Compress(-20, 4)

	if err := os.MkdirAll(e.workDir, 0o755); err != nil {
		return nil, &RenderError{Err: err}
	}
	path := filepath.Join(e.workDir, fmt.Sprintf("mix_draft_%s.wav", uuid.NewString()[:8]))
	if err := audio.EncodeWAV(path, mixed); err != nil {
		return nil, &RenderError{Err: err}
	}

	result := &Result{
		AudioPath:        path,
		Duration:         mixed.Duration(),
		TransitionPoints: transitions,
		Params:           params,
	}
	var tempoSum float64
	var tempoCount int
	for _, s := range segments {
		result.TrackSequence = append(result.TrackSequence, s.track.Candidate)
		if a := s.track.Analysis; a != nil {
			result.EnergyFlow = append(result.EnergyFlow, a.EnergyLevel)
			if a.Tempo > 0 {
				tempoSum += a.Tempo
				tempoCount++
			}
		} else {
			result.EnergyFlow = append(result.EnergyFlow, "medium")
		}
	}
	if tempoCount > 0 {
		result.AverageTempo = tempoSum / float64(tempoCount)
	} else {
		result.AverageTempo = 120
	}

	e.logger.Info("rendered mix",
		"path", path,
		"duration", result.Duration,
		"tracks", len(segments),
		"style", params.Style,
	)
	return result, nil
}

// segment is a decoded, normalized track ready for assembly.
type segment struct {
	track Track
	clip  *audio.Clip
}

func (e *Engine) loadSegments(ctx context.Context, tracks []Track) ([]segment, error) {
	var segments []segment
	for _, t := range tracks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clip, err := audio.DecodeFile(t.Candidate.LocalPath)
		if err != nil {
			e.logger.Warn("skipping unreadable track", "path", t.Candidate.LocalPath, "error", err)
			continue
		}
		clip, err = audio.Convert(clip, e.format)
		if err != nil {
			return nil, err
		}
		clip.Normalize(0.1)
		if t.Analysis != nil {
			applyMoodEQ(clip, t.Analysis.Mood)
		}
		segments = append(segments, segment{track: t, clip: clip})
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("no readable tracks")
	}
	return segments, nil
}

// applyMoodEQ colors a track the way its mood suggests: warm for calm
// tracks, brighter for energetic ones.
func applyMoodEQ(c *audio.Clip, mood string) {
	switch mood {
	case "calm":
		c.LowPass(8000).Gain(1)
	case "energetic":
		bright := c.Clone().HighPass(3000)
		c.Gain(-3).Overlay(bright, 0)
	}
}

// renderSeamless chains tracks with full-length crossfades (or beat-matched
// crossfades).
func (e *Engine) renderSeamless(segments []segment, params Params) (*audio.Clip, []time.Duration) {
	mixed := segments[0].clip
	var transitions []time.Duration

	for i := 1; i < len(segments); i++ {
		next := segments[i].clip
		switch params.TransitionType {
		case producer.TransitionBeatMatch:
			prevTempo := segmentTempo(segments[i-1])
			nextTempo := segmentTempo(segments[i])
			next = e.matchTempo(next, nextTempo, (prevTempo+nextTempo)/2)
			fallthrough
		case producer.TransitionCrossfade:
			var at time.Duration
			mixed, at = crossfade(mixed, next, params.FadeDuration)
			transitions = append(transitions, at)
		default:
			mixed.FadeOut(params.FadeDuration / 2)
			transitions = append(transitions, mixed.Duration())
			mixed.Append(next.FadeIn(params.FadeDuration / 2))
		}
	}
	return mixed, transitions
}

// renderEnergetic uses only the high-energy span of each track and short
// crossfades. Callers sort segments by energy first.
func (e *Engine) renderEnergetic(segments []segment, params Params) (*audio.Clip, []time.Duration) {
	shortFade := params.FadeDuration / 2
	var mixed *audio.Clip
	var transitions []time.Duration

	for _, s := range segments {
		clip := s.clip
		if a := s.track.Analysis; a != nil {
			end := a.Mixing.BestMixOut
			if end <= a.Mixing.BestMixIn || end > clip.Duration() {
				end = clip.Duration()
			}
			clip = clip.Slice(a.Mixing.BestMixIn, end)
		}
		clip.Gain(2)

		if mixed == nil {
			mixed = clip.FadeIn(shortFade)
			continue
		}
		var at time.Duration
		mixed, at = crossfade(mixed, clip, shortFade)
		transitions = append(transitions, at)
	}
	return mixed, transitions
}

// renderBasic concatenates tracks with fades on both ends.
func (e *Engine) renderBasic(segments []segment, params Params) (*audio.Clip, []time.Duration) {
	var mixed *audio.Clip
	var transitions []time.Duration

	for i, s := range segments {
		if i == 0 {
			mixed = s.clip.FadeIn(params.FadeDuration)
			continue
		}
		if params.TransitionType == producer.TransitionCrossfade {
			var at time.Duration
			mixed, at = crossfade(mixed, s.clip, params.FadeDuration)
			transitions = append(transitions, at)
		} else {
			transitions = append(transitions, mixed.Duration())
			mixed.Append(s.clip.FadeIn(params.FadeDuration / 2))
		}
	}
	return mixed.FadeOut(params.FadeDuration), transitions
}

// crossfade overlays next onto the tail of mixed, fading both, and returns
// the transition position.
func crossfade(mixed, next *audio.Clip, fade time.Duration) (*audio.Clip, time.Duration) {
	if d := mixed.Duration(); fade > d {
		fade = d
	}
	if d := next.Duration(); fade > d {
		fade = d
	}
	at := mixed.Duration() - fade
	mixed.FadeOut(fade)
	next.FadeIn(fade)
	mixed.Overlay(next, at)
	return mixed, at
}

// matchTempo nudges a clip toward the target tempo by resampling, within a
// ±10% window so pitch shift stays unobtrusive.
func (e *Engine) matchTempo(c *audio.Clip, tempo, target float64) *audio.Clip {
	if tempo <= 0 || target <= 0 {
		return c
	}
	ratio := target / tempo
	if ratio < 0.9 || ratio > 1.1 || ratio == 1.0 {
		return c
	}
	// Reinterpret the samples at a scaled rate, then convert back. Playback
	// speeds up by ratio.
	scaled := &audio.Clip{
		Format: audio.Format{
			SampleRate: int(float64(c.Format.SampleRate) * ratio),
			Stereo:     c.Format.Stereo,
		},
		Samples: c.Samples,
	}
	out, err := audio.Convert(scaled, c.Format)
	if err != nil {
		e.logger.Warn("tempo match failed", "error", err)
		return c
	}
	return out
}

func segmentTempo(s segment) float64 {
	if s.track.Analysis != nil && s.track.Analysis.Tempo > 0 {
		return s.track.Analysis.Tempo
	}
	if s.track.Candidate.BPM > 0 {
		return s.track.Candidate.BPM
	}
	return 120
}

func sortByEnergy(segments []segment) []segment {
	out := make([]segment, len(segments))
	copy(out, segments)
	sort.SliceStable(out, func(i, j int) bool {
		return segmentEnergy(out[i]) < segmentEnergy(out[j])
	})
	return out
}

func segmentEnergy(s segment) float64 {
	if s.track.Analysis != nil {
		return s.track.Analysis.EnergyMean
	}
	return 0
}

// shiftTransitions drops transition points that fell outside the kept span
// and rebases the rest to the new origin.
func shiftTransitions(points []time.Duration, start, length time.Duration) []time.Duration {
	var out []time.Duration
	for _, p := range points {
		p -= start
		if p < 0 || p > length {
			continue
		}
		out = append(out, p)
	}
	return out
}

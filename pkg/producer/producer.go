// Package producer is the language-model boundary of the mixer. A Producer
// turns a free-text request into a structured mix plan, critiques rendered
// mixes, and suggests prompts. The OpenAI implementation talks to the chat
// completions API with structured outputs; StubProducer provides canned
// responses for tests and offline runs.
package producer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Errors reported when a model response cannot be turned into the expected
// structure even after repair.
var (
	ErrPlanParse     = errors.New("producer: mix plan response not parseable")
	ErrCritiqueParse = errors.New("producer: critique response not parseable")
)

// Transition types understood by mix assembly.
const (
	TransitionCrossfade = "crossfade"
	TransitionBeatMatch = "beat_match"
	TransitionSimple    = "simple"
)

// Mix styles understood by mix assembly.
const (
	StyleSeamless  = "seamless"
	StyleEnergetic = "energetic"
	StyleBasic     = "basic"
)

// MixPlan is the structured interpretation of a user prompt.
type MixPlan struct {
	// Mood and Genre describe the requested feel, e.g. "chill", "lofi".
	Mood  string `json:"mood" yaml:"mood"`
	Genre string `json:"genre" yaml:"genre"`

	// TempoLow and TempoHigh bound the requested tempo in BPM.
	TempoLow  float64 `json:"tempo_low" yaml:"tempo_low"`
	TempoHigh float64 `json:"tempo_high" yaml:"tempo_high"`

	// TargetDuration is the requested mix length.
	TargetDuration time.Duration `json:"target_duration" yaml:"target_duration"`

	// SearchQuery is the text to feed the music source APIs.
	SearchQuery string `json:"search_query" yaml:"search_query"`

	// TransitionType is one of the Transition constants.
	TransitionType string `json:"transition_type" yaml:"transition_type"`

	// MixStyle is one of the Style constants.
	MixStyle string `json:"mix_style" yaml:"mix_style"`
}

// TrackInfo summarizes one track of a rendered mix for the critique call.
type TrackInfo struct {
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Tempo       float64 `json:"tempo"`
	Key         string  `json:"key"`
	EnergyLevel string  `json:"energy_level"`
}

// MixSummary describes a rendered mix to the critic. It carries metadata
// only; the audio itself is never uploaded.
type MixSummary struct {
	Prompt           string          `json:"prompt"`
	Plan             *MixPlan        `json:"plan"`
	Duration         time.Duration   `json:"duration"`
	Tracks           []TrackInfo     `json:"tracks"`
	TransitionPoints []time.Duration `json:"transition_points"`
	FadeDuration     time.Duration   `json:"fade_duration"`
	AverageTempo     float64         `json:"average_tempo"`
	EnergyFlow       []string        `json:"energy_flow"`
	Iteration        int             `json:"iteration"`
}

// Adjustment is one actionable change suggested by a critique.
type Adjustment struct {
	// Action is one of: volume_adjust, crossfade, trim, fade_adjustment,
	// reorder.
	Action string `json:"action"`

	// GainDB applies to volume_adjust.
	GainDB float64 `json:"gain_db,omitempty"`

	// FadeDuration applies to crossfade and fade_adjustment.
	FadeDuration time.Duration `json:"fade_duration,omitempty"`

	// TrimStart and TrimEnd apply to trim.
	TrimStart time.Duration `json:"trim_start,omitempty"`
	TrimEnd   time.Duration `json:"trim_end,omitempty"`

	// Reason explains the suggestion.
	Reason string `json:"reason,omitempty"`
}

// Critique is the structured feedback for one rendered mix.
type Critique struct {
	// QualityScore rates the mix from 0 to 10.
	QualityScore float64 `json:"quality_score"`

	// MatchesRequest reports whether the mix fits the original prompt.
	MatchesRequest bool `json:"matches_request"`

	// Notes is free-text feedback.
	Notes string `json:"notes"`

	// Adjustments are the concrete changes to try next.
	Adjustments []Adjustment `json:"adjustments"`
}

// Producer interprets prompts, critiques mixes, and suggests prompt ideas.
type Producer interface {
	// InterpretPrompt turns a free-text request into a MixPlan. maxDuration
	// caps the plan's target duration; zero means no cap.
	InterpretPrompt(ctx context.Context, prompt string, maxDuration time.Duration) (*MixPlan, error)

	// CritiqueMix rates a rendered mix and suggests adjustments.
	CritiqueMix(ctx context.Context, summary *MixSummary) (*Critique, error)

	// SuggestPrompts proposes example prompts for the given mood/genre.
	SuggestPrompts(ctx context.Context, mood, genre string, duration time.Duration) ([]string, error)
}

// StubProducer is a deterministic Producer for tests and offline use.
type StubProducer struct {
	// Plan is returned by InterpretPrompt; a nil Plan yields a default.
	Plan *MixPlan

	// Critiques are returned by CritiqueMix in order; when exhausted, the
	// last one repeats. Empty yields an accepting critique.
	Critiques []*Critique

	// Suggestions are returned by SuggestPrompts.
	Suggestions []string

	// Err, when set, is returned by every call.
	Err error

	critiqueCalls int
}

var _ Producer = (*StubProducer)(nil)

// InterpretPrompt returns the configured plan, clamped to maxDuration.
func (s *StubProducer) InterpretPrompt(_ context.Context, prompt string, maxDuration time.Duration) (*MixPlan, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	plan := s.Plan
	if plan == nil {
		plan = &MixPlan{
			Mood:           "chill",
			Genre:          "lofi",
			TempoLow:       70,
			TempoHigh:      100,
			TargetDuration: 3 * time.Minute,
			SearchQuery:    prompt,
			TransitionType: TransitionCrossfade,
			MixStyle:       StyleSeamless,
		}
	}
	out := *plan
	if maxDuration > 0 && (out.TargetDuration == 0 || out.TargetDuration > maxDuration) {
		out.TargetDuration = maxDuration
	}
	return &out, nil
}

// CritiqueMix returns the next configured critique.
func (s *StubProducer) CritiqueMix(context.Context, *MixSummary) (*Critique, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Critiques) == 0 {
		return &Critique{QualityScore: 10, MatchesRequest: true, Notes: "ok"}, nil
	}
	i := s.critiqueCalls
	if i >= len(s.Critiques) {
		i = len(s.Critiques) - 1
	}
	s.critiqueCalls++
	return s.Critiques[i], nil
}

// CritiqueCalls reports how many times CritiqueMix was invoked.
func (s *StubProducer) CritiqueCalls() int { return s.critiqueCalls }

// SuggestPrompts returns the configured suggestions.
func (s *StubProducer) SuggestPrompts(_ context.Context, mood, genre string, _ time.Duration) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Suggestions) > 0 {
		return s.Suggestions, nil
	}
	return []string{fmt.Sprintf("a %s %s mix for a rainy afternoon", mood, genre)}, nil
}

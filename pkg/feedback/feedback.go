// Package feedback drives the critique/refine loop: it asks the critic to
// rate a rendered mix, translates the suggested adjustments into new mixing
// parameters, and re-renders until the mix is accepted or the iteration
// budget runs out. Critique failures never abort a run; the loop degrades to
// the last good result instead.
package feedback

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/haivivi/mixcraft/pkg/mix"
	"github.com/haivivi/mixcraft/pkg/producer"
)

// Defaults for the loop configuration.
const (
	DefaultMaxIterations = 3
	DefaultThreshold     = 8.0
)

// Status is the terminal state of a loop run.
type Status string

const (
	// StatusAccepted means a critique met the quality threshold.
	StatusAccepted Status = "accepted"

	// StatusExhausted means the iteration budget ran out without
	// acceptance. Not an error; the result is best-effort.
	StatusExhausted Status = "exhausted"

	// StatusDegraded means a critique or render failure was absorbed and
	// the last good result returned.
	StatusDegraded Status = "degraded"
)

// Critic rates a rendered mix. *producer.OpenAIProducer and
// *producer.StubProducer both satisfy it.
type Critic interface {
	CritiqueMix(ctx context.Context, summary *producer.MixSummary) (*producer.Critique, error)
}

// Assembler re-renders a mix with updated parameters. *mix.Engine satisfies
// it.
type Assembler interface {
	Render(ctx context.Context, tracks []mix.Track, params mix.Params) (*mix.Result, error)
}

// Outcome is the final state of a loop run.
type Outcome struct {
	// Result is the final mix. Its IterationCount equals the number of
	// completed refinement renders; the initial render is not counted.
	Result *mix.Result

	// Status is the terminal state.
	Status Status

	// Critiques are all critiques obtained, in order, for reporting.
	Critiques []*producer.Critique

	// Err carries the absorbed failure when Status is degraded.
	Err error
}

// Loop refines a rendered mix through critique iterations.
type Loop struct {
	critic        Critic
	assembler     Assembler
	maxIterations int
	threshold     float64
	logger        *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxIterations sets the refinement budget N. Zero is valid: the initial
// render is critiqued once and returned as-is.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n < 0 {
			n = 0
		}
		l.maxIterations = n
	}
}

// WithThreshold sets the acceptance threshold T on the critic's 0-10 scale.
func WithThreshold(t float64) Option {
	return func(l *Loop) { l.threshold = t }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loop) { l.logger = log }
}

// NewLoop creates a Loop with the given critic and assembler.
func NewLoop(critic Critic, assembler Assembler, opts ...Option) *Loop {
	l := &Loop{
		critic:        critic,
		assembler:     assembler,
		maxIterations: DefaultMaxIterations,
		threshold:     DefaultThreshold,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run refines the initial render until a critique meets the threshold
// (accepted), the budget is exhausted, or a failure degrades the run. The
// returned outcome always carries a usable result; Run never returns an
// error for critique or render failures.
//
// Iteration indexing: the initial render is iteration 0 and is not counted
// as a refinement. With budget N the loop makes at most N refinement renders
// and N+1 critique calls.
func (l *Loop) Run(ctx context.Context, initial *mix.Result, plan *producer.MixPlan, prompt string, tracks []mix.Track) *Outcome {
	current := initial
	current.IterationCount = 0
	var critiques []*producer.Critique
	iterations := 0

	for {
		summary := l.buildSummary(current, plan, prompt, tracks, iterations)
		crit, err := l.critic.CritiqueMix(ctx, summary)
		if err != nil {
			l.logger.Warn("critique failed, keeping last good mix", "iteration", iterations, "error", err)
			return &Outcome{Result: current, Status: StatusDegraded, Critiques: critiques, Err: err}
		}
		critiques = append(critiques, crit)
		l.logger.Info("critique received",
			"iteration", iterations,
			"score", crit.QualityScore,
			"threshold", l.threshold,
		)

		if crit.QualityScore >= l.threshold {
			return &Outcome{Result: current, Status: StatusAccepted, Critiques: critiques}
		}
		if iterations >= l.maxIterations {
			return &Outcome{Result: current, Status: StatusExhausted, Critiques: critiques}
		}

		params := applyAdjustments(current.Params, crit.Adjustments)
		refined, err := l.assembler.Render(ctx, tracks, params)
		if err != nil {
			l.logger.Warn("refinement render failed, keeping last good mix", "iteration", iterations, "error", err)
			return &Outcome{Result: current, Status: StatusDegraded, Critiques: critiques, Err: err}
		}

		// Prior renders are discarded, not retained for rollback.
		if current.AudioPath != "" && current.AudioPath != refined.AudioPath {
			if rmErr := os.Remove(current.AudioPath); rmErr != nil {
				l.logger.Debug("could not remove prior render", "path", current.AudioPath, "error", rmErr)
			}
		}

		iterations++
		refined.IterationCount = iterations
		current = refined
	}
}

// applyAdjustments translates critique suggestions into updated render
// parameters.
func applyAdjustments(params mix.Params, adjustments []producer.Adjustment) mix.Params {
	for _, a := range adjustments {
		switch a.Action {
		case "volume_adjust":
			params.GainDB += a.GainDB
		case "crossfade", "fade_adjustment":
			if a.FadeDuration > 0 {
				params.FadeDuration = a.FadeDuration
			}
		case "trim":
			if a.TrimStart > 0 {
				params.TrimStart = a.TrimStart
			}
			if a.TrimEnd > 0 {
				params.TrimEnd = a.TrimEnd
			}
		case "reorder":
			// Reordering hint: switch to the energy-sorted style.
			params.Style = producer.StyleEnergetic
		}
	}
	return params
}

func (l *Loop) buildSummary(current *mix.Result, plan *producer.MixPlan, prompt string, tracks []mix.Track, iteration int) *producer.MixSummary {
	byID := make(map[string]mix.Track, len(tracks))
	for _, t := range tracks {
		byID[t.Candidate.ID] = t
	}

	infos := make([]producer.TrackInfo, 0, len(current.TrackSequence))
	for _, c := range current.TrackSequence {
		info := producer.TrackInfo{Title: c.Title, Artist: c.Artist, Tempo: c.BPM}
		if t, ok := byID[c.ID]; ok && t.Analysis != nil {
			info.Tempo = t.Analysis.Tempo
			info.Key = t.Analysis.Key
			info.EnergyLevel = t.Analysis.EnergyLevel
		}
		infos = append(infos, info)
	}

	fade := current.Params.FadeDuration
	if fade == 0 {
		fade = 3 * time.Second
	}
	return &producer.MixSummary{
		Prompt:           prompt,
		Plan:             plan,
		Duration:         current.Duration,
		Tracks:           infos,
		TransitionPoints: current.TransitionPoints,
		FadeDuration:     fade,
		AverageTempo:     current.AverageTempo,
		EnergyFlow:       current.EnergyFlow,
		Iteration:        iteration,
	}
}

// Package pipeline runs the end-to-end mix flow: interpret the prompt,
// source tracks, analyze them, assemble a first render, refine it through
// the critique loop, and export the accepted result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/mixcraft/pkg/analysis"
	"github.com/haivivi/mixcraft/pkg/discovery"
	"github.com/haivivi/mixcraft/pkg/export"
	"github.com/haivivi/mixcraft/pkg/feedback"
	"github.com/haivivi/mixcraft/pkg/mix"
	"github.com/haivivi/mixcraft/pkg/producer"
)

// ConfigurationError reports a missing or invalid setting detected before
// any work starts.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Setting, e.Reason)
}

// Request describes one mix run.
type Request struct {
	Prompt string

	// MaxDuration caps the mix length. Zero leaves it to the plan.
	MaxDuration time.Duration

	// MaxTracks bounds how many tracks are sourced (default 5).
	MaxTracks int

	// MaxIterations and Threshold tune the refinement loop. A nil
	// MaxIterations or zero Threshold takes the loop defaults, so a
	// zero-value Request still refines.
	MaxIterations *int
	Threshold     float64

	// Package also bundles the export into a zip archive.
	Package bool
}

// Result is everything a run produced.
type Result struct {
	RunID     string
	Plan      *producer.MixPlan
	Tracks    []discovery.Candidate
	Mix       *mix.Result
	Status    feedback.Status
	Critiques []*producer.Critique
	Manifest  *export.Manifest

	// PackagePath is set when Request.Package was asked for.
	PackagePath string

	// Warning carries the absorbed failure on a degraded run.
	Warning error
}

// Sourcer finds and downloads candidate tracks. *discovery.Finder is the
// production implementation.
type Sourcer interface {
	Discover(ctx context.Context, req *discovery.Request) ([]discovery.Candidate, error)
}

// Analyzer extracts audio features from a downloaded file.
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path string) (*analysis.Analysis, error)
}

// Exporter finalizes the accepted mix. *export.Exporter is the production
// implementation.
type Exporter interface {
	Export(req *export.Request) (*export.Manifest, error)
	Package(m *export.Manifest) (string, error)
}

// Pipeline wires the stages together. Stages run sequentially; one run
// owns its working files from download to export.
type Pipeline struct {
	producer producer.Producer
	finder   Sourcer
	analyzer Analyzer
	engine   feedback.Assembler
	exporter Exporter
	logger   *slog.Logger
}

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New builds a pipeline from its stages. All stages are required.
func New(prod producer.Producer, finder Sourcer, analyzer Analyzer, engine feedback.Assembler, exporter Exporter, opts ...Option) (*Pipeline, error) {
	switch {
	case prod == nil:
		return nil, &ConfigurationError{Setting: "producer", Reason: "no LLM producer configured (set the OpenAI API key)"}
	case finder == nil:
		return nil, &ConfigurationError{Setting: "discovery", Reason: "no music source configured"}
	case analyzer == nil:
		return nil, &ConfigurationError{Setting: "analysis", Reason: "analyzer missing"}
	case engine == nil:
		return nil, &ConfigurationError{Setting: "mix", Reason: "mix engine missing"}
	case exporter == nil:
		return nil, &ConfigurationError{Setting: "export", Reason: "exporter missing"}
	}
	p := &Pipeline{
		producer: prod,
		finder:   finder,
		analyzer: analyzer,
		engine:   engine,
		exporter: exporter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// CreateMix runs the full flow for one prompt.
func (p *Pipeline) CreateMix(ctx context.Context, req *Request) (*Result, error) {
	runID := uuid.NewString()[:8]
	log := p.logger.With("run", runID)
	log.Info("starting mix run", "prompt", req.Prompt)

	plan, err := p.producer.InterpretPrompt(ctx, req.Prompt, req.MaxDuration)
	if err != nil {
		return nil, fmt.Errorf("interpret prompt: %w", err)
	}
	log.Info("plan ready",
		"mood", plan.Mood,
		"genre", plan.Genre,
		"query", plan.SearchQuery,
		"target", plan.TargetDuration.Round(time.Second),
	)

	candidates, err := p.finder.Discover(ctx, &discovery.Request{
		Query:     plan.SearchQuery,
		MaxTracks: req.MaxTracks,
	})
	if err != nil {
		return nil, err
	}
	log.Info("tracks sourced", "count", len(candidates))

	tracks, err := p.analyzeTracks(ctx, candidates, log)
	if err != nil {
		return nil, err
	}

	params := planParams(plan)
	initial, err := p.engine.Render(ctx, tracks, params)
	if err != nil {
		return nil, err
	}
	log.Info("initial render ready", "duration", initial.Duration.Round(time.Second))

	loopOpts := []feedback.Option{feedback.WithLogger(log)}
	if req.MaxIterations != nil {
		loopOpts = append(loopOpts, feedback.WithMaxIterations(*req.MaxIterations))
	}
	if req.Threshold > 0 {
		loopOpts = append(loopOpts, feedback.WithThreshold(req.Threshold))
	}
	loop := feedback.NewLoop(p.producer, p.engine, loopOpts...)
	outcome := loop.Run(ctx, initial, plan, req.Prompt, tracks)
	log.Info("refinement finished",
		"status", outcome.Status,
		"iterations", outcome.Result.IterationCount,
	)

	manifest, err := p.exporter.Export(&export.Request{
		Title:     mixTitle(plan),
		Prompt:    req.Prompt,
		Result:    outcome.Result,
		Plan:      plan,
		Critiques: outcome.Critiques,
		Status:    outcome.Status,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:     runID,
		Plan:      plan,
		Tracks:    outcome.Result.TrackSequence,
		Mix:       outcome.Result,
		Status:    outcome.Status,
		Critiques: outcome.Critiques,
		Manifest:  manifest,
		Warning:   outcome.Err,
	}
	if req.Package {
		zipPath, err := p.exporter.Package(manifest)
		if err != nil {
			log.Warn("packaging failed", "error", err)
		} else {
			res.PackagePath = zipPath
		}
	}
	return res, nil
}

// Suggest asks the producer for mix prompt ideas.
func (p *Pipeline) Suggest(ctx context.Context, mood, genre string, duration time.Duration) ([]string, error) {
	return p.producer.SuggestPrompts(ctx, mood, genre, duration)
}

// analyzeTracks analyzes each downloaded candidate, dropping the ones that
// fail to decode. A run with no analyzable track fails.
func (p *Pipeline) analyzeTracks(ctx context.Context, candidates []discovery.Candidate, log *slog.Logger) ([]mix.Track, error) {
	tracks := make([]mix.Track, 0, len(candidates))
	for _, c := range candidates {
		a, err := p.analyzer.AnalyzeFile(ctx, c.LocalPath)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("skipping unanalyzable track", "path", c.LocalPath, "error", err)
			continue
		}
		log.Info("track analyzed",
			"title", c.Title,
			"tempo", fmt.Sprintf("%.0f", a.Tempo),
			"key", a.Key,
			"energy", a.EnergyLevel,
		)
		tracks = append(tracks, mix.Track{Candidate: c, Analysis: a})
	}
	if len(tracks) == 0 {
		return nil, &analysis.Error{Path: "", Err: fmt.Errorf("no sourced track could be analyzed")}
	}
	return tracks, nil
}

func planParams(plan *producer.MixPlan) mix.Params {
	return mix.Params{
		TransitionType: plan.TransitionType,
		Style:          plan.MixStyle,
		FadeDuration:   3 * time.Second,
		TargetDuration: plan.TargetDuration,
	}
}

func mixTitle(plan *producer.MixPlan) string {
	if plan.Mood == "" && plan.Genre == "" {
		return "Mix"
	}
	if plan.Genre == "" {
		return plan.Mood + " mix"
	}
	return fmt.Sprintf("%s %s mix", plan.Mood, plan.Genre)
}

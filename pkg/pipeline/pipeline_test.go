package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haivivi/mixcraft/pkg/analysis"
	"github.com/haivivi/mixcraft/pkg/audio"
	"github.com/haivivi/mixcraft/pkg/discovery"
	"github.com/haivivi/mixcraft/pkg/export"
	"github.com/haivivi/mixcraft/pkg/feedback"
	"github.com/haivivi/mixcraft/pkg/mix"
	"github.com/haivivi/mixcraft/pkg/pipeline"
	"github.com/haivivi/mixcraft/pkg/producer"
)

type stubSourcer struct {
	candidates []discovery.Candidate
	err        error
	lastQuery  string
}

func (s *stubSourcer) Discover(_ context.Context, req *discovery.Request) ([]discovery.Candidate, error) {
	s.lastQuery = req.Query
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

type stubAnalyzer struct {
	failPaths map[string]bool
}

func (a *stubAnalyzer) AnalyzeFile(_ context.Context, path string) (*analysis.Analysis, error) {
	if a.failPaths[path] {
		return nil, &analysis.Error{Path: path, Err: errors.New("corrupt stream")}
	}
	return &analysis.Analysis{
		Path:        path,
		Duration:    90 * time.Second,
		Tempo:       110,
		Key:         "A",
		EnergyLevel: "medium",
		Mood:        "chill",
	}, nil
}

// stubEngine writes a real render file so the exporter has something to
// master.
type stubEngine struct {
	dir     string
	renders int
	tracks  int
}

func (e *stubEngine) Render(_ context.Context, tracks []mix.Track, params mix.Params) (*mix.Result, error) {
	e.renders++
	e.tracks = len(tracks)
	f := audio.Format{SampleRate: 22050}
	clip := audio.NewClip(f, time.Second)
	for i := range clip.Samples {
		clip.Samples[i] = int16(0.3 * 32767 * math.Sin(2*math.Pi*220*float64(i)/22050))
	}
	path := filepath.Join(e.dir, fmt.Sprintf("draft-%d.wav", e.renders))
	if err := audio.EncodeWAV(path, clip); err != nil {
		return nil, err
	}
	seq := make([]discovery.Candidate, 0, len(tracks))
	for _, t := range tracks {
		seq = append(seq, t.Candidate)
	}
	return &mix.Result{
		AudioPath:     path,
		Duration:      clip.Duration(),
		TrackSequence: seq,
		Params:        params,
	}, nil
}

func newStubStages(t *testing.T) (*stubSourcer, *stubAnalyzer, *stubEngine, *export.Exporter, string) {
	dir := t.TempDir()
	sourcer := &stubSourcer{candidates: []discovery.Candidate{
		{Source: "jamendo", ID: "1", Title: "Dusk", Artist: "A", LocalPath: filepath.Join(dir, "1.mp3")},
		{Source: "jamendo", ID: "2", Title: "Dawn", Artist: "B", LocalPath: filepath.Join(dir, "2.mp3")},
	}}
	return sourcer, &stubAnalyzer{}, &stubEngine{dir: dir}, export.NewExporter(filepath.Join(dir, "exports")), dir
}

func TestNewRequiresProducer(t *testing.T) {
	sourcer, analyzer, engine, exporter, _ := newStubStages(t)
	_, err := pipeline.New(nil, sourcer, analyzer, engine, exporter)
	var cfgErr *pipeline.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
	if cfgErr.Setting != "producer" {
		t.Fatalf("setting = %s", cfgErr.Setting)
	}
}

func TestCreateMix(t *testing.T) {
	sourcer, analyzer, engine, exporter, _ := newStubStages(t)
	prod := &producer.StubProducer{
		Plan: &producer.MixPlan{
			Mood: "chill", Genre: "lofi", SearchQuery: "chill lofi",
			TransitionType: producer.TransitionCrossfade,
			MixStyle:       producer.StyleSeamless,
		},
		Critiques: []*producer.Critique{{QualityScore: 9, MatchesRequest: true}},
	}
	p, err := pipeline.New(prod, sourcer, analyzer, engine, exporter)
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.CreateMix(context.Background(), &pipeline.Request{Prompt: "chill beats for studying"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != feedback.StatusAccepted {
		t.Fatalf("status = %s", res.Status)
	}
	if sourcer.lastQuery != "chill lofi" {
		t.Fatalf("search query = %q", sourcer.lastQuery)
	}
	if engine.tracks != 2 {
		t.Fatalf("tracks rendered = %d, want 2", engine.tracks)
	}
	if res.Manifest == nil || res.Manifest.AudioPath == "" {
		t.Fatal("no export manifest")
	}
	if !strings.Contains(filepath.Base(res.Manifest.AudioPath), "chill_lofi_mix") {
		t.Fatalf("export name = %s", filepath.Base(res.Manifest.AudioPath))
	}
	if res.RunID == "" {
		t.Fatal("run id missing")
	}
}

func TestCreateMixDefaultsRefine(t *testing.T) {
	// A request that sets no loop knobs (the interactive path) still gets
	// the default refinement budget: a sub-threshold first critique leads
	// to a refinement render, not immediate exhaustion.
	sourcer, analyzer, engine, exporter, _ := newStubStages(t)
	prod := &producer.StubProducer{
		Critiques: []*producer.Critique{
			{QualityScore: 5, Notes: "flat transitions"},
			{QualityScore: 9, MatchesRequest: true},
		},
	}
	p, err := pipeline.New(prod, sourcer, analyzer, engine, exporter)
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.CreateMix(context.Background(), &pipeline.Request{Prompt: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != feedback.StatusAccepted {
		t.Fatalf("status = %s, want accepted", res.Status)
	}
	if engine.renders != 2 {
		t.Fatalf("renders = %d, want initial + 1 refinement", engine.renders)
	}
	if res.Mix.IterationCount != 1 {
		t.Fatalf("iterations = %d, want 1", res.Mix.IterationCount)
	}
}

func TestCreateMixExplicitZeroIterations(t *testing.T) {
	sourcer, analyzer, engine, exporter, _ := newStubStages(t)
	prod := &producer.StubProducer{
		Critiques: []*producer.Critique{{QualityScore: 5}},
	}
	p, err := pipeline.New(prod, sourcer, analyzer, engine, exporter)
	if err != nil {
		t.Fatal(err)
	}

	zero := 0
	res, err := p.CreateMix(context.Background(), &pipeline.Request{
		Prompt:        "x",
		MaxIterations: &zero,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != feedback.StatusExhausted {
		t.Fatalf("status = %s, want exhausted", res.Status)
	}
	if engine.renders != 1 {
		t.Fatalf("renders = %d, want only the initial render", engine.renders)
	}
}

func TestCreateMixSkipsUnanalyzableTracks(t *testing.T) {
	sourcer, analyzer, engine, exporter, dir := newStubStages(t)
	analyzer.failPaths = map[string]bool{filepath.Join(dir, "1.mp3"): true}
	prod := &producer.StubProducer{}
	p, err := pipeline.New(prod, sourcer, analyzer, engine, exporter)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.CreateMix(context.Background(), &pipeline.Request{Prompt: "x"}); err != nil {
		t.Fatal(err)
	}
	if engine.tracks != 1 {
		t.Fatalf("tracks rendered = %d, want 1 after skip", engine.tracks)
	}
}

func TestCreateMixFailsWhenNothingAnalyzable(t *testing.T) {
	sourcer, analyzer, engine, exporter, dir := newStubStages(t)
	analyzer.failPaths = map[string]bool{
		filepath.Join(dir, "1.mp3"): true,
		filepath.Join(dir, "2.mp3"): true,
	}
	p, err := pipeline.New(&producer.StubProducer{}, sourcer, analyzer, engine, exporter)
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.CreateMix(context.Background(), &pipeline.Request{Prompt: "x"})
	var aErr *analysis.Error
	if !errors.As(err, &aErr) {
		t.Fatalf("err = %v, want analysis error", err)
	}
}

// failingCritic interprets fine but cannot critique, which should degrade
// the run rather than fail it.
type failingCritic struct {
	producer.StubProducer
}

func (f *failingCritic) CritiqueMix(context.Context, *producer.MixSummary) (*producer.Critique, error) {
	return nil, errors.New("api unavailable")
}

func TestCreateMixDegradesOnCritiqueFailure(t *testing.T) {
	sourcer, analyzer, engine, exporter, _ := newStubStages(t)
	p, err := pipeline.New(&failingCritic{}, sourcer, analyzer, engine, exporter)
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.CreateMix(context.Background(), &pipeline.Request{Prompt: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != feedback.StatusDegraded {
		t.Fatalf("status = %s, want degraded", res.Status)
	}
	if res.Warning == nil {
		t.Fatal("degraded run must carry a warning")
	}
	if res.Manifest == nil {
		t.Fatal("degraded run still exports the last good mix")
	}
}

func TestCreateMixPackages(t *testing.T) {
	sourcer, analyzer, engine, exporter, _ := newStubStages(t)
	p, err := pipeline.New(&producer.StubProducer{}, sourcer, analyzer, engine, exporter)
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.CreateMix(context.Background(), &pipeline.Request{Prompt: "x", Package: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.PackagePath == "" {
		t.Fatal("package path missing")
	}
}

func TestSuggest(t *testing.T) {
	sourcer, analyzer, engine, exporter, _ := newStubStages(t)
	prod := &producer.StubProducer{Suggestions: []string{"a", "b"}}
	p, err := pipeline.New(prod, sourcer, analyzer, engine, exporter)
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Suggest(context.Background(), "chill", "lofi", 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("suggestions = %v", got)
	}
}

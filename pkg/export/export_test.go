package export_test

import (
	"archive/zip"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haivivi/mixcraft/pkg/audio"
	"github.com/haivivi/mixcraft/pkg/discovery"
	"github.com/haivivi/mixcraft/pkg/export"
	"github.com/haivivi/mixcraft/pkg/feedback"
	"github.com/haivivi/mixcraft/pkg/mix"
	"github.com/haivivi/mixcraft/pkg/producer"
)

func writeRender(t *testing.T, dir string, d time.Duration, amp float64) string {
	t.Helper()
	f := audio.Format{SampleRate: 22050}
	clip := audio.NewClip(f, d)
	for i := range clip.Samples {
		v := amp * math.Sin(2*math.Pi*220*float64(i)/22050)
		clip.Samples[i] = int16(v * 32767)
	}
	path := filepath.Join(dir, "draft.wav")
	if err := audio.EncodeWAV(path, clip); err != nil {
		t.Fatal(err)
	}
	return path
}

func sampleRequest(t *testing.T, dir string) *export.Request {
	return &export.Request{
		Title:  "Chill Sunset Mix!",
		Prompt: "chill sunset vibes",
		Result: &mix.Result{
			AudioPath:        writeRender(t, dir, 2*time.Second, 0.3),
			Duration:         2 * time.Second,
			IterationCount:   1,
			AverageTempo:     105,
			TransitionPoints: []time.Duration{time.Second},
			TrackSequence: []discovery.Candidate{
				{Source: "jamendo", ID: "42", Title: "Dusk", Artist: "Someone", Duration: 90 * time.Second},
				{Source: "freesound", ID: "7", Title: "Waves", Artist: "Field", Duration: 60 * time.Second},
			},
		},
		Plan: &producer.MixPlan{Mood: "chill", Genre: "lofi"},
		Critiques: []*producer.Critique{
			{QualityScore: 6.5, Notes: "transitions abrupt", Adjustments: []producer.Adjustment{{Action: "crossfade", Reason: "smooth the join"}}},
			{QualityScore: 8.5, Notes: "good flow"},
		},
		Status: feedback.StatusAccepted,
	}
}

func TestExportWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	exp := export.NewExporter(filepath.Join(dir, "exports"),
		export.WithClock(func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }),
	)

	m, err := exp.Export(sampleRequest(t, dir))
	if err != nil {
		t.Fatal(err)
	}
	if base := filepath.Base(m.AudioPath); base != "Chill_Sunset_Mix_20260314_092653.wav" {
		t.Fatalf("export name = %s", base)
	}
	if m.SizeBytes == 0 {
		t.Fatal("size not recorded")
	}

	report, err := os.ReadFile(m.ReportPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Chill Sunset Mix!", "Someone - Dusk", "score 6.5", "smooth the join", "Status: accepted"} {
		if !strings.Contains(string(report), want) {
			t.Errorf("report missing %q", want)
		}
	}

	meta, err := os.ReadFile(m.MetadataPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"mood: chill", "quality_score: 8.5", "source: jamendo", "iterations: 1"} {
		if !strings.Contains(string(meta), want) {
			t.Errorf("metadata missing %q", want)
		}
	}
}

func TestExportMasters(t *testing.T) {
	dir := t.TempDir()
	exp := export.NewExporter(filepath.Join(dir, "exports"))

	req := sampleRequest(t, dir)
	m, err := exp.Export(req)
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(m.AudioPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	clip, err := audio.DecodeWAV(f)
	if err != nil {
		t.Fatal(err)
	}
	// Normalized to a -1 dB peak, then the 2:1 compression above -20 dB
	// brings it near half scale. Either way it sits well above the quiet
	// source level.
	if peak := clip.Peak(); peak < 0.45 {
		t.Fatalf("peak = %f, expected mastered level", peak)
	}
}

func TestExportMissingRender(t *testing.T) {
	exp := export.NewExporter(t.TempDir())
	_, err := exp.Export(&export.Request{
		Title:  "x",
		Result: &mix.Result{AudioPath: "/nonexistent/render.wav"},
	})
	if err == nil {
		t.Fatal("expected error for missing render")
	}
}

func TestPackage(t *testing.T) {
	dir := t.TempDir()
	exp := export.NewExporter(filepath.Join(dir, "exports"))

	m, err := exp.Export(sampleRequest(t, dir))
	if err != nil {
		t.Fatal(err)
	}
	zipPath, err := exp.Package(m)
	if err != nil {
		t.Fatal(err)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{filepath.Base(m.AudioPath), filepath.Base(m.ReportPath), "README.md"} {
		if !names[want] {
			t.Errorf("package missing %s", want)
		}
	}
}

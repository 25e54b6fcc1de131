package mix_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/haivivi/mixcraft/pkg/analysis"
	"github.com/haivivi/mixcraft/pkg/audio"
	"github.com/haivivi/mixcraft/pkg/discovery"
	"github.com/haivivi/mixcraft/pkg/mix"
	"github.com/haivivi/mixcraft/pkg/producer"
)

var format = audio.Format{SampleRate: 22050, Stereo: false}

func writeTone(t *testing.T, dir, name string, freq float64, d time.Duration) string {
	t.Helper()
	c := audio.NewClip(format, d)
	for i := range c.Samples {
		c.Samples[i] = int16(0.5 * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(format.SampleRate)))
	}
	path := filepath.Join(dir, name)
	if err := audio.EncodeWAV(path, c); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	return path
}

func testTracks(t *testing.T, dir string) []mix.Track {
	t.Helper()
	return []mix.Track{
		{
			Candidate: discovery.Candidate{ID: "1", Title: "One", LocalPath: writeTone(t, dir, "one.wav", 330, 4*time.Second)},
			Analysis:  &analysis.Analysis{Tempo: 100, Key: "E", EnergyMean: 0.2, EnergyLevel: "high"},
		},
		{
			Candidate: discovery.Candidate{ID: "2", Title: "Two", LocalPath: writeTone(t, dir, "two.wav", 440, 4*time.Second)},
			Analysis:  &analysis.Analysis{Tempo: 110, Key: "A", EnergyMean: 0.1, EnergyLevel: "medium"},
		},
	}
}

func newEngine(t *testing.T) *mix.Engine {
	t.Helper()
	return mix.NewEngine(mix.WithWorkDir(t.TempDir()), mix.WithFormat(format))
}

func TestRenderCrossfade(t *testing.T) {
	tracks := testTracks(t, t.TempDir())
	engine := newEngine(t)

	res, err := engine.Render(context.Background(), tracks, mix.Params{
		TransitionType: producer.TransitionCrossfade,
		Style:          producer.StyleSeamless,
		FadeDuration:   time.Second,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	// Two 4s tracks with a 1s crossfade overlap once: ~7s.
	if res.Duration < 6800*time.Millisecond || res.Duration > 7200*time.Millisecond {
		t.Fatalf("duration = %v, want ~7s", res.Duration)
	}
	if len(res.TransitionPoints) != 1 {
		t.Fatalf("got %d transition points, want 1", len(res.TransitionPoints))
	}
	at := res.TransitionPoints[0]
	if at < 2800*time.Millisecond || at > 3200*time.Millisecond {
		t.Fatalf("transition at %v, want ~3s", at)
	}
	if len(res.TrackSequence) != 2 {
		t.Fatalf("track sequence = %+v", res.TrackSequence)
	}
	if res.AverageTempo != 105 {
		t.Fatalf("average tempo = %v, want 105", res.AverageTempo)
	}

	clip, err := audio.DecodeFile(res.AudioPath)
	if err != nil {
		t.Fatalf("decode render: %v", err)
	}
	if clip.Frames() == 0 {
		t.Fatal("rendered file is empty")
	}
}

func TestRenderTargetDuration(t *testing.T) {
	tracks := testTracks(t, t.TempDir())
	engine := newEngine(t)

	res, err := engine.Render(context.Background(), tracks, mix.Params{
		TransitionType: producer.TransitionCrossfade,
		FadeDuration:   time.Second,
		TargetDuration: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.Duration > 5*time.Second+50*time.Millisecond {
		t.Fatalf("duration = %v exceeds target 5s", res.Duration)
	}
}

func TestRenderSimpleTransition(t *testing.T) {
	tracks := testTracks(t, t.TempDir())
	engine := newEngine(t)

	res, err := engine.Render(context.Background(), tracks, mix.Params{
		TransitionType: producer.TransitionSimple,
		FadeDuration:   time.Second,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	// Simple transitions concatenate: ~8s total.
	if res.Duration < 7800*time.Millisecond || res.Duration > 8200*time.Millisecond {
		t.Fatalf("duration = %v, want ~8s", res.Duration)
	}
	if len(res.TransitionPoints) != 1 {
		t.Fatalf("transition points = %v", res.TransitionPoints)
	}
}

func TestRenderEnergeticOrdersByEnergy(t *testing.T) {
	tracks := testTracks(t, t.TempDir())
	engine := newEngine(t)

	res, err := engine.Render(context.Background(), tracks, mix.Params{
		Style:        producer.StyleEnergetic,
		FadeDuration: time.Second,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	// Track 2 has the lower energy mean and must come first.
	if res.TrackSequence[0].ID != "2" || res.TrackSequence[1].ID != "1" {
		t.Fatalf("sequence = %s, %s; want 2, 1", res.TrackSequence[0].ID, res.TrackSequence[1].ID)
	}
	if res.EnergyFlow[0] != "medium" || res.EnergyFlow[1] != "high" {
		t.Fatalf("energy flow = %v", res.EnergyFlow)
	}
}

func TestRenderBeatMatch(t *testing.T) {
	tracks := testTracks(t, t.TempDir())
	engine := newEngine(t)

	res, err := engine.Render(context.Background(), tracks, mix.Params{
		TransitionType: producer.TransitionBeatMatch,
		Style:          producer.StyleSeamless,
		FadeDuration:   time.Second,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	// The second track (110 BPM) is slowed toward the 105 BPM average, so
	// the mix runs slightly longer than the plain crossfade.
	if res.Duration <= 7050*time.Millisecond || res.Duration > 7500*time.Millisecond {
		t.Fatalf("duration = %v, want ~7.2s after tempo match", res.Duration)
	}
}

func TestRenderNoTracks(t *testing.T) {
	engine := newEngine(t)
	_, err := engine.Render(context.Background(), nil, mix.Params{})
	if err == nil {
		t.Fatal("expected error")
	}
	var rerr *mix.RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("error %T is not *mix.RenderError", err)
	}
}

func TestRenderGainAndTrim(t *testing.T) {
	tracks := testTracks(t, t.TempDir())
	engine := newEngine(t)

	res, err := engine.Render(context.Background(), tracks, mix.Params{
		TransitionType: producer.TransitionCrossfade,
		FadeDuration:   time.Second,
		TrimStart:      time.Second,
		TrimEnd:        6 * time.Second,
		GainDB:         -3,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.Duration < 4900*time.Millisecond || res.Duration > 5100*time.Millisecond {
		t.Fatalf("trimmed duration = %v, want ~5s", res.Duration)
	}
	for _, p := range res.TransitionPoints {
		if p < 0 || p > res.Duration {
			t.Fatalf("transition %v outside trimmed mix", p)
		}
	}
}

package analysis_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/haivivi/mixcraft/pkg/analysis"
	"github.com/haivivi/mixcraft/pkg/audio"
	"github.com/haivivi/mixcraft/pkg/kv"
)

var mono = audio.Format{SampleRate: 22050, Stereo: false}

func tone(f audio.Format, freq float64, d time.Duration, amp float64) *audio.Clip {
	c := audio.NewClip(f, d)
	for i := range c.Samples {
		c.Samples[i] = int16(amp * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(f.SampleRate)))
	}
	return c
}

// clickTrack produces short bursts at the given BPM over silence.
func clickTrack(f audio.Format, bpm float64, d time.Duration) *audio.Clip {
	c := audio.NewClip(f, d)
	period := int(float64(f.SampleRate) * 60 / bpm)
	burst := f.SampleRate / 20 // 50 ms
	for start := 0; start < len(c.Samples); start += period {
		for i := 0; i < burst && start+i < len(c.Samples); i++ {
			c.Samples[start+i] = int16(0.8 * 32767 * math.Sin(2*math.Pi*880*float64(i)/float64(f.SampleRate)))
		}
	}
	return c
}

func TestKeyDetection(t *testing.T) {
	tests := []struct {
		freq float64
		key  string
	}{
		{440, "A"},   // A4
		{261.6, "C"}, // C4
		{329.6, "E"}, // E4
	}
	for _, tt := range tests {
		a := analysis.AnalyzeClip(tone(mono, tt.freq, 3*time.Second, 0.5))
		if a.Key != tt.key {
			t.Errorf("key for %.1f Hz = %q, want %q", tt.freq, a.Key, tt.key)
		}
	}
}

func TestEnergyLevels(t *testing.T) {
	loud := analysis.AnalyzeClip(tone(mono, 220, 2*time.Second, 0.5))
	if loud.EnergyLevel != "high" {
		t.Errorf("loud tone energy level = %q, want high", loud.EnergyLevel)
	}
	quiet := analysis.AnalyzeClip(tone(mono, 220, 2*time.Second, 0.02))
	if quiet.EnergyLevel != "low" {
		t.Errorf("quiet tone energy level = %q, want low", quiet.EnergyLevel)
	}
}

func TestTempoEstimate(t *testing.T) {
	a := analysis.AnalyzeClip(clickTrack(mono, 120, 15*time.Second))
	if a.Tempo < 105 || a.Tempo > 135 {
		t.Fatalf("tempo = %.1f, want ~120", a.Tempo)
	}
	if len(a.BeatTimes) == 0 {
		t.Fatal("no beat times detected")
	}
	if len(a.BeatTimes) > 20 {
		t.Fatalf("beat times capped at 20, got %d", len(a.BeatTimes))
	}
}

func TestMixingPointBounds(t *testing.T) {
	c := tone(mono, 220, 60*time.Second, 0.4)
	a := analysis.AnalyzeClip(c)
	dur := a.Duration

	if a.Mixing.IntroEnd > 20*time.Second {
		t.Errorf("intro end %v exceeds 20s cap", a.Mixing.IntroEnd)
	}
	if a.Mixing.OutroStart < dur-30*time.Second {
		t.Errorf("outro start %v below floor %v", a.Mixing.OutroStart, dur-30*time.Second)
	}
	if a.Mixing.BestMixIn > time.Duration(float64(dur)*0.3)+time.Millisecond {
		t.Errorf("best mix-in %v exceeds 30%% of duration", a.Mixing.BestMixIn)
	}
	if a.Mixing.BestMixOut < time.Duration(float64(dur)*0.7)-time.Millisecond {
		t.Errorf("best mix-out %v below 70%% of duration", a.Mixing.BestMixOut)
	}
}

func TestAnalyzeFileMissing(t *testing.T) {
	a := analysis.NewAnalyzer()
	_, err := a.AnalyzeFile(context.Background(), "/nonexistent/track.mp3")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	var aerr *analysis.Error
	if !errors.As(err, &aerr) {
		t.Fatalf("error %T is not *analysis.Error", err)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	if err := audio.EncodeWAV(path, tone(mono, 440, 2*time.Second, 0.5)); err != nil {
		t.Fatalf("encode: %v", err)
	}

	cache := analysis.NewCache(kv.NewMemory())
	defer cache.Close()
	a := analysis.NewAnalyzer(analysis.WithCache(cache))

	first, err := a.AnalyzeFile(ctx, path)
	if err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	cached, err := cache.Get(ctx, path)
	if err != nil {
		t.Fatalf("cache get after analyze: %v", err)
	}
	if cached.Key != first.Key || cached.Tempo != first.Tempo {
		t.Fatalf("cached result %+v does not match %+v", cached, first)
	}

	second, err := a.AnalyzeFile(ctx, path)
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if second.Key != first.Key {
		t.Fatalf("cache hit key = %q, want %q", second.Key, first.Key)
	}
}

func TestCachePurge(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := kv.NewMemory()
	cache := analysis.NewCache(store)
	defer cache.Close()
	a := analysis.NewAnalyzer(analysis.WithCache(cache))

	paths := make([]string, 2)
	for i, freq := range []float64{330, 440} {
		paths[i] = filepath.Join(dir, fmt.Sprintf("tone%d.wav", i))
		if err := audio.EncodeWAV(paths[i], tone(mono, freq, 2*time.Second, 0.5)); err != nil {
			t.Fatalf("encode: %v", err)
		}
		if _, err := a.AnalyzeFile(ctx, paths[i]); err != nil {
			t.Fatalf("analyze %s: %v", paths[i], err)
		}
	}

	// An unrelated entry under a different prefix must survive the purge.
	if err := store.Set(ctx, kv.Key{"other", "entry"}, []byte("keep")); err != nil {
		t.Fatalf("set: %v", err)
	}

	n, err := cache.Purge(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 {
		t.Fatalf("purge removed %d entries, want 2", n)
	}
	if _, err := cache.Get(ctx, paths[0]); err == nil {
		t.Fatal("cache entry survived purge")
	}
	if _, err := store.Get(ctx, kv.Key{"other", "entry"}); err != nil {
		t.Fatalf("unrelated entry lost: %v", err)
	}
}

func TestAnalyzeAll(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	paths := make([]string, 2)
	for i, freq := range []float64{440, 261.6} {
		p := filepath.Join(dir, filepath.Base(dir)+"-"+string(rune('a'+i))+".wav")
		if err := audio.EncodeWAV(p, tone(mono, freq, 2*time.Second, 0.4)); err != nil {
			t.Fatalf("encode: %v", err)
		}
		paths[i] = p
	}
	a := analysis.NewAnalyzer()
	results, err := a.AnalyzeAll(ctx, paths)
	if err != nil {
		t.Fatalf("analyze all: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Key != "A" || results[1].Key != "C" {
		t.Fatalf("keys = %q, %q; want A, C", results[0].Key, results[1].Key)
	}
}

// Package analysis extracts musical features from audio files: tempo, key,
// energy, mood, and the mixing points (intro end, outro start, best mix-in
// and mix-out) that mix assembly uses to place transitions.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mjibson/go-dsp/fft"

	"github.com/haivivi/mixcraft/pkg/audio"
)

// Frame parameters for short-time features.
const (
	frameLen = 2048
	hopLen   = 512
)

var keyNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Analysis holds the extracted features for one audio file.
type Analysis struct {
	Path        string          `json:"path" yaml:"path"`
	Duration    time.Duration   `json:"duration" yaml:"duration"`
	Tempo       float64         `json:"tempo" yaml:"tempo"`
	Key         string          `json:"key" yaml:"key"`
	EnergyMean  float64         `json:"energy_mean" yaml:"energy_mean"`
	EnergyLevel string          `json:"energy_level" yaml:"energy_level"`
	Brightness  float64         `json:"brightness" yaml:"brightness"`
	Mood        string          `json:"mood" yaml:"mood"`
	Mixing      MixingPoints    `json:"mixing" yaml:"mixing"`
	BeatTimes   []time.Duration `json:"beat_times,omitempty" yaml:"beat_times,omitempty"`
}

// MixingPoints are the suggested positions for placing transitions.
type MixingPoints struct {
	IntroEnd   time.Duration `json:"intro_end" yaml:"intro_end"`
	OutroStart time.Duration `json:"outro_start" yaml:"outro_start"`
	BestMixIn  time.Duration `json:"best_mix_in" yaml:"best_mix_in"`
	BestMixOut time.Duration `json:"best_mix_out" yaml:"best_mix_out"`
}

// Error wraps a failure to analyze a file.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("analysis: %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Analyzer extracts features from audio files, optionally caching results.
type Analyzer struct {
	cache  *Cache
	logger *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithCache makes the analyzer consult and populate a result cache.
func WithCache(c *Cache) Option {
	return func(a *Analyzer) { a.cache = c }
}

// WithLogger sets the logger for progress and cache diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeFile extracts features from a single file. A cached result is
// returned when available and the file is unchanged.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*Analysis, error) {
	if a.cache != nil {
		if cached, err := a.cache.Get(ctx, path); err == nil {
			a.logger.Debug("analysis cache hit", "path", path)
			return cached, nil
		}
	}

	clip, err := audio.DecodeFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	result := analyzeClip(clip)
	result.Path = path

	if a.cache != nil {
		if err := a.cache.Put(ctx, path, result); err != nil {
			a.logger.Warn("analysis cache write failed", "path", path, "error", err)
		}
	}
	return result, nil
}

// AnalyzeAll extracts features from each path in order. The first failure
// aborts the batch.
func (a *Analyzer) AnalyzeAll(ctx context.Context, paths []string) ([]*Analysis, error) {
	results := make([]*Analysis, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.logger.Info("analyzing track", "path", p)
		res, err := a.AnalyzeFile(ctx, p)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// AnalyzeClip extracts features from in-memory audio.
func AnalyzeClip(c *audio.Clip) *Analysis {
	return analyzeClip(c)
}

func analyzeClip(c *audio.Clip) *Analysis {
	mono := c.MonoFloats()
	sr := c.Format.SampleRate
	duration := c.Duration()

	rms := rmsFrames(mono, frameLen, hopLen)
	energyMean := mean(rms)

	spec := newSpectral(mono, sr)
	brightness := spec.centroidMean()
	key := keyNames[argmax(spec.chromaMean())]

	tempo, beats := trackBeats(rms, sr)

	level := "low"
	switch {
	case energyMean > 0.1:
		level = "high"
	case energyMean > 0.05:
		level = "medium"
	}

	var mood string
	switch {
	case brightness > 3000 && energyMean > 0.08:
		mood = "energetic"
	case brightness < 1500 && energyMean < 0.06:
		mood = "calm"
	case tempo > 120:
		mood = "upbeat"
	default:
		mood = "ambient"
	}

	return &Analysis{
		Duration:    duration,
		Tempo:       tempo,
		Key:         key,
		EnergyMean:  energyMean,
		EnergyLevel: level,
		Brightness:  brightness,
		Mood:        mood,
		Mixing:      findMixingPoints(rms, sr, duration),
		BeatTimes:   beats,
	}
}

// rmsFrames computes short-time RMS energy over overlapping frames.
func rmsFrames(samples []float64, frame, hop int) []float64 {
	if len(samples) < frame {
		frame = len(samples)
	}
	if frame == 0 {
		return nil
	}
	var out []float64
	for start := 0; start+frame <= len(samples); start += hop {
		var sum float64
		for _, v := range samples[start : start+frame] {
			sum += v * v
		}
		out = append(out, math.Sqrt(sum/float64(frame)))
	}
	return out
}

// spectral computes frame-wise magnitude spectra once and derives the
// centroid and chroma features from them.
type spectral struct {
	sr        int
	centroids []float64
	chroma    [12]float64
	frames    int
}

func newSpectral(samples []float64, sr int) *spectral {
	s := &spectral{sr: sr}
	window := hann(frameLen)
	buf := make([]float64, frameLen)

	// Spectral features use a coarser hop than RMS; full resolution is not
	// needed for a per-track mean.
	hop := frameLen
	for start := 0; start+frameLen <= len(samples); start += hop {
		for i := range buf {
			buf[i] = samples[start+i] * window[i]
		}
		spec := fft.FFTReal(buf)
		s.accumulate(spec)
	}
	return s
}

func (s *spectral) accumulate(spec []complex128) {
	half := len(spec) / 2
	binHz := float64(s.sr) / float64(len(spec))

	var num, den float64
	for i := 1; i < half; i++ {
		mag := math.Hypot(real(spec[i]), imag(spec[i]))
		freq := float64(i) * binHz
		num += freq * mag
		den += mag

		if freq >= 27.5 && freq <= 4200 {
			// MIDI pitch class of the bin's center frequency.
			midi := 69 + 12*math.Log2(freq/440.0)
			pc := ((int(math.Round(midi)) % 12) + 12) % 12
			s.chroma[pc] += mag
		}
	}
	if den > 0 {
		s.centroids = append(s.centroids, num/den)
	}
	s.frames++
}

func (s *spectral) centroidMean() float64 {
	return mean(s.centroids)
}

func (s *spectral) chromaMean() []float64 {
	out := make([]float64, 12)
	if s.frames == 0 {
		return out
	}
	for i, v := range s.chroma {
		out[i] = v / float64(s.frames)
	}
	return out
}

// trackBeats estimates the tempo from the autocorrelation of the onset
// envelope and places beat times at the strongest onsets, one per period.
func trackBeats(rms []float64, sr int) (float64, []time.Duration) {
	if len(rms) < 4 {
		return 0, nil
	}

	// Onset strength: positive energy differences between frames.
	onset := make([]float64, len(rms)-1)
	for i := 1; i < len(rms); i++ {
		d := rms[i] - rms[i-1]
		if d > 0 {
			onset[i-1] = d
		}
	}

	framesPerSec := float64(sr) / float64(hopLen)

	// Search lags covering 60–180 BPM.
	minLag := int(framesPerSec * 60 / 180)
	maxLag := int(framesPerSec * 60 / 60)
	if maxLag >= len(onset) {
		maxLag = len(onset) - 1
	}
	if minLag < 1 {
		minLag = 1
	}
	if minLag > maxLag {
		return 0, nil
	}

	bestLag, bestScore := minLag, math.Inf(-1)
	for lag := minLag; lag <= maxLag; lag++ {
		var score float64
		for i := 0; i+lag < len(onset); i++ {
			score += onset[i] * onset[i+lag]
		}
		score /= float64(len(onset) - lag)
		if score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}

	tempo := 60 * framesPerSec / float64(bestLag)

	// Anchor the beat grid at the strongest onset in the first period.
	anchor := argmax(onset[:min(bestLag, len(onset))])
	var beats []time.Duration
	for fr := anchor; fr < len(onset) && len(beats) < 20; fr += bestLag {
		t := time.Duration(float64(fr) / framesPerSec * float64(time.Second))
		beats = append(beats, t)
	}
	return tempo, beats
}

// findMixingPoints locates the intro end and outro start from the smoothed
// energy contour, then derives the preferred mix-in and mix-out positions.
func findMixingPoints(rms []float64, sr int, duration time.Duration) MixingPoints {
	dur := duration.Seconds()
	smooth := movingAverage(rms, 10)
	threshold := mean(smooth) * 0.7
	framesPerSec := float64(sr) / float64(hopLen)

	introEnd := 10.0
	for i, e := range smooth {
		t := float64(i) / framesPerSec
		if e > threshold && t > 5.0 {
			introEnd = t
			break
		}
	}

	outroStart := dur - 15.0
	for i := len(smooth) - 1; i > 0; i-- {
		t := float64(i) / framesPerSec
		if smooth[i] < threshold && t < dur-5.0 {
			outroStart = t
			break
		}
	}

	introEnd = math.Min(introEnd, 20.0)
	outroStart = math.Max(outroStart, dur-30.0)

	return MixingPoints{
		IntroEnd:   secs(introEnd),
		OutroStart: secs(outroStart),
		BestMixIn:  secs(math.Min(introEnd+10.0, dur*0.3)),
		BestMixOut: secs(math.Max(outroStart-10.0, dur*0.7)),
	}
}

func secs(s float64) time.Duration {
	if s < 0 {
		s = 0
	}
	return time.Duration(s * float64(time.Second))
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func movingAverage(v []float64, size int) []float64 {
	if size < 1 || len(v) == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i := range v {
		lo := i - size/2
		hi := i + (size+1)/2
		if lo < 0 {
			lo = 0
		}
		if hi > len(v) {
			hi = len(v)
		}
		var sum float64
		for _, x := range v[lo:hi] {
			sum += x
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func argmax(v []float64) int {
	best, bestV := 0, math.Inf(-1)
	for i, x := range v {
		if x > bestV {
			best, bestV = i, x
		}
	}
	return best
}

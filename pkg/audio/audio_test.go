package audio_test

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/haivivi/mixcraft/pkg/audio"
)

func sine(f audio.Format, freq float64, d time.Duration, amp float64) *audio.Clip {
	c := audio.NewClip(f, d)
	ch := f.Channels()
	frames := c.Frames()
	for fr := 0; fr < frames; fr++ {
		v := int16(amp * 32767 * math.Sin(2*math.Pi*freq*float64(fr)/float64(f.SampleRate)))
		for k := 0; k < ch; k++ {
			c.Samples[fr*ch+k] = v
		}
	}
	return c
}

func TestNewClipDuration(t *testing.T) {
	c := audio.NewClip(audio.DefaultFormat, 2*time.Second)
	if got := c.Duration(); got != 2*time.Second {
		t.Fatalf("duration = %v, want 2s", got)
	}
	if got := len(c.Samples); got != 44100*2*2 {
		t.Fatalf("len(samples) = %d, want %d", got, 44100*2*2)
	}
}

func TestSlice(t *testing.T) {
	c := sine(audio.DefaultFormat, 440, 3*time.Second, 0.5)
	s := c.Slice(time.Second, 2*time.Second)
	if got := s.Duration(); got != time.Second {
		t.Fatalf("slice duration = %v, want 1s", got)
	}
	s.Samples[0] = 12345
	if c.Samples[44100*2] == 12345 {
		t.Fatal("slice shares memory with source")
	}
}

func TestGain(t *testing.T) {
	c := sine(audio.DefaultFormat, 440, 500*time.Millisecond, 0.5)
	before := c.Peak()
	c.Gain(-6)
	after := c.Peak()
	ratio := after / before
	if ratio < 0.49 || ratio > 0.52 {
		t.Fatalf("-6 dB gain ratio = %v, want ~0.5", ratio)
	}
}

func TestFadeInSilencesStart(t *testing.T) {
	c := sine(audio.DefaultFormat, 440, time.Second, 0.8)
	c.FadeIn(500 * time.Millisecond)
	head := c.Slice(0, 10*time.Millisecond)
	tail := c.Slice(900*time.Millisecond, time.Second)
	if head.RMS() >= tail.RMS()/4 {
		t.Fatalf("faded head rms %v not well below tail rms %v", head.RMS(), tail.RMS())
	}
}

func TestFadeOutSilencesEnd(t *testing.T) {
	c := sine(audio.DefaultFormat, 440, time.Second, 0.8)
	c.FadeOut(500 * time.Millisecond)
	head := c.Slice(0, 100*time.Millisecond)
	tail := c.Slice(990*time.Millisecond, time.Second)
	if tail.RMS() >= head.RMS()/4 {
		t.Fatalf("faded tail rms %v not well below head rms %v", tail.RMS(), head.RMS())
	}
}

func TestOverlayExtends(t *testing.T) {
	base := audio.NewClip(audio.DefaultFormat, time.Second)
	over := sine(audio.DefaultFormat, 440, time.Second, 0.3)
	base.Overlay(over, 500*time.Millisecond)
	if got, want := base.Duration(), 1500*time.Millisecond; got != want {
		t.Fatalf("overlaid duration = %v, want %v", got, want)
	}
	if base.Slice(0, 400*time.Millisecond).RMS() != 0 {
		t.Fatal("overlay modified samples before the offset")
	}
	if base.Slice(600*time.Millisecond, time.Second).RMS() == 0 {
		t.Fatal("overlay did not mix samples after the offset")
	}
}

func TestNormalize(t *testing.T) {
	c := sine(audio.DefaultFormat, 440, 500*time.Millisecond, 0.1)
	c.Normalize(1)
	want := math.Pow(10, -1.0/20)
	if got := c.Peak(); math.Abs(got-want) > 0.01 {
		t.Fatalf("normalized peak = %v, want ~%v", got, want)
	}
}

func TestCompressReducesPeak(t *testing.T) {
	c := sine(audio.DefaultFormat, 440, 500*time.Millisecond, 0.9)
	before := c.Peak()
	c.Compress(-12, 4)
	if after := c.Peak(); after >= before {
		t.Fatalf("compressed peak %v not below original %v", after, before)
	}
}

func TestConvertChannels(t *testing.T) {
	mono := audio.Format{SampleRate: 44100, Stereo: false}
	c := sine(mono, 440, 500*time.Millisecond, 0.5)

	st, err := audio.Convert(c, audio.DefaultFormat)
	if err != nil {
		t.Fatalf("convert to stereo: %v", err)
	}
	if st.Format != audio.DefaultFormat {
		t.Fatalf("format = %+v, want %+v", st.Format, audio.DefaultFormat)
	}
	if st.Frames() != c.Frames() {
		t.Fatalf("frames = %d, want %d", st.Frames(), c.Frames())
	}
	if st.Samples[0] != st.Samples[1] {
		t.Fatal("upmixed channels differ")
	}

	back, err := audio.Convert(st, mono)
	if err != nil {
		t.Fatalf("convert to mono: %v", err)
	}
	if back.Frames() != c.Frames() {
		t.Fatalf("downmix frames = %d, want %d", back.Frames(), c.Frames())
	}
}

func TestConvertResamples(t *testing.T) {
	c := sine(audio.DefaultFormat, 440, time.Second, 0.5)
	dst := audio.Format{SampleRate: 22050, Stereo: true}
	out, err := audio.Convert(c, dst)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if out.Format != dst {
		t.Fatalf("format = %+v, want %+v", out.Format, dst)
	}
	diff := out.Duration() - c.Duration()
	if diff < -50*time.Millisecond || diff > 50*time.Millisecond {
		t.Fatalf("resampled duration = %v, want ~%v", out.Duration(), c.Duration())
	}
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	c := sine(audio.DefaultFormat, 440, 500*time.Millisecond, 0.5)

	if err := audio.EncodeWAV(path, c); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := audio.DecodeFile(path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Format.SampleRate != c.Format.SampleRate {
		t.Fatalf("sample rate = %d, want %d", got.Format.SampleRate, c.Format.SampleRate)
	}
	if got.Frames() != c.Frames() {
		t.Fatalf("frames = %d, want %d", got.Frames(), c.Frames())
	}
	rmsDiff := math.Abs(got.RMS() - c.RMS())
	if rmsDiff > 0.01 {
		t.Fatalf("rms drift %v after round trip", rmsDiff)
	}
}

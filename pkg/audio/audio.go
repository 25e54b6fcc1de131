// Package audio provides the PCM building blocks shared by feature
// extraction and mix assembly: a Clip type holding interleaved 16-bit
// samples, decoding from MP3/WAV, sample-rate conversion, gain and fade
// envelopes, overlay mixing, and WAV encoding.
package audio

import (
	"math"
	"time"
)

// Format describes a PCM format. Samples are 16-bit signed integers.
type Format struct {
	// SampleRate is the sample rate in Hz (e.g., 44100, 48000).
	SampleRate int

	// Stereo indicates stereo (2 channels) if true, mono (1 channel) if false.
	Stereo bool
}

// DefaultFormat is the working format for mixing: 44.1 kHz stereo.
var DefaultFormat = Format{SampleRate: 44100, Stereo: true}

// Channels returns the number of channels.
func (f Format) Channels() int {
	if f.Stereo {
		return 2
	}
	return 1
}

// Clip is a chunk of PCM audio in memory. Samples are interleaved across
// channels. Operations that modify the clip do so in place and return the
// receiver for chaining.
type Clip struct {
	Format  Format
	Samples []int16
}

// NewClip allocates a silent clip of the given duration.
func NewClip(f Format, d time.Duration) *Clip {
	frames := int(float64(f.SampleRate) * d.Seconds())
	return &Clip{
		Format:  f,
		Samples: make([]int16, frames*f.Channels()),
	}
}

// Frames returns the number of sample frames in the clip.
func (c *Clip) Frames() int {
	return len(c.Samples) / c.Format.Channels()
}

// Duration returns the clip length.
func (c *Clip) Duration() time.Duration {
	if c.Format.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(c.Frames()) / float64(c.Format.SampleRate) * float64(time.Second))
}

// frameAt converts a time offset to a frame index, clamped to the clip.
func (c *Clip) frameAt(at time.Duration) int {
	fr := int(float64(c.Format.SampleRate) * at.Seconds())
	if fr < 0 {
		fr = 0
	}
	if fr > c.Frames() {
		fr = c.Frames()
	}
	return fr
}

// Slice returns a new clip containing the samples between start and end.
// The returned clip shares no memory with the receiver.
func (c *Clip) Slice(start, end time.Duration) *Clip {
	ch := c.Format.Channels()
	lo := c.frameAt(start) * ch
	hi := c.frameAt(end) * ch
	if hi < lo {
		hi = lo
	}
	out := make([]int16, hi-lo)
	copy(out, c.Samples[lo:hi])
	return &Clip{Format: c.Format, Samples: out}
}

// Clone returns a deep copy of the clip.
func (c *Clip) Clone() *Clip {
	out := make([]int16, len(c.Samples))
	copy(out, c.Samples)
	return &Clip{Format: c.Format, Samples: out}
}

// Append appends other to the end of the clip. Formats must match.
func (c *Clip) Append(other *Clip) *Clip {
	c.Samples = append(c.Samples, other.Samples...)
	return c
}

// Gain applies a gain in decibels to the whole clip.
func (c *Clip) Gain(db float64) *Clip {
	mult := math.Pow(10, db/20)
	for i, s := range c.Samples {
		c.Samples[i] = clampSample(float64(s) * mult)
	}
	return c
}

// FadeIn applies a linear fade-in over d from the start of the clip.
func (c *Clip) FadeIn(d time.Duration) *Clip {
	ch := c.Format.Channels()
	frames := c.frameAt(d)
	for fr := 0; fr < frames; fr++ {
		g := float64(fr) / float64(frames)
		for k := 0; k < ch; k++ {
			i := fr*ch + k
			c.Samples[i] = clampSample(float64(c.Samples[i]) * g)
		}
	}
	return c
}

// FadeOut applies a linear fade-out over d at the end of the clip.
func (c *Clip) FadeOut(d time.Duration) *Clip {
	ch := c.Format.Channels()
	total := c.Frames()
	frames := c.frameAt(d)
	for fr := total - frames; fr < total; fr++ {
		g := float64(total-fr) / float64(frames)
		for k := 0; k < ch; k++ {
			i := fr*ch + k
			c.Samples[i] = clampSample(float64(c.Samples[i]) * g)
		}
	}
	return c
}

// Overlay mixes other into the clip starting at the given offset. The clip
// is extended if other reaches past its end. Formats must match.
func (c *Clip) Overlay(other *Clip, at time.Duration) *Clip {
	ch := c.Format.Channels()
	start := c.frameAt(at) * ch
	need := start + len(other.Samples)
	for len(c.Samples) < need {
		c.Samples = append(c.Samples, 0)
	}
	for i, s := range other.Samples {
		c.Samples[start+i] = clampSample(float64(c.Samples[start+i]) + float64(s))
	}
	return c
}

// Peak returns the peak amplitude normalized to [0, 1].
func (c *Clip) Peak() float64 {
	var peak int16
	for _, s := range c.Samples {
		if s > peak {
			peak = s
		} else if -s > peak {
			peak = -s
		}
	}
	return float64(peak) / 32768.0
}

// RMS returns the root-mean-square level normalized to [0, 1].
func (c *Clip) RMS() float64 {
	if len(c.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range c.Samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum/float64(len(c.Samples))) / 32768.0
}

// Normalize scales the clip so its peak sits at -headroomDB below full scale.
// A silent clip is returned unchanged.
func (c *Clip) Normalize(headroomDB float64) *Clip {
	peak := c.Peak()
	if peak == 0 {
		return c
	}
	target := math.Pow(10, -headroomDB/20)
	mult := target / peak
	for i, s := range c.Samples {
		c.Samples[i] = clampSample(float64(s) * mult)
	}
	return c
}

// Compress applies simple dynamic range compression: samples above the
// threshold (in dBFS, negative) are reduced by the given ratio.
func (c *Clip) Compress(thresholdDB, ratio float64) *Clip {
	if ratio <= 1 {
		return c
	}
	thresh := math.Pow(10, thresholdDB/20) * 32768.0
	for i, s := range c.Samples {
		v := float64(s)
		mag := math.Abs(v)
		if mag <= thresh {
			continue
		}
		over := mag - thresh
		mag = thresh + over/ratio
		if v < 0 {
			mag = -mag
		}
		c.Samples[i] = clampSample(mag)
	}
	return c
}

// MonoFloats returns the clip downmixed to mono as float64 samples in [-1, 1].
func (c *Clip) MonoFloats() []float64 {
	ch := c.Format.Channels()
	frames := c.Frames()
	out := make([]float64, frames)
	for fr := 0; fr < frames; fr++ {
		var sum float64
		for k := 0; k < ch; k++ {
			sum += float64(c.Samples[fr*ch+k])
		}
		out[fr] = sum / float64(ch) / 32768.0
	}
	return out
}

func clampSample(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

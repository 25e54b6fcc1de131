package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Convert resamples a clip to the destination format, converting the sample
// rate and channel count as needed. The source clip is not modified; when no
// conversion is needed the clip is returned as-is.
func Convert(c *Clip, dst Format) (*Clip, error) {
	if c.Format == dst {
		return c, nil
	}

	cur := c

	// Channel conversion first so the resampler sees the target layout.
	if cur.Format.Stereo != dst.Stereo {
		cur = convertChannels(cur, dst.Stereo)
	}

	if cur.Format.SampleRate == dst.SampleRate {
		return cur, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(cur.Format.SampleRate),
		OutputRate: float64(dst.SampleRate),
		Channels:   dst.Channels(),
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: create resampler: %w", err)
	}

	input := make([]float64, len(cur.Samples))
	for i, s := range cur.Samples {
		input[i] = float64(s) / 32768.0
	}

	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("audio: resample: %w", err)
	}

	samples := make([]int16, len(output))
	for i, v := range output {
		samples[i] = clampSample(v * 32767.0)
	}

	return &Clip{Format: dst, Samples: samples}, nil
}

// convertChannels converts between mono and stereo layouts.
func convertChannels(c *Clip, stereo bool) *Clip {
	if c.Format.Stereo == stereo {
		return c
	}
	var out []int16
	if stereo {
		// Mono to stereo: duplicate each sample.
		out = make([]int16, len(c.Samples)*2)
		for i, s := range c.Samples {
			out[i*2] = s
			out[i*2+1] = s
		}
	} else {
		// Stereo to mono: average each frame.
		frames := len(c.Samples) / 2
		out = make([]int16, frames)
		for fr := 0; fr < frames; fr++ {
			l := int32(c.Samples[fr*2])
			r := int32(c.Samples[fr*2+1])
			out[fr] = int16((l + r) / 2)
		}
	}
	return &Clip{
		Format:  Format{SampleRate: c.Format.SampleRate, Stereo: stereo},
		Samples: out,
	}
}

package audio

import "math"

// LowPass applies a first-order low-pass filter with the given cutoff in Hz,
// per channel.
func (c *Clip) LowPass(cutoff float64) *Clip {
	return c.filter(cutoff, false)
}

// HighPass applies a first-order high-pass filter with the given cutoff in
// Hz, per channel.
func (c *Clip) HighPass(cutoff float64) *Clip {
	return c.filter(cutoff, true)
}

func (c *Clip) filter(cutoff float64, highpass bool) *Clip {
	if cutoff <= 0 {
		return c
	}
	ch := c.Format.Channels()
	dt := 1.0 / float64(c.Format.SampleRate)
	rc := 1.0 / (2 * math.Pi * cutoff)
	alpha := dt / (rc + dt)

	for k := 0; k < ch; k++ {
		var prevIn, prevOut float64
		for i := k; i < len(c.Samples); i += ch {
			in := float64(c.Samples[i])
			var out float64
			if highpass {
				// y[n] = a * (y[n-1] + x[n] - x[n-1]) with a = rc/(rc+dt)
				a := rc / (rc + dt)
				out = a * (prevOut + in - prevIn)
			} else {
				out = prevOut + alpha*(in-prevOut)
			}
			prevIn, prevOut = in, out
			c.Samples[i] = clampSample(out)
		}
	}
	return c
}

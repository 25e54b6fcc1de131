package audio

import (
	"fmt"
	"os"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// EncodeWAV writes a clip to path as a 16-bit PCM WAV file.
func EncodeWAV(path string, c *Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create %s: %w", path, err)
	}
	defer f.Close()

	format := beep.Format{
		SampleRate:  beep.SampleRate(c.Format.SampleRate),
		NumChannels: c.Format.Channels(),
		Precision:   2,
	}
	if err := wav.Encode(f, &clipStreamer{clip: c}, format); err != nil {
		return fmt.Errorf("audio: encode %s: %w", path, err)
	}
	return nil
}

// clipStreamer adapts a Clip to the beep.Streamer interface.
type clipStreamer struct {
	clip *Clip
	pos  int
}

func (s *clipStreamer) Stream(samples [][2]float64) (int, bool) {
	frames := s.clip.Frames()
	if s.pos >= frames {
		return 0, false
	}
	ch := s.clip.Format.Channels()
	n := 0
	for n < len(samples) && s.pos < frames {
		if ch == 2 {
			samples[n][0] = float64(s.clip.Samples[s.pos*2]) / 32768.0
			samples[n][1] = float64(s.clip.Samples[s.pos*2+1]) / 32768.0
		} else {
			v := float64(s.clip.Samples[s.pos]) / 32768.0
			samples[n][0] = v
			samples[n][1] = v
		}
		s.pos++
		n++
	}
	return n, true
}

func (s *clipStreamer) Err() error { return nil }

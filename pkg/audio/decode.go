package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// DecodeFile loads an audio file into a Clip based on its extension.
// MP3 and WAV are supported; everything the sourcing layer downloads is MP3,
// WAV shows up for locally supplied tracks and draft renders.
func DecodeFile(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return DecodeMP3(f)
	case ".wav":
		return DecodeWAV(f)
	default:
		return nil, fmt.Errorf("audio: unsupported file type: %s", filepath.Ext(path))
	}
}

// DecodeMP3 decodes an MP3 stream into a stereo Clip at the stream's
// native sample rate.
func DecodeMP3(r io.Reader) (*Clip, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("audio: mp3 decode: %w", err)
	}

	// go-mp3 always emits 16-bit little-endian stereo.
	var samples []int16
	buf := make([]byte, 8192)
	for {
		n, err := dec.Read(buf)
		for i := 0; i+1 < n; i += 2 {
			samples = append(samples, int16(buf[i])|int16(buf[i+1])<<8)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("audio: mp3 read: %w", err)
		}
	}

	return &Clip{
		Format:  Format{SampleRate: dec.SampleRate(), Stereo: true},
		Samples: samples,
	}, nil
}

// DecodeWAV decodes a WAV stream into a Clip.
func DecodeWAV(r io.Reader) (*Clip, error) {
	stream, format, err := wav.Decode(io.NopCloser(r))
	if err != nil {
		return nil, fmt.Errorf("audio: wav decode: %w", err)
	}
	defer stream.Close()

	stereo := format.NumChannels >= 2

	var samples []int16
	frame := make([][2]float64, 512)
	for {
		n, ok := stream.Stream(frame)
		for i := 0; i < n; i++ {
			samples = append(samples, clampSample(frame[i][0]*32767))
			if stereo {
				samples = append(samples, clampSample(frame[i][1]*32767))
			}
		}
		if !ok {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("audio: wav read: %w", err)
	}

	return &Clip{
		Format:  Format{SampleRate: int(format.SampleRate), Stereo: stereo},
		Samples: samples,
	}, nil
}

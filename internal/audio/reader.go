package audio

import (
	"errors"
	"fmt"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/goccmack/godsp"
)

// Channel layout of the experiment recordings.
const (
	BeatChannel = 0
	TapChannel  = 1
)

// ErrNotStereo is returned for recordings with fewer than two channels.
var ErrNotStereo = errors.New("recording needs a beat and a tap channel")

// Recording holds the two channels of a WAV file as float64 samples in [-1, 1].
type Recording struct {
	SampleRate int
	BitDepth   int
	Beats      []float64
	Taps       []float64
}

// Duration returns the length of the recording.
func (r *Recording) Duration() time.Duration {
	if r.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(r.Beats)) / float64(r.SampleRate) * float64(time.Second))
}

// ReadStereoWav decodes a PCM WAV file and splits its first two channels.
// Extra channels are ignored.
func ReadStereoWav(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file: %s", path)
	}
	if decoder.WavAudioFormat != 1 {
		return nil, fmt.Errorf("unsupported WAV audio format %d: only PCM (1) supported", decoder.WavAudioFormat)
	}

	numChans := int(decoder.NumChans)
	if numChans < 2 {
		return nil, fmt.Errorf("%s: %w (found %d)", path, ErrNotStereo, numChans)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, fmt.Errorf("unsupported bits per sample: %d", bitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}

	beats, taps := splitChannels(buf.Data, numChans, bitDepth)
	return &Recording{
		SampleRate: int(decoder.SampleRate),
		BitDepth:   bitDepth,
		Beats:      beats,
		Taps:       taps,
	}, nil
}

// splitChannels deinterleaves the beat and tap channels, scaled to [-1, 1].
func splitChannels(data []int, numChans, bitDepth int) ([]float64, []float64) {
	scale := 1.0 / float64(int(1)<<(bitDepth-1))
	frames := len(data) / numChans

	beats := make([]float64, frames)
	taps := make([]float64, frames)
	for i := 0; i < frames; i++ {
		beats[i] = float64(data[i*numChans+BeatChannel]) * scale
		taps[i] = float64(data[i*numChans+TapChannel]) * scale
	}
	return beats, taps
}

// Normalize divides a channel by its maximum so the strongest event is 1.
// A channel that never goes above zero is returned as silence.
func Normalize(x []float64) []float64 {
	if len(x) == 0 {
		return []float64{}
	}
	peak := godsp.Max(x)
	if peak <= 0 {
		return make([]float64, len(x))
	}
	return godsp.DivS(x, peak)
}

// WriteStereoWav writes two equally long channels as a 16-bit PCM WAV file.
func WriteStereoWav(path string, sampleRate int, beats, taps []float64) error {
	if len(beats) != len(taps) {
		return fmt.Errorf("channel length mismatch: %d beats, %d taps", len(beats), len(taps))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	const bitDepth = 16
	data := make([]int, 2*len(beats))
	for i := range beats {
		data[2*i] = toPCM16(beats[i])
		data[2*i+1] = toPCM16(taps[i])
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding samples: %w", err)
	}
	return enc.Close()
}

func toPCM16(v float64) int {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int(v * 32767)
}

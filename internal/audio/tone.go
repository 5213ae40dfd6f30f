package audio

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// ToneSource generates a sine wave in real time. It is mostly useful for
// checking a capture setup without any hardware attached.
type ToneSource struct {
	mixRate     int
	blockFrames int
	freq        float64
	amplitude   float32
}

// NewToneSource creates a sine generator
func NewToneSource(mixRate, blockFrames int, freq, amplitude float64) *ToneSource {
	if blockFrames <= 0 {
		blockFrames = 512
	}
	return &ToneSource{
		mixRate:     mixRate,
		blockFrames: blockFrames,
		freq:        freq,
		amplitude:   float32(amplitude),
	}
}

func (s *ToneSource) Name() string {
	return string(SourceTypeTone)
}

// Run delivers one block per block period until ctx is cancelled
func (s *ToneSource) Run(ctx context.Context, sink Sink) error {
	block := make([]Frame, s.blockFrames)
	period := time.Duration(float64(time.Second) * float64(s.blockFrames) / float64(s.mixRate))

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	slog.Debug("Tone source started", "freq", s.freq, "block_frames", s.blockFrames, "period", period)

	var phase float64
	step := 2 * math.Pi * s.freq / float64(s.mixRate)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Tone source stopped")
			return nil
		case <-ticker.C:
			for i := range block {
				v := s.amplitude * float32(math.Sin(phase))
				block[i] = Frame{L: v, R: v}
				phase += step
				if phase >= 2*math.Pi {
					phase -= 2 * math.Pi
				}
			}
			sink.Deliver(block)
		}
	}
}

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jfreymuth/pulse"
)

// PulseSource records from the default PulseAudio (or pipewire-pulse)
// source using the native protocol client.
type PulseSource struct {
	mixRate     int
	blockFrames int
}

// NewPulseSource creates a PulseAudio backed source
func NewPulseSource(mixRate, blockFrames int) *PulseSource {
	if blockFrames <= 0 {
		blockFrames = 512
	}
	return &PulseSource{mixRate: mixRate, blockFrames: blockFrames}
}

func (s *PulseSource) Name() string {
	return string(SourceTypePulse)
}

// Run records until ctx is cancelled. The record callback runs on the
// client's goroutine and reuses one preallocated block.
func (s *PulseSource) Run(ctx context.Context, sink Sink) error {
	client, err := pulse.NewClient()
	if err != nil {
		return fmt.Errorf("failed to connect to pulse server: %w", err)
	}
	defer client.Close()

	block := make([]Frame, s.blockFrames)
	writer := pulse.Float32Writer(func(samples []float32) (int, error) {
		deliverInterleaved(sink, block, samples)
		return len(samples), nil
	})

	stream, err := client.NewRecord(writer, pulse.RecordStereo, pulse.RecordSampleRate(s.mixRate))
	if err != nil {
		return fmt.Errorf("failed to create pulse record stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	slog.Info("Pulse source started", "rate", s.mixRate)

	<-ctx.Done()
	stream.Stop()
	slog.Debug("Pulse source stopped")
	return nil
}

// deliverInterleaved splits interleaved stereo samples into blocks
func deliverInterleaved(sink Sink, block []Frame, samples []float32) {
	for len(samples) >= Channels {
		n := len(samples) / Channels
		if n > len(block) {
			n = len(block)
		}
		for i := 0; i < n; i++ {
			block[i] = Frame{L: samples[2*i], R: samples[2*i+1]}
		}
		sink.Deliver(block[:n])
		samples = samples[n*Channels:]
	}
}

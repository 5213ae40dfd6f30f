package audio

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/audiolibrelab/capturewav/internal/config"
)

// SourceType names a frame source implementation
type SourceType string

const (
	SourceTypeTone     SourceType = "tone"
	SourceTypeStdin    SourceType = "stdin"
	SourceTypePipeWire SourceType = "pipewire"
	SourceTypePulse    SourceType = "pulse"
)

// Sink receives blocks from a source. Bus is the production sink.
type Sink interface {
	Deliver(frames []Frame)
}

// Source produces stereo blocks on its own goroutine until ctx is done.
type Source interface {
	Run(ctx context.Context, sink Sink) error
	Name() string
}

// NewSource builds the source selected in the configuration
func NewSource(cfg *config.Config) (Source, error) {
	switch SourceType(strings.ToLower(cfg.Audio.Source)) {
	case SourceTypeTone, "":
		return NewToneSource(cfg.Audio.MixRate, cfg.Audio.BlockFrames, cfg.Audio.ToneHz, cfg.Audio.ToneAmplitude), nil
	case SourceTypeStdin:
		return NewStreamSource("stdin", os.Stdin, cfg.Audio.BlockFrames), nil
	case SourceTypePipeWire:
		return NewPipeWireSource(cfg.Audio.MixRate, cfg.Audio.Target, cfg.Audio.BlockFrames), nil
	case SourceTypePulse:
		return NewPulseSource(cfg.Audio.MixRate, cfg.Audio.BlockFrames), nil
	default:
		return nil, fmt.Errorf("unknown audio source: %s", cfg.Audio.Source)
	}
}

// GetAvailableSources returns the source types this build understands
func GetAvailableSources() []SourceType {
	return []SourceType{SourceTypeTone, SourceTypeStdin, SourceTypePipeWire, SourceTypePulse}
}

package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
)

// StreamSource decodes raw interleaved little-endian float32 stereo audio
// from a reader, as produced by `pw-record --format f32` or
// `parec --format=float32le --channels=2`.
type StreamSource struct {
	name        string
	r           io.Reader
	blockFrames int
}

// NewStreamSource wraps r as a frame source
func NewStreamSource(name string, r io.Reader, blockFrames int) *StreamSource {
	if blockFrames <= 0 {
		blockFrames = 512
	}
	return &StreamSource{name: name, r: r, blockFrames: blockFrames}
}

func (s *StreamSource) Name() string {
	return s.name
}

// Run reads until EOF or until ctx is cancelled. A trailing partial frame
// is discarded. A reader that is also an io.Closer is closed on
// cancellation so that a blocked read returns.
func (s *StreamSource) Run(ctx context.Context, sink Sink) error {
	if c, ok := s.r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	raw := make([]byte, s.blockFrames*BytesPerFrame)
	block := make([]Frame, s.blockFrames)
	var total uint64

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := io.ReadFull(s.r, raw)
		frames := DecodeFrames(block, raw[:n-n%BytesPerFrame])
		if frames > 0 {
			sink.Deliver(block[:frames])
			total += uint64(frames)
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			slog.Debug("Stream source reached end of input", "source", s.name, "frames", total)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read %s stream: %w", s.name, err)
		}
	}
}

// DecodeFrames fills dst from interleaved little-endian float32 samples and
// returns the number of frames decoded.
func DecodeFrames(dst []Frame, raw []byte) int {
	n := len(raw) / BytesPerFrame
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		off := i * BytesPerFrame
		dst[i].L = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		dst[i].R = math.Float32frombits(binary.LittleEndian.Uint32(raw[off+4:]))
	}
	return n
}

// EncodeFrames writes frames as interleaved little-endian float32 samples
// into dst, which must hold len(frames)*BytesPerFrame bytes.
func EncodeFrames(dst []byte, frames []Frame) {
	for i, f := range frames {
		off := i * BytesPerFrame
		binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(f.L))
		binary.LittleEndian.PutUint32(dst[off+4:], math.Float32bits(f.R))
	}
}

// Package wavfile writes stereo IEEE-float WAV files incrementally.
//
// A file is valid after every header refresh, not only after Close, so a
// capture killed mid-way still leaves a playable file up to the last
// refresh.
package wavfile

import (
	"encoding/binary"
	"math"
)

const (
	// HeaderSize is the size of the canonical RIFF/WAVE header.
	HeaderSize = 44

	FormatIEEEFloat = 3
	NumChannels     = 2
	BitsPerSample   = 32
	BlockAlign      = NumChannels * BitsPerSample / 8

	// MaxFrames is the most a file can hold before ChunkSize overflows.
	MaxFrames = (math.MaxUint32 - 36) / BlockAlign
)

// Header builds the canonical header for frames stereo float frames.
// Counts above MaxFrames are clamped.
func Header(sampleRate int, frames uint64) [HeaderSize]byte {
	if frames > MaxFrames {
		frames = MaxFrames
	}
	dataSize := uint32(frames * BlockAlign)

	var h [HeaderSize]byte
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], dataSize+36)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], FormatIEEEFloat)
	binary.LittleEndian.PutUint16(h[22:24], NumChannels)
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(sampleRate)*BlockAlign)
	binary.LittleEndian.PutUint16(h[32:34], BlockAlign)
	binary.LittleEndian.PutUint16(h[34:36], BitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	return h
}

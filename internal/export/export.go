// Package export reads captured WAV files back and converts them for tools
// that do not understand IEEE-float audio.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/audiolibrelab/capturewav/internal/audio"
	"github.com/audiolibrelab/capturewav/internal/wavfile"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// PCMBitDepth is the bit depth of exported files
const PCMBitDepth = 16

// ErrUnsupportedFormat is returned for files that are not stereo 32-bit float
var ErrUnsupportedFormat = errors.New("unsupported wav format")

const (
	wavFormatPCM   = 1
	chunkFrames    = 4096
	pcm16FullScale = 32767
)

// Info describes a WAV file
type Info struct {
	Path       string        `json:"path" yaml:"path"`
	Format     string        `json:"format" yaml:"format"`
	FormatCode uint16        `json:"format_code" yaml:"format_code"`
	Channels   int           `json:"channels" yaml:"channels"`
	SampleRate int           `json:"sample_rate" yaml:"sample_rate"`
	BitDepth   int           `json:"bit_depth" yaml:"bit_depth"`
	Frames     uint64        `json:"frames" yaml:"frames"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// Inspect decodes the header of a WAV file and locates its data chunk
func Inspect(fs afero.Fs, path string) (*Info, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	decoder, err := openDecoder(file, path)
	if err != nil {
		return nil, err
	}
	return describe(decoder, path), nil
}

// ToPCM16 converts a captured float recording at in to a 16-bit PCM WAV at
// out and returns the number of frames converted.
func ToPCM16(fs afero.Fs, in, out string) (uint64, error) {
	if in == out {
		return 0, fmt.Errorf("input and output are the same file: %s", in)
	}

	src, err := fs.Open(in)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", in, err)
	}
	defer src.Close()

	decoder, err := openDecoder(src, in)
	if err != nil {
		return 0, err
	}
	info := describe(decoder, in)
	if info.FormatCode != wavfile.FormatIEEEFloat || info.Channels != wavfile.NumChannels || info.BitDepth != wavfile.BitsPerSample {
		return 0, fmt.Errorf("%w: %s is %s, %d channels, %d bit", ErrUnsupportedFormat, in, info.Format, info.Channels, info.BitDepth)
	}

	if info.Frames == 0 {
		return 0, fmt.Errorf("%s contains no audio", in)
	}

	dst, err := fs.Create(out)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer dst.Close()

	encoder := wav.NewEncoder(dst, info.SampleRate, PCMBitDepth, info.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: info.Channels,
			SampleRate:  info.SampleRate,
		},
		SourceBitDepth: PCMBitDepth,
	}

	raw := make([]byte, chunkFrames*audio.BytesPerFrame)
	frames := make([]audio.Frame, chunkFrames)
	ints := make([]int, chunkFrames*audio.Channels)

	var total uint64
	remaining := decoder.PCMSize
	for remaining >= audio.BytesPerFrame {
		size := len(raw)
		if remaining < size {
			size = remaining - remaining%audio.BytesPerFrame
		}
		if _, err := io.ReadFull(decoder.PCMChunk, raw[:size]); err != nil {
			return total, fmt.Errorf("failed to read samples from %s: %w", in, err)
		}
		remaining -= size

		n := audio.DecodeFrames(frames, raw[:size])
		for i := 0; i < n; i++ {
			ints[2*i] = floatToPCM16(frames[i].L)
			ints[2*i+1] = floatToPCM16(frames[i].R)
		}
		buf.Data = ints[:n*audio.Channels]
		if err := encoder.Write(buf); err != nil {
			return total, fmt.Errorf("failed to write %s: %w", out, err)
		}
		total += uint64(n)
	}

	if err := encoder.Close(); err != nil {
		return total, fmt.Errorf("failed to finalize %s: %w", out, err)
	}
	return total, nil
}

func openDecoder(r io.ReadSeeker, path string) (*wav.Decoder, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if err := decoder.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wav header of %s: %w", path, err)
	}
	if decoder.SampleRate == 0 || decoder.NumChans == 0 || decoder.BitDepth == 0 {
		return nil, fmt.Errorf("%s is not a valid wav file", path)
	}
	if err := decoder.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to find data chunk in %s: %w", path, err)
	}
	return decoder, nil
}

func describe(d *wav.Decoder, path string) *Info {
	info := &Info{
		Path:       path,
		Format:     formatName(d.WavAudioFormat),
		FormatCode: d.WavAudioFormat,
		Channels:   int(d.NumChans),
		SampleRate: int(d.SampleRate),
		BitDepth:   int(d.BitDepth),
	}
	if blockAlign := info.Channels * info.BitDepth / 8; blockAlign > 0 {
		info.Frames = uint64(d.PCMSize / blockAlign)
	}
	if info.SampleRate > 0 {
		info.Duration = time.Duration(float64(info.Frames) / float64(info.SampleRate) * float64(time.Second))
	}
	return info
}

func formatName(code uint16) string {
	switch code {
	case wavFormatPCM:
		return "pcm"
	case wavfile.FormatIEEEFloat:
		return "ieee_float"
	default:
		return fmt.Sprintf("format_%d", code)
	}
}

func floatToPCM16(v float32) int {
	switch {
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	return int(math.Round(float64(v) * pcm16FullScale))
}

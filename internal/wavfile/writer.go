package wavfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/audiolibrelab/capturewav/internal/audio"
	"github.com/spf13/afero"
)

// State is the lifecycle stage of a Writer
type State int32

const (
	StateUninitialized State = iota
	StateHeaderReserved
	StateStreaming
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateHeaderReserved:
		return "HEADER_RESERVED"
	case StateStreaming:
		return "STREAMING"
	case StateFinalized:
		return "FINALIZED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

var (
	ErrNotBegun     = errors.New("wav writer has not begun")
	ErrFinalized    = errors.New("wav writer is finalized")
	ErrAlreadyBegun = errors.New("wav writer already begun")
	ErrTooLarge     = errors.New("wav file size limit reached")
)

// Writer streams stereo float frames to a WAV file. Each Append opens the
// file, seeks to the end, writes and closes again; the header is rewritten
// in place by RefreshHeader.
//
// After Begin a Writer is owned by a single goroutine. State, Frames and
// Path may be read from anywhere.
type Writer struct {
	fs         afero.Fs
	sampleRate int

	path   atomic.Pointer[string]
	state  atomic.Int32
	frames atomic.Uint64

	scratch []byte
}

// NewWriter creates a writer for the given file system and mix rate
func NewWriter(fs afero.Fs, sampleRate int) *Writer {
	return &Writer{fs: fs, sampleRate: sampleRate}
}

// State returns the current lifecycle stage
func (w *Writer) State() State {
	return State(w.state.Load())
}

// Path returns the resolved output path, empty before Begin
func (w *Writer) Path() string {
	if p := w.path.Load(); p != nil {
		return *p
	}
	return ""
}

// Frames returns the number of frames appended so far
func (w *Writer) Frames() uint64 {
	return w.frames.Load()
}

// SampleRate returns the rate written into the header
func (w *Writer) SampleRate() int {
	return w.sampleRate
}

// Begin picks a non-colliding path for base (given without extension),
// creates the file and reserves the header with zero bytes.
func (w *Writer) Begin(base string) (string, error) {
	if w.State() != StateUninitialized {
		return "", ErrAlreadyBegun
	}

	path, err := ResolvePath(w.fs, base)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := w.fs.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := w.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	var placeholder [HeaderSize]byte
	if _, err := file.Write(placeholder[:]); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to reserve header in %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	w.path.Store(&path)
	w.frames.Store(0)
	w.state.Store(int32(StateHeaderReserved))
	return path, nil
}

// Append writes frames after the existing payload
func (w *Writer) Append(frames []audio.Frame) error {
	if err := w.checkWritable(); err != nil {
		return err
	}
	if len(frames) == 0 {
		return nil
	}
	if w.Frames()+uint64(len(frames)) > MaxFrames {
		return fmt.Errorf("%w: %s holds %d frames", ErrTooLarge, w.Path(), w.Frames())
	}

	size := len(frames) * audio.BytesPerFrame
	if cap(w.scratch) < size {
		w.scratch = make([]byte, size)
	}
	buf := w.scratch[:size]
	audio.EncodeFrames(buf, frames)

	path := w.Path()
	file, err := w.fs.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return fmt.Errorf("failed to seek in %s: %w", path, err)
	}
	if _, err := file.Write(buf); err != nil {
		file.Close()
		return fmt.Errorf("failed to write frames to %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	w.frames.Add(uint64(len(frames)))
	w.state.Store(int32(StateStreaming))
	return nil
}

// RefreshHeader rewrites the header so that it declares totalFrames frames
func (w *Writer) RefreshHeader(totalFrames uint64) error {
	if err := w.checkWritable(); err != nil {
		return err
	}
	return w.writeHeader(totalFrames)
}

// Close writes the final header and finalizes the writer
func (w *Writer) Close() error {
	if err := w.checkWritable(); err != nil {
		return err
	}
	if err := w.writeHeader(w.Frames()); err != nil {
		return err
	}
	w.state.Store(int32(StateFinalized))
	return nil
}

func (w *Writer) writeHeader(totalFrames uint64) error {
	path := w.Path()
	header := Header(w.sampleRate, totalFrames)

	file, err := w.fs.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := file.WriteAt(header[:], 0); err != nil {
		file.Close()
		return fmt.Errorf("failed to write header to %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func (w *Writer) checkWritable() error {
	switch w.State() {
	case StateUninitialized:
		return ErrNotBegun
	case StateFinalized:
		return ErrFinalized
	}
	return nil
}

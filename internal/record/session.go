package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiolibrelab/capturewav/internal/audio"
	"github.com/audiolibrelab/capturewav/internal/wavfile"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrWorkerActive is returned when a session is started while the worker
// of its previous run has not been joined yet.
var ErrWorkerActive = errors.New("capture worker still active")

// SessionInfo is a point-in-time snapshot of a session
type SessionInfo struct {
	ID            string    `json:"id"`
	OutputFile    string    `json:"output_file"`
	StartTime     time.Time `json:"start_time"`
	Recording     bool      `json:"recording"`
	FramesWritten uint64    `json:"frames_written"`
	DroppedFrames uint64    `json:"dropped_frames"`
	BufferFrames  int       `json:"buffer_frames"`
	WorkerState   string    `json:"worker_state"`
	Error         string    `json:"error,omitempty"`
}

// Session binds a ring buffer, an output file and a capture worker. It is
// the processor the audio graph feeds.
type Session struct {
	id       string
	fs       afero.Fs
	mixRate  int
	savePath func() string
	opts     Options
	logger   *slog.Logger

	ring      *audio.RingBuffer
	recording atomic.Bool

	mu        sync.Mutex
	worker    *Worker
	writer    *wavfile.Writer
	startTime time.Time
}

var _ audio.AudioProcessor = (*Session)(nil)

func newSession(opts Options, savePath func() string) *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		fs:       opts.Fs,
		mixRate:  opts.MixRate,
		savePath: savePath,
		opts:     opts,
		logger:   opts.Logger.With("session_id", id),
		ring:     audio.NewRingBuffer(audio.CapacityFor(opts.BufferMs, opts.MixRate)),
	}
}

// ID returns the session identifier used in logs
func (s *Session) ID() string {
	return s.id
}

// Process pushes a block into the ring buffer while recording. It runs on
// the real-time path: no locks, no allocation, no I/O.
func (s *Session) Process(frames []audio.Frame) {
	if !s.recording.Load() {
		return
	}
	s.ring.Push(frames)
}

// ProcessSilence always asks for silent blocks so that silence is captured too
func (s *Session) ProcessSilence() bool {
	return true
}

// Recording reports whether the session is accepting frames
func (s *Session) Recording() bool {
	return s.recording.Load()
}

// Start opens a fresh output file and spawns the capture worker
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.worker != nil && s.worker.Active() {
		return ErrWorkerActive
	}

	s.ring.Reset()

	writer := wavfile.NewWriter(s.fs, s.mixRate)
	path, err := writer.Begin(s.savePath())
	if err != nil {
		s.logger.Error("Failed to begin recording", "error", err)
		return fmt.Errorf("failed to start recording: %w", err)
	}

	s.writer = writer
	s.worker = newWorker(s.ring, writer, s.recording.Load, s.onWorkerExit,
		s.opts.IdleWait, s.opts.HeaderRefresh, s.logger)
	s.startTime = time.Now()

	s.recording.Store(true)
	s.worker.start()

	s.logger.Info("Recording started", "path", path, "mix_rate", s.mixRate, "buffer_frames", s.ring.Capacity())
	return nil
}

// Stop asks the worker to finish. It does not wait for it.
func (s *Session) Stop() {
	if s.recording.Swap(false) {
		s.logger.Info("Recording stop requested")
	}
}

// Join waits for the worker of the last run to exit
func (s *Session) Join(ctx context.Context) error {
	s.mu.Lock()
	worker := s.worker
	s.mu.Unlock()

	if worker == nil {
		return nil
	}
	return worker.Join(ctx)
}

// Close stops the session and waits for its worker
func (s *Session) Close(ctx context.Context) error {
	s.Stop()
	return s.Join(ctx)
}

// WorkerActive reports whether a worker goroutine is still running
func (s *Session) WorkerActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worker != nil && s.worker.Active()
}

// Err returns the error that stopped the last run, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.worker == nil {
		return nil
	}
	return s.worker.Err()
}

// Info returns a snapshot of the session
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := SessionInfo{
		ID:            s.id,
		StartTime:     s.startTime,
		Recording:     s.recording.Load(),
		DroppedFrames: s.ring.Dropped(),
		BufferFrames:  s.ring.Capacity(),
		WorkerState:   WorkerIdle.String(),
	}
	if s.writer != nil {
		info.OutputFile = s.writer.Path()
		info.FramesWritten = s.writer.Frames()
	}
	if s.worker != nil {
		info.WorkerState = s.worker.State().String()
		if err := s.worker.Err(); err != nil {
			info.Error = err.Error()
		}
	}
	return info
}

func (s *Session) onWorkerExit(err error) {
	if err != nil {
		s.recording.Store(false)
	}
}

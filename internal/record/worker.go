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
)

// WorkerState is the lifecycle stage of a capture worker
type WorkerState int32

const (
	WorkerIdle WorkerState = iota
	WorkerRunning
	WorkerDraining
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "IDLE"
	case WorkerRunning:
		return "RUNNING"
	case WorkerDraining:
		return "DRAINING"
	case WorkerStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("WorkerState(%d)", int32(s))
	}
}

// DefaultIdleWait is how long the worker sleeps when the ring is empty
const DefaultIdleWait = 500 * time.Microsecond

// Worker drains a ring buffer into a WAV writer on its own goroutine.
//
// It polls keepRunning on every pass; once that reports false the worker
// finishes draining, finalizes the file and exits. Any I/O error stops the
// worker immediately.
type Worker struct {
	ring          *audio.RingBuffer
	writer        *wavfile.Writer
	keepRunning   func() bool
	onExit        func(error)
	idleWait      time.Duration
	headerRefresh time.Duration
	logger        *slog.Logger

	scratch []audio.Frame
	state   atomic.Int32
	done    chan struct{}

	errMu sync.Mutex
	err   error
}

func newWorker(ring *audio.RingBuffer, writer *wavfile.Writer, keepRunning func() bool, onExit func(error), idleWait, headerRefresh time.Duration, logger *slog.Logger) *Worker {
	if idleWait <= 0 {
		idleWait = DefaultIdleWait
	}
	return &Worker{
		ring:          ring,
		writer:        writer,
		keepRunning:   keepRunning,
		onExit:        onExit,
		idleWait:      idleWait,
		headerRefresh: headerRefresh,
		logger:        logger,
		scratch:       make([]audio.Frame, ring.Capacity()),
		done:          make(chan struct{}),
	}
}

// State returns the current worker state
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Active reports whether the worker goroutine is still running
func (w *Worker) Active() bool {
	select {
	case <-w.done:
		return false
	default:
		return w.State() != WorkerIdle
	}
}

// Err returns the error that stopped the worker, if any
func (w *Worker) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

// Join blocks until the worker exits or ctx expires
func (w *Worker) Join(ctx context.Context) error {
	if w.State() == WorkerIdle {
		return nil
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for capture worker: %w", ctx.Err())
	}
}

func (w *Worker) start() {
	w.state.Store(int32(WorkerRunning))
	go w.run()
}

func (w *Worker) run() {
	var exitErr error
	defer func() {
		w.state.Store(int32(WorkerStopped))
		if w.onExit != nil {
			w.onExit(exitErr)
		}
		close(w.done)
	}()

	w.logger.Debug("Capture worker started", "path", w.writer.Path(), "capacity", w.ring.Capacity())

	var lastRefresh time.Time
	for {
		if w.State() == WorkerRunning && !w.keepRunning() {
			w.state.Store(int32(WorkerDraining))
			w.logger.Debug("Capture worker draining", "pending", w.ring.Available())
		}

		if n := w.ring.Read(w.scratch); n > 0 {
			if err := w.writer.Append(w.scratch[:n]); err != nil {
				if errors.Is(err, wavfile.ErrTooLarge) {
					// keep what fits playable
					if closeErr := w.writer.Close(); closeErr != nil {
						w.logger.Warn("Failed to finalize full capture file", "path", w.writer.Path(), "error", closeErr)
					}
				}
				exitErr = w.fail(err)
				return
			}
			if w.headerRefresh <= 0 || time.Since(lastRefresh) >= w.headerRefresh {
				if err := w.writer.RefreshHeader(w.writer.Frames()); err != nil {
					exitErr = w.fail(err)
					return
				}
				lastRefresh = time.Now()
			}
			continue
		}

		if w.State() == WorkerDraining {
			break
		}
		time.Sleep(w.idleWait)
	}

	if err := w.writer.Close(); err != nil {
		exitErr = w.fail(err)
		return
	}

	w.logger.Info("Capture worker finished",
		"path", w.writer.Path(),
		"frames", w.writer.Frames(),
		"pushed", w.ring.Written(),
		"dropped", w.ring.Dropped())
}

func (w *Worker) fail(err error) error {
	w.errMu.Lock()
	w.err = err
	w.errMu.Unlock()
	w.logger.Error("Capture worker stopped on I/O error", "path", w.writer.Path(), "error", err)
	return err
}

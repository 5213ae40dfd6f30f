// Package record captures audio delivered on a real-time path into WAV
// files written by a background worker.
//
// The Controller is the user-facing object: it holds the save path and the
// should-record toggle and hands out Sessions. A Session is what the audio
// graph feeds through Process; its frames travel through a lock-free ring
// buffer to a Worker goroutine that does all the file I/O.
package record

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiolibrelab/capturewav/internal/wavfile"
	"github.com/spf13/afero"
)

// ErrNoSession is returned when an operation needs a current session
var ErrNoSession = errors.New("no recording session")

const (
	DefaultBufferMs    = 1500
	DefaultJoinTimeout = 5 * time.Second
)

// Options configure a Controller and the sessions it creates
type Options struct {
	// MixRate is the engine sample rate, written into every header.
	MixRate  int
	BufferMs int

	IdleWait      time.Duration
	HeaderRefresh time.Duration
	JoinTimeout   time.Duration

	Fs     afero.Fs
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.BufferMs <= 0 {
		o.BufferMs = DefaultBufferMs
	}
	if o.IdleWait <= 0 {
		o.IdleWait = DefaultIdleWait
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = DefaultJoinTimeout
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Controller owns the save path and the should-record flag and makes sure
// at most one session is recording at a time.
type Controller struct {
	opts Options

	pathMu   sync.RWMutex
	savePath string

	shouldRecord atomic.Bool

	mu      sync.Mutex
	current *Session
}

// NewController creates a controller
func NewController(opts Options) *Controller {
	return &Controller{opts: opts.withDefaults()}
}

// SetSavePath sets the output base path. A trailing .wav is stripped and
// re-added when files are created.
func (c *Controller) SetSavePath(path string) {
	c.pathMu.Lock()
	c.savePath = wavfile.TrimExtension(path)
	c.pathMu.Unlock()
}

// SavePath returns the configured path with its .wav extension
func (c *Controller) SavePath() string {
	return c.basePath() + wavfile.Extension
}

func (c *Controller) basePath() string {
	c.pathMu.RLock()
	defer c.pathMu.RUnlock()
	return c.savePath
}

// ShouldRecord reports the requested recording state
func (c *Controller) ShouldRecord() bool {
	return c.shouldRecord.Load()
}

// Current returns the most recently created session, or nil
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Instance stops and joins the current session's worker, then installs and
// returns a new idle session. The should-record flag is cleared.
func (c *Controller) Instance(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shouldRecord.Store(false)
	if err := c.ensureStoppedLocked(ctx); err != nil {
		return nil, err
	}

	c.current = newSession(c.opts, c.basePath)
	c.opts.Logger.Debug("Recording session created", "session_id", c.current.ID())
	return c.current, nil
}

// SetShouldRecord starts or stops capture on the current session. Starting
// creates a session if there is none and always opens a new file; stopping
// only raises the flag and returns without waiting.
func (c *Controller) SetShouldRecord(ctx context.Context, record bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !record {
		c.shouldRecord.Store(false)
		if c.current != nil {
			c.current.Stop()
		}
		return nil
	}

	if c.current == nil {
		c.current = newSession(c.opts, c.basePath)
	} else if err := c.ensureStoppedLocked(ctx); err != nil {
		return err
	}

	if err := c.current.Start(); err != nil {
		c.shouldRecord.Store(false)
		return err
	}
	c.shouldRecord.Store(true)
	return nil
}

// Close stops the current session and waits for its worker
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shouldRecord.Store(false)
	return c.ensureStoppedLocked(ctx)
}

func (c *Controller) ensureStoppedLocked(ctx context.Context) error {
	if c.current == nil {
		return nil
	}

	c.current.Stop()

	joinCtx, cancel := context.WithTimeout(ctx, c.opts.JoinTimeout)
	defer cancel()
	return c.current.Join(joinCtx)
}

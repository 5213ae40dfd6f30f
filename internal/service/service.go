package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/capturewav/internal/audio"
	"github.com/audiolibrelab/capturewav/internal/config"
	"github.com/audiolibrelab/capturewav/internal/record"
	"github.com/audiolibrelab/capturewav/internal/wavfile"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotRecording      = errors.New("not recording")
	ErrRecordingNotFound = errors.New("recording not found")
	ErrInvalidName       = errors.New("invalid recording name")
)

// Service represents the core capture service interface
type Service interface {
	// Recording operations
	StartRecording(ctx context.Context, savePath string) error
	StopRecording(ctx context.Context) error
	GetRecordingStatus() (RecordingStatus, *RecordingInfo)
	GetLastError() string

	// Output operations
	SetSavePath(path string) error
	ListRecordings() ([]RecordingFileInfo, error)
	RecordingPath(name string) (string, error)
	OpenRecording(name string) (afero.File, error)

	// Configuration operations
	GetConfig() *config.Config

	// Lifecycle
	Run(ctx context.Context) error
	Close(ctx context.Context) error
}

// RecordingStatus represents the current recording state
type RecordingStatus string

const (
	StatusStandby   RecordingStatus = "STANDBY"
	StatusRecording RecordingStatus = "RECORDING"
	StatusError     RecordingStatus = "ERROR"
)

// RecordingInfo contains information about the current recording session
type RecordingInfo struct {
	SessionID     string    `json:"session_id"`
	OutputFile    string    `json:"output_file"`
	StartTime     time.Time `json:"start_time"`
	FramesWritten uint64    `json:"frames_written"`
	DroppedFrames uint64    `json:"dropped_frames"`
	Seconds       float64   `json:"seconds"`
	BufferFrames  int       `json:"buffer_frames"`
	WorkerState   string    `json:"worker_state"`
	Error         string    `json:"error,omitempty"`
}

// RecordingFileInfo describes a WAV file next to the save path
type RecordingFileInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	ModTime      time.Time `json:"mod_time"`
	ModTimeHuman string    `json:"mod_time_human"`
	StreamURL    string    `json:"stream_url"`
}

// Option customizes a CaptureService
type Option func(*CaptureService)

// WithFs replaces the OS file system, mostly for tests
func WithFs(fs afero.Fs) Option {
	return func(s *CaptureService) { s.fs = fs }
}

// WithSource replaces the source built from the configuration
func WithSource(src audio.Source) Option {
	return func(s *CaptureService) { s.source = src }
}

// WithLogger sets the logger handed to recording sessions
func WithLogger(logger *slog.Logger) Option {
	return func(s *CaptureService) { s.logger = logger }
}

// CaptureService is the main service implementation
type CaptureService struct {
	cfgMutex   sync.RWMutex
	cfg        *config.Config
	configFile string

	fs         afero.Fs
	logger     *slog.Logger
	source     audio.Source
	bus        *audio.Bus
	controller *record.Controller

	// serializes start and stop so the bus always feeds the current session
	opMu sync.Mutex

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a new capture service instance
func New(cfg *config.Config, configFile string, opts ...Option) *CaptureService {
	s := &CaptureService{
		cfg:        cfg,
		configFile: configFile,
		fs:         afero.NewOsFs(),
		logger:     slog.Default(),
		bus:        audio.NewBus(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.controller = record.NewController(record.Options{
		MixRate:       cfg.Audio.MixRate,
		BufferMs:      cfg.Audio.BufferMs,
		IdleWait:      cfg.Capture.IdleWait,
		HeaderRefresh: cfg.Capture.HeaderRefresh,
		JoinTimeout:   cfg.Capture.JoinTimeout,
		Fs:            s.fs,
		Logger:        s.logger,
	})
	s.controller.SetSavePath(cfg.Output.SavePath)
	return s
}

// Bus returns the bus sources deliver into
func (s *CaptureService) Bus() *audio.Bus {
	return s.bus
}

// StartRecording opens a new session and attaches it to the bus. A non-empty
// savePath replaces the configured one for this and later recordings.
func (s *CaptureService) StartRecording(ctx context.Context, savePath string) error {
	s.logger.Debug("Service.StartRecording called", "save_path", savePath)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.clearLastError()

	if savePath = strings.TrimSpace(savePath); savePath != "" {
		s.controller.SetSavePath(config.ExpandPath(savePath))
	}

	session, err := s.controller.Instance(ctx)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to stop previous recording: %v", err))
		return err
	}
	s.bus.Attach(session)

	if err := s.controller.SetShouldRecord(ctx, true); err != nil {
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		return err
	}
	return nil
}

// StopRecording stops the current session and waits until its file is final
func (s *CaptureService) StopRecording(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	session := s.controller.Current()
	if session == nil || !session.Recording() {
		return ErrNotRecording
	}

	if err := s.controller.SetShouldRecord(ctx, false); err != nil {
		return err
	}

	joinCtx, cancel := context.WithTimeout(ctx, s.joinTimeout())
	defer cancel()
	if err := session.Join(joinCtx); err != nil {
		s.setLastError(fmt.Sprintf("Failed to stop recording: %v", err))
		return err
	}

	if err := session.Err(); err != nil {
		s.setLastError(fmt.Sprintf("Recording failed: %v", err))
		return err
	}
	s.clearLastError()
	return nil
}

// GetRecordingStatus returns the current recording status and session info
func (s *CaptureService) GetRecordingStatus() (RecordingStatus, *RecordingInfo) {
	session := s.controller.Current()
	if session == nil {
		if s.GetLastError() != "" {
			return StatusError, nil
		}
		return StatusStandby, nil
	}

	info := session.Info()
	recInfo := &RecordingInfo{
		SessionID:     info.ID,
		OutputFile:    info.OutputFile,
		StartTime:     info.StartTime,
		FramesWritten: info.FramesWritten,
		DroppedFrames: info.DroppedFrames,
		Seconds:       float64(info.FramesWritten) / float64(s.GetConfig().Audio.MixRate),
		BufferFrames:  info.BufferFrames,
		WorkerState:   info.WorkerState,
		Error:         info.Error,
	}

	switch {
	case info.Error != "" || s.GetLastError() != "":
		return StatusError, recInfo
	case info.Recording:
		return StatusRecording, recInfo
	default:
		return StatusStandby, recInfo
	}
}

// SetSavePath changes the save path used by the next recording and persists
// it to the config file when there is one
func (s *CaptureService) SetSavePath(path string) error {
	path = config.ExpandPath(strings.TrimSpace(path))
	if path == "" {
		return fmt.Errorf("save path cannot be empty")
	}

	s.controller.SetSavePath(path)

	s.cfgMutex.Lock()
	s.cfg.Output.SavePath = path
	s.cfgMutex.Unlock()

	if s.configFile == "" {
		return nil
	}
	if err := config.UpdateSavePath(s.configFile, path); err != nil {
		return fmt.Errorf("failed to persist save path: %w", err)
	}
	return nil
}

// ListRecordings returns the WAV files in the save path directory, newest first
func (s *CaptureService) ListRecordings() ([]RecordingFileInfo, error) {
	dir := s.recordingsDirectory()

	// Create directory if it doesn't exist
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}

	files, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	recordings := []RecordingFileInfo{}
	for _, file := range files {
		if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), wavfile.Extension) {
			continue
		}
		recordings = append(recordings, RecordingFileInfo{
			Name:         file.Name(),
			Path:         filepath.Join(dir, file.Name()),
			Size:         file.Size(),
			SizeHuman:    formatBytes(file.Size()),
			ModTime:      file.ModTime(),
			ModTimeHuman: file.ModTime().Format("2006-01-02 15:04:05"),
			StreamURL:    fmt.Sprintf("/recordings/%s", file.Name()),
		})
	}

	sort.Slice(recordings, func(i, j int) bool {
		if recordings[i].ModTime.Equal(recordings[j].ModTime) {
			return recordings[i].Name < recordings[j].Name
		}
		return recordings[i].ModTime.After(recordings[j].ModTime)
	})
	return recordings, nil
}

// RecordingPath resolves a file name from ListRecordings to its full path
func (s *CaptureService) RecordingPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") ||
		!strings.EqualFold(filepath.Ext(name), wavfile.Extension) {
		return "", fmt.Errorf("%w: %s", ErrInvalidName, name)
	}

	path := filepath.Join(s.recordingsDirectory(), name)
	exists, err := afero.Exists(s.fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to check %s: %w", path, err)
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrRecordingNotFound, name)
	}
	return path, nil
}

// OpenRecording opens a file from ListRecordings for reading
func (s *CaptureService) OpenRecording(name string) (afero.File, error) {
	path, err := s.RecordingPath(name)
	if err != nil {
		return nil, err
	}
	file, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return file, nil
}

// GetConfig returns a copy of the current configuration
func (s *CaptureService) GetConfig() *config.Config {
	s.cfgMutex.RLock()
	defer s.cfgMutex.RUnlock()
	cfg := *s.cfg
	return &cfg
}

// Run drives the audio source into the bus until ctx is done or the source
// ends. Worker failures are reported through GetLastError while it runs.
func (s *CaptureService) Run(ctx context.Context) error {
	src := s.source
	if src == nil {
		var err error
		src, err = audio.NewSource(s.GetConfig())
		if err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		s.logger.Info("Audio source running", "source", src.Name())
		if err := src.Run(gctx, s.bus); err != nil {
			return fmt.Errorf("audio source %s failed: %w", src.Name(), err)
		}
		s.logger.Info("Audio source finished", "source", src.Name())
		return nil
	})
	g.Go(func() error {
		s.watchSession(gctx)
		return nil
	})
	return g.Wait()
}

// Close detaches the bus and stops any recording
func (s *CaptureService) Close(ctx context.Context) error {
	s.bus.Detach()
	if err := s.controller.Close(ctx); err != nil {
		return fmt.Errorf("failed to close recording: %w", err)
	}
	return nil
}

// watchSession surfaces fail-stop errors of the running session
func (s *CaptureService) watchSession(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	var reported error
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			session := s.controller.Current()
			if session == nil {
				continue
			}
			if err := session.Err(); err != nil && err != reported {
				reported = err
				s.setLastError(fmt.Sprintf("Recording failed: %v", err))
			}
		}
	}
}

func (s *CaptureService) recordingsDirectory() string {
	return filepath.Dir(s.controller.SavePath())
}

func (s *CaptureService) joinTimeout() time.Duration {
	if t := s.GetConfig().Capture.JoinTimeout; t > 0 {
		return t
	}
	return record.DefaultJoinTimeout
}

// GetLastError returns the last error message (thread-safe)
func (s *CaptureService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *CaptureService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	// Log all errors for debugging and monitoring
	s.logger.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *CaptureService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

var _ Service = (*CaptureService)(nil)

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/audiolibrelab/capturewav/internal/service"
	"github.com/gin-gonic/gin"
)

// Server represents the web server for controlling captures
type Server struct {
	service service.Service
	port    string
	engine  *gin.Engine
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	Status   string                 `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Session  *service.RecordingInfo `json:"session,omitempty"`
	SavePath string                 `json:"save_path"`
}

// ConfigInfo contains the configuration exposed to clients
type ConfigInfo struct {
	MixRate       int    `json:"mix_rate"`
	BufferMs      int    `json:"buffer_ms"`
	Source        string `json:"source"`
	Target        string `json:"target,omitempty"`
	BlockFrames   int    `json:"block_frames"`
	SavePath      string `json:"save_path"`
	IdleWait      string `json:"idle_wait"`
	HeaderRefresh string `json:"header_refresh"`
	JoinTimeout   string `json:"join_timeout"`
}

// RecordingsResponse represents the JSON response for recordings endpoint
type RecordingsResponse struct {
	Recordings []service.RecordingFileInfo `json:"recordings"`
	TotalCount int                         `json:"total_count"`
}

// StartRequest is the optional body of POST /record/start
type StartRequest struct {
	SavePath string `json:"save_path"`
}

// SavePathRequest is the body of PUT /config/save-path
type SavePathRequest struct {
	SavePath string `json:"save_path" binding:"required"`
}

// GenericResponse represents a generic API response
type GenericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// New creates a new web server instance
func New(svc service.Service, port string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		service: svc,
		port:    port,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/status", s.handleStatus)

	rec := s.engine.Group("/record")
	{
		rec.POST("/start", s.handleStartRecording)
		rec.POST("/stop", s.handleStopRecording)
	}

	cfg := s.engine.Group("/config")
	{
		cfg.GET("", s.handleConfig)
		cfg.PUT("/save-path", s.handleSetSavePath)
	}

	recordings := s.engine.Group("/recordings")
	{
		recordings.GET("", s.handleRecordings)
		recordings.GET("/:name", s.handleRecordingStream)
	}
}

// Handler returns the HTTP handler, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting capture web server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", getLocalIP(), s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down web server: %w", err)
		}
		return nil
	}
}

// handleStatus returns the current status and session info
func (s *Server) handleStatus(c *gin.Context) {
	status, session := s.service.GetRecordingStatus()

	c.JSON(http.StatusOK, StatusResponse{
		Status:   string(status),
		Message:  s.generateStatusMessage(status, session),
		Session:  session,
		SavePath: s.service.GetConfig().Output.SavePath,
	})
}

// handleStartRecording opens a new recording, optionally at a new save path
func (s *Server) handleStartRecording(c *gin.Context) {
	var req StartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.sendErrorResponse(c, http.StatusBadRequest, "Invalid request body", "error", err)
			return
		}
	}

	if err := s.service.StartRecording(c.Request.Context(), req.SavePath); err != nil {
		s.sendErrorResponse(c, http.StatusInternalServerError,
			fmt.Sprintf("Failed to start recording: %v", err),
			"save_path", req.SavePath, "operation", "start_recording")
		return
	}

	_, session := s.service.GetRecordingStatus()
	response := gin.H{
		"success": true,
		"message": "Recording started",
	}
	if session != nil {
		response["output_file"] = session.OutputFile
		response["session_id"] = session.SessionID
	}
	c.JSON(http.StatusOK, response)
}

// handleStopRecording stops the current recording session
func (s *Server) handleStopRecording(c *gin.Context) {
	err := s.service.StopRecording(c.Request.Context())
	if errors.Is(err, service.ErrNotRecording) {
		s.sendErrorResponse(c, http.StatusConflict, "Not recording", "operation", "stop_recording")
		return
	}
	if err != nil {
		s.sendErrorResponse(c, http.StatusInternalServerError,
			fmt.Sprintf("Failed to stop recording: %v", err),
			"operation", "stop_recording")
		return
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Recording stopped"})
}

// handleConfig returns the effective configuration
func (s *Server) handleConfig(c *gin.Context) {
	cfg := s.service.GetConfig()
	c.JSON(http.StatusOK, ConfigInfo{
		MixRate:       cfg.Audio.MixRate,
		BufferMs:      cfg.Audio.BufferMs,
		Source:        cfg.Audio.Source,
		Target:        cfg.Audio.Target,
		BlockFrames:   cfg.Audio.BlockFrames,
		SavePath:      cfg.Output.SavePath,
		IdleWait:      cfg.Capture.IdleWait.String(),
		HeaderRefresh: cfg.Capture.HeaderRefresh.String(),
		JoinTimeout:   cfg.Capture.JoinTimeout.String(),
	})
}

// handleSetSavePath changes the save path for the next recording
func (s *Server) handleSetSavePath(c *gin.Context) {
	var req SavePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.sendErrorResponse(c, http.StatusBadRequest, "save_path is required", "error", err)
		return
	}

	if err := s.service.SetSavePath(req.SavePath); err != nil {
		s.sendErrorResponse(c, http.StatusBadRequest,
			fmt.Sprintf("Failed to set save path: %v", err),
			"save_path", req.SavePath, "operation", "set_save_path")
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: fmt.Sprintf("Save path set to %s", req.SavePath),
	})
}

// handleRecordings lists the WAV files next to the save path
func (s *Server) handleRecordings(c *gin.Context) {
	recordings, err := s.service.ListRecordings()
	if err != nil {
		s.sendErrorResponse(c, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list recordings: %v", err),
			"operation", "list_recordings")
		return
	}

	c.JSON(http.StatusOK, RecordingsResponse{
		Recordings: recordings,
		TotalCount: len(recordings),
	})
}

// handleRecordingStream serves a recording with range support
func (s *Server) handleRecordingStream(c *gin.Context) {
	name := c.Param("name")

	file, err := s.service.OpenRecording(name)
	switch {
	case errors.Is(err, service.ErrInvalidName):
		s.sendErrorResponse(c, http.StatusBadRequest, "Invalid recording name", "name", name)
		return
	case errors.Is(err, service.ErrRecordingNotFound):
		s.sendErrorResponse(c, http.StatusNotFound, "Recording not found", "name", name)
		return
	case err != nil:
		s.sendErrorResponse(c, http.StatusInternalServerError,
			fmt.Sprintf("Failed to open recording: %v", err), "name", name)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		s.sendErrorResponse(c, http.StatusInternalServerError,
			fmt.Sprintf("Failed to stat recording: %v", err), "name", name)
		return
	}

	c.Header("Content-Type", "audio/wav")
	c.Header("Accept-Ranges", "bytes")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}

func (s *Server) generateStatusMessage(status service.RecordingStatus, session *service.RecordingInfo) string {
	switch status {
	case service.StatusStandby:
		return ""
	case service.StatusRecording:
		if session != nil {
			return fmt.Sprintf("Recording in progress - %s", session.OutputFile)
		}
		return "Recording in progress"
	case service.StatusError:
		// Get detailed error information from service
		if errorDetails := s.service.GetLastError(); errorDetails != "" {
			return errorDetails
		}
		if session != nil && session.Error != "" {
			return session.Error
		}
		return "An error occurred during the operation"
	default:
		return ""
	}
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(c *gin.Context, statusCode int, errorMsg string, logContext ...interface{}) {
	// Log the error with structured context
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	c.AbortWithStatusJSON(statusCode, GenericResponse{
		Success: false,
		Error:   errorMsg,
	})
}

// requestLogger logs every request at debug level
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}

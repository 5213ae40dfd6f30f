package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/audiolibrelab/capturewav/internal/config"
	"github.com/audiolibrelab/capturewav/internal/service"
	"github.com/audiolibrelab/capturewav/internal/wavfile"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, afero.Fs) {
	t.Helper()

	cfg := config.Default()
	cfg.Output.SavePath = "/rec/take"
	cfg.Capture.IdleWait = 100 * time.Microsecond

	fs := afero.NewMemMapFs()
	svc := service.New(cfg, "", service.WithFs(fs),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(func() { svc.Close(context.Background()) })

	return New(svc, "0"), fs
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStatusStandby(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	status := decode[StatusResponse](t, rec)
	assert.Equal(t, "STANDBY", status.Status)
	assert.Nil(t, status.Session)
	assert.Equal(t, "/rec/take", status.SavePath)
}

func TestStartStopRoundTrip(t *testing.T) {
	s, fs := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/record/start", `{"save_path": "/rec/api.wav"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	started := decode[map[string]interface{}](t, rec)
	assert.Equal(t, true, started["success"])
	assert.Equal(t, "/rec/api.wav", started["output_file"])

	rec = doRequest(t, s, http.MethodGet, "/status", "")
	status := decode[StatusResponse](t, rec)
	assert.Equal(t, "RECORDING", status.Status)
	require.NotNil(t, status.Session)
	assert.Contains(t, status.Message, "/rec/api.wav")

	rec = doRequest(t, s, http.MethodPost, "/record/stop", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[GenericResponse](t, rec).Success)

	rec = doRequest(t, s, http.MethodPost, "/record/stop", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	stopped := decode[GenericResponse](t, rec)
	assert.False(t, stopped.Success)
	assert.Equal(t, "Not recording", stopped.Error)

	data, err := afero.ReadFile(fs, "/rec/api.wav")
	require.NoError(t, err)
	assert.Len(t, data, wavfile.HeaderSize)
}

func TestStartWithoutBody(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/record/start", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "/rec/take.wav", decode[map[string]interface{}](t, rec)["output_file"])
}

func TestStartInvalidBody(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/record/start", `{"save_path":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordingsEndpoints(t *testing.T) {
	s, fs := newTestServer(t)
	header := wavfile.Header(44100, 0)
	require.NoError(t, afero.WriteFile(fs, "/rec/old.wav", header[:], 0644))
	require.NoError(t, afero.WriteFile(fs, "/rec/notes.txt", []byte("x"), 0644))

	rec := doRequest(t, s, http.MethodGet, "/recordings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[RecordingsResponse](t, rec)
	require.Equal(t, 1, list.TotalCount)
	assert.Equal(t, "old.wav", list.Recordings[0].Name)

	rec = doRequest(t, s, http.MethodGet, "/recordings/old.wav", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, header[:], rec.Body.Bytes())

	rec = doRequest(t, s, http.MethodGet, "/recordings/missing.wav", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/recordings/notes.txt", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[ConfigInfo](t, rec)
	assert.Equal(t, 44100, info.MixRate)
	assert.Equal(t, 1500, info.BufferMs)
	assert.Equal(t, "/rec/take", info.SavePath)
	assert.Equal(t, "100µs", info.IdleWait)

	rec = doRequest(t, s, http.MethodPut, "/config/save-path", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPut, "/config/save-path", `{"save_path": "/rec/next"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, s, http.MethodGet, "/config", "")
	assert.Equal(t, "/rec/next", decode[ConfigInfo](t, rec).SavePath)

	rec = doRequest(t, s, http.MethodPost, "/record/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/rec/next.wav", decode[map[string]interface{}](t, rec)["output_file"])
}

package record

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"testing"
	"time"

	"github.com/audiolibrelab/capturewav/internal/audio"
	"github.com/audiolibrelab/capturewav/internal/wavfile"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestWorker(t *testing.T, fs afero.Fs, refresh time.Duration) (*Worker, *audio.RingBuffer, *atomic.Bool, string) {
	t.Helper()

	writer := wavfile.NewWriter(fs, testMixRate)
	path, err := writer.Begin("/worker")
	require.NoError(t, err)

	ring := audio.NewRingBuffer(4096)
	keep := &atomic.Bool{}
	keep.Store(true)

	w := newWorker(ring, writer, keep.Load, nil, 100*time.Microsecond, refresh, testLogger())
	w.start()
	return w, ring, keep, path
}

func TestWorkerStateString(t *testing.T) {
	assert.Equal(t, "IDLE", WorkerIdle.String())
	assert.Equal(t, "RUNNING", WorkerRunning.String())
	assert.Equal(t, "DRAINING", WorkerDraining.String())
	assert.Equal(t, "STOPPED", WorkerStopped.String())
}

func TestWorkerRefreshesHeaderWhileRunning(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, ring, keep, path := startTestWorker(t, fs, 0)

	ring.Push(constantBlock(100))

	require.Eventually(t, func() bool {
		data, err := afero.ReadFile(fs, path)
		if err != nil || len(data) < wavfile.HeaderSize {
			return false
		}
		return binary.LittleEndian.Uint32(data[40:44]) == 800
	}, 5*time.Second, time.Millisecond)

	assert.Equal(t, WorkerRunning, w.State())
	assert.True(t, w.Active())

	keep.Store(false)
	require.NoError(t, w.Join(context.Background()))
	assert.Equal(t, WorkerStopped, w.State())
	assert.False(t, w.Active())
	assert.NoError(t, w.Err())
}

func TestWorkerDrainsPendingFramesOnStop(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, ring, keep, path := startTestWorker(t, fs, time.Hour)

	ring.Push(constantBlock(300))
	keep.Store(false)
	require.NoError(t, w.Join(context.Background()))

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Len(t, data, wavfile.HeaderSize+300*audio.BytesPerFrame)
	header := wavfile.Header(testMixRate, 300)
	assert.Equal(t, header[:], data[:wavfile.HeaderSize])
}

func TestWorkerJoinTimesOut(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, _, keep, _ := startTestWorker(t, fs, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := w.Join(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	keep.Store(false)
	require.NoError(t, w.Join(context.Background()))
}

func TestWorkerExitCallback(t *testing.T) {
	fs := afero.NewMemMapFs()
	writer := wavfile.NewWriter(fs, testMixRate)
	_, err := writer.Begin("/cb")
	require.NoError(t, err)

	called := make(chan error, 1)
	w := newWorker(audio.NewRingBuffer(16), writer, func() bool { return false },
		func(err error) { called <- err }, 0, 0, testLogger())

	assert.NoError(t, w.Join(context.Background()))
	w.start()
	require.NoError(t, w.Join(context.Background()))

	select {
	case err := <-called:
		assert.NoError(t, err)
	default:
		t.Fatal("exit callback was not called before done")
	}
	assert.Equal(t, wavfile.StateFinalized, writer.State())
}

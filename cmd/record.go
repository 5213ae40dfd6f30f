package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiolibrelab/capturewav/internal/record"
	"github.com/audiolibrelab/capturewav/internal/service"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [save-path]",
	Short: "Record the configured source into a WAV file",
	Long: `Record stereo audio from the configured source into a 32-bit float WAV file.
The save path is given without extension; if the file exists a numeric suffix
is added (take.wav, take_1.wav, ...). Recording runs until Ctrl+C, until
--duration elapses, or until the source ends.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		savePath := ""
		if len(args) == 1 {
			savePath = args[0]
		}
		slog.Info("Record command started", "save_path", savePath)

		if err := applyRecordOverrides(cmd); err != nil {
			return err
		}
		duration, _ := cmd.Flags().GetDuration("duration")

		// Handle interruption
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}

		slog.Info("Recording... Press Ctrl+C to stop")
		outputFile, err := recordUntil(savePath, func() {
			<-ctx.Done()
			// a second Ctrl+C kills the process
			stop()
		})
		if err != nil {
			return err
		}

		// Execute pipeline if specified
		return executePipeline(outputFile, 'r')
	},
}

func init() {
	addRecordFlags(recordCmd)
}

func addRecordFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("duration", 0, "stop after this long (e.g. 30s, 5m)")
	cmd.Flags().String("source", "", "audio source: tone, stdin, pipewire, pulse (overrides config)")
	cmd.Flags().Int("mix-rate", 0, "sample rate in Hz (overrides config)")
	cmd.Flags().String("target", "", "pipewire capture target (overrides config)")
}

// applyRecordOverrides copies command line overrides into the loaded config
func applyRecordOverrides(cmd *cobra.Command) error {
	if source, _ := cmd.Flags().GetString("source"); source != "" {
		cfg.Audio.Source = source
	}
	if rate, _ := cmd.Flags().GetInt("mix-rate"); rate > 0 {
		cfg.Audio.MixRate = rate
	}
	if target, _ := cmd.Flags().GetString("target"); target != "" {
		cfg.Audio.Target = target
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// recordUntil records to savePath until wait returns or the source ends and
// returns the path of the finished file
func recordUntil(savePath string, wait func()) (string, error) {
	svc := service.New(cfg, cfgFile)
	defer svc.Close(context.Background())

	if err := svc.StartRecording(context.Background(), savePath); err != nil {
		return "", fmt.Errorf("failed to start recording: %w", err)
	}

	_, info := svc.GetRecordingStatus()
	outputFile := info.OutputFile
	slog.Info("Recording started", "file", outputFile, "source", cfg.Audio.Source, "mix_rate", cfg.Audio.MixRate)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- svc.Run(runCtx)
	}()

	waitDone := make(chan struct{})
	go func() {
		wait()
		close(waitDone)
	}()

	var sourceErr error
	sourceDone := false
	select {
	case <-waitDone:
	case sourceErr = <-runErr:
		sourceDone = true
	}

	slog.Info("Stopping recording...")
	stopErr := svc.StopRecording(context.Background())

	cancel()
	if !sourceDone {
		sourceErr = awaitSource(runErr, cfg.Capture.JoinTimeout)
	}

	_, info = svc.GetRecordingStatus()
	if info != nil {
		slog.Info("Recording finished",
			"file", info.OutputFile,
			"frames", info.FramesWritten,
			"seconds", fmt.Sprintf("%.2f", info.Seconds),
			"dropped_frames", info.DroppedFrames)
	}

	if errors.Is(stopErr, service.ErrNotRecording) {
		// the worker already stopped on its own
		if info != nil && info.Error != "" {
			return outputFile, fmt.Errorf("recording failed: %s", info.Error)
		}
		stopErr = nil
	}
	if stopErr != nil {
		return outputFile, fmt.Errorf("failed to stop recording: %w", stopErr)
	}
	if sourceErr != nil {
		return outputFile, sourceErr
	}
	return outputFile, nil
}

// awaitSource waits for the source to return after cancellation. A source
// blocked in a read that cannot be interrupted is abandoned after timeout.
func awaitSource(runErr <-chan error, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = record.DefaultJoinTimeout
	}
	select {
	case err := <-runErr:
		return err
	case <-time.After(timeout):
		slog.Warn("Audio source did not stop, abandoning it", "timeout", timeout)
		return nil
	}
}

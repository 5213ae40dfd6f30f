package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiolibrelab/capturewav/internal/server"
	"github.com/audiolibrelab/capturewav/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server for remote control",
	Long: `Start the capture web server to control recording over HTTP.
The configured source runs for the lifetime of the server; POST /record/start
and /record/stop toggle capture into new WAV files.

The server will display the local network URL for easy access from other devices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Server.Port = port
		}
		if err := applyRecordOverrides(cmd); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := service.New(cfg, cfgFile)
		srv := server.New(svc, cfg.Server.Port)

		slog.Info("Capture web server starting", "port", cfg.Server.Port, "config", cfgFile, "source", cfg.Audio.Source)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Start(gctx)
		})
		g.Go(func() error {
			return svc.Run(gctx)
		})

		err := g.Wait()

		closeCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.Capture.JoinTimeout+time.Second)
		defer cancel()
		if closeErr := svc.Close(closeCtx); closeErr != nil {
			slog.Warn("Failed to close capture service", "error", closeErr)
		}

		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "port for the web server (overrides config)")
	addRecordFlags(serveCmd)
}

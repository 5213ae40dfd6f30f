package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/audiolibrelab/capturewav/internal/config"
	"github.com/audiolibrelab/capturewav/internal/logging"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	pipeline     string
	verboseLevel int
	logCloser    io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "capturewav [save-path]",
	Short: "Capture live audio into streaming WAV files",
	Long: `capturewav records stereo audio from a live source into 32-bit float WAV
files. The file header is refreshed while recording, so the file stays
playable even if the process is killed.

When a save path is provided, it acts as 'capturewav record [save-path]'.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Use default config path if not specified
		if cfgFile == "" {
			cfgFile = config.DefaultConfigFile()
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		setupLogging(verboseLevel, cfg.Log)
		slog.Debug("Configuration loaded", "file", cfgFile)

		// Validate pipeline if provided
		return validatePipeline()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// If a save path is provided, delegate to record command
		if len(args) == 1 {
			return recordCmd.RunE(cmd, args)
		}
		// Otherwise show help
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/capturewav.yaml)")
	rootCmd.PersistentFlags().StringVarP(&pipeline, "pipeline", "p", "", "pipeline steps: r=record, e=export, p=play (e.g., 'rep', 'rp')")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=config log level, 1=debug")

	addRecordFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging configures slog from the verbose flag and the log section
func setupLogging(level int, logCfg config.LogConfig) {
	slogLevel := logging.ParseLevel(logCfg.Level)
	if level > 0 {
		slogLevel = logging.LevelFromVerbosity(level)
	}

	_, logCloser = logging.Setup(logCfg, slogLevel)
}

package cmd

import (
	"fmt"

	"github.com/audiolibrelab/capturewav/internal/play"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "Play a recorded WAV file",
	Long: `Play a recorded file with the first available player (vlc, mpv, ffplay, aplay).
The .wav extension may be omitted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Playing: %s\n", args[0])

		if err := play.New().Play(args[0]); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
		return nil
	},
}

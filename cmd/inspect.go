package cmd

import (
	"fmt"

	"github.com/audiolibrelab/capturewav/internal/export"
	"github.com/spf13/afero"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect [file]",
	Aliases: []string{"info"},
	Short:   "Show the format and length of a WAV file",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := export.Inspect(afero.NewOsFs(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("📄 %s\n", info.Path)
		fmt.Printf("  Format:      %s (%d)\n", info.Format, info.FormatCode)
		fmt.Printf("  Channels:    %d\n", info.Channels)
		fmt.Printf("  Sample rate: %d Hz\n", info.SampleRate)
		fmt.Printf("  Bit depth:   %d\n", info.BitDepth)
		fmt.Printf("  Frames:      %d\n", info.Frames)
		fmt.Printf("  Duration:    %s\n", info.Duration)
		return nil
	},
}

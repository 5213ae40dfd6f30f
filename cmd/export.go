package cmd

import (
	"fmt"

	"github.com/audiolibrelab/capturewav/internal/export"
	"github.com/spf13/afero"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Convert a float recording to 16-bit PCM",
	Long: `Convert a captured 32-bit float WAV file into a 16-bit PCM WAV file that
any player can handle. The output defaults to <name>_pcm16.wav next to the input.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := args[0]
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = exportPath(in)
		}

		frames, err := export.ToPCM16(afero.NewOsFs(), in, out)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Printf("Exported %d frames to %s\n", frames, out)

		return executePipeline(out, 'e')
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "output file (default <name>_pcm16.wav)")
}

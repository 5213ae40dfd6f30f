package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/audiolibrelab/capturewav/internal/audio"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available audio sources",
	Long: `List the source types that can feed a recording and, when PipeWire is
available, the output ports that can be used as a capture target.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if target, _ := cmd.Flags().GetString("check"); target != "" {
			if err := audio.NewPipeWire().ValidatePort(target); err != nil {
				return err
			}
			fmt.Printf("✅ %s is available\n", target)
			return nil
		}
		return listAvailableSources()
	},
}

func init() {
	sourcesCmd.Flags().String("check", "", "check that a PipeWire port exists exactly once")
}

// listAvailableSources prints the source types and PipeWire ports
func listAvailableSources() error {
	fmt.Printf("🎵 Audio Sources (%s)\n", runtime.GOOS)
	fmt.Printf("═══════════════════════════════════════\n\n")

	fmt.Printf("📋 SOURCE TYPES:\n")
	for _, source := range audio.GetAvailableSources() {
		marker := " "
		if string(source) == cfg.Audio.Source {
			marker = "*"
		}
		fmt.Printf("  %s %s\n", marker, source)
	}
	fmt.Println()

	return listPipeWireSources()
}

// listPipeWireSources lists available PipeWire/JACK output ports
func listPipeWireSources() error {
	ports, err := audio.NewPipeWire().ListPorts()
	if err != nil {
		slog.Debug("PipeWire port listing failed", "error", err)
		fmt.Printf("⚠️  PipeWire ports unavailable: %v\n", err)
		return nil
	}

	fmt.Printf("📋 PIPEWIRE/JACK PORTS (%d found):\n", len(ports))
	for i, port := range ports {
		fmt.Printf("  %d. %s\n", i+1, port)
	}

	fmt.Printf("\n💡 PipeWire Usage:\n")
	fmt.Printf("  • Format: \"Device: Audio (hw:X,Y):Z\" or \"Application:port\"\n")
	fmt.Printf("  • Configure in audio.target with audio.source: pipewire\n\n")

	return nil
}

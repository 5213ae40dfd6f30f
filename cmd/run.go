package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [save-path-or-file]",
	Short: "Execute pipeline steps",
	Long: `Execute the steps given with -p. With 'r' first, a new recording is made at
the save path and stopped with Enter; the remaining steps (e=export, p=play)
then run on the recorded file. Without 'r', the steps run on an existing file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]

		if pipeline == "" {
			return fmt.Errorf("no pipeline specified, use -p flag (e.g., -p rep)")
		}

		steps := []rune(strings.ToLower(pipeline))
		if steps[0] != 'r' {
			return runSteps(target, steps)
		}

		if err := applyRecordOverrides(cmd); err != nil {
			return err
		}

		fmt.Printf("Pipeline: executing step 1/%d: 'r'...\n", len(steps))
		fmt.Println("Pipeline: recording - Press Enter to stop...")
		outputFile, err := recordUntil(target, func() {
			scanner := bufio.NewScanner(os.Stdin)
			scanner.Scan()
		})
		if err != nil {
			return fmt.Errorf("pipeline record failed: %w", err)
		}
		fmt.Println("Pipeline: recording completed")

		return runSteps(outputFile, steps[1:])
	},
}

func init() {
	addRecordFlags(runCmd)
}

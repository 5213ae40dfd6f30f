package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/audiolibrelab/capturewav/internal/config"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage capture configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var configSetSavePathCmd = &cobra.Command{
	Use:   "set-save-path <path>",
	Short: "Persist the output save path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UpdateSavePath(configPath(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Save path set to %s\n", args[0])
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "nano"
		}

		path := configPath()
		fmt.Printf("Opening %s with %s...\n", path, editor)

		edit := exec.Command(editor, path)
		edit.Stdin = os.Stdin
		edit.Stdout = os.Stdout
		edit.Stderr = os.Stderr
		if err := edit.Run(); err != nil {
			return fmt.Errorf("editor failed: %w", err)
		}
		return nil
	},
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigFile()
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetSavePathCmd)
	configCmd.AddCommand(configEditCmd)
}

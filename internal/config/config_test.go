package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Helper function to create temporary config file for testing
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capturewav.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Expected missing file to fall back to defaults, got: %v", err)
	}

	if cfg.Audio.MixRate != 44100 {
		t.Errorf("Expected mix rate 44100, got %d", cfg.Audio.MixRate)
	}
	if cfg.Audio.BufferMs != 1500 {
		t.Errorf("Expected buffer 1500ms, got %d", cfg.Audio.BufferMs)
	}
	if cfg.Audio.Source != "tone" {
		t.Errorf("Expected tone source, got %s", cfg.Audio.Source)
	}
	if cfg.Capture.IdleWait != 500*time.Microsecond {
		t.Errorf("Expected idle wait 500us, got %s", cfg.Capture.IdleWait)
	}
	if cfg.Capture.HeaderRefresh != 0 {
		t.Errorf("Expected header refresh 0, got %s", cfg.Capture.HeaderRefresh)
	}
	if cfg.Capture.JoinTimeout != 5*time.Second {
		t.Errorf("Expected join timeout 5s, got %s", cfg.Capture.JoinTimeout)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Server.Port)
	}

	homeDir, _ := os.UserHomeDir()
	expected := filepath.Join(homeDir, "Audio", "capturewav", "recording")
	if cfg.Output.SavePath != expected {
		t.Errorf("Expected save path %s, got %s", expected, cfg.Output.SavePath)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	configFile := createTempConfig(t, `
audio:
  mix_rate: 48000
  buffer_ms: 250
  source: stdin
output:
  save_path: /tmp/takes/jam.wav
capture:
  idle_wait: 1ms
  header_refresh: 2s
log:
  level: debug
  file: /tmp/capturewav.log
server:
  port: "9090"
`)

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Audio.MixRate != 48000 {
		t.Errorf("Expected mix rate 48000, got %d", cfg.Audio.MixRate)
	}
	if cfg.Audio.BufferMs != 250 {
		t.Errorf("Expected buffer 250ms, got %d", cfg.Audio.BufferMs)
	}
	if cfg.Audio.Source != "stdin" {
		t.Errorf("Expected stdin source, got %s", cfg.Audio.Source)
	}
	if cfg.Audio.BlockFrames != 512 {
		t.Errorf("Expected default block frames 512, got %d", cfg.Audio.BlockFrames)
	}
	if cfg.Output.SavePath != "/tmp/takes/jam.wav" {
		t.Errorf("Unexpected save path: %s", cfg.Output.SavePath)
	}
	if cfg.Capture.IdleWait != time.Millisecond {
		t.Errorf("Expected idle wait 1ms, got %s", cfg.Capture.IdleWait)
	}
	if cfg.Capture.HeaderRefresh != 2*time.Second {
		t.Errorf("Expected header refresh 2s, got %s", cfg.Capture.HeaderRefresh)
	}
	if cfg.Log.Level != "debug" || cfg.Log.File != "/tmp/capturewav.log" {
		t.Errorf("Unexpected log config: %+v", cfg.Log)
	}
	if cfg.Log.MaxSizeMB != 10 || cfg.Log.MaxBackups != 3 {
		t.Errorf("Expected default rotation settings, got %+v", cfg.Log)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CAPTUREWAV_AUDIO_MIX_RATE", "96000")
	t.Setenv("CAPTUREWAV_OUTPUT_SAVE_PATH", "/data/env-take")

	cfg, err := Load(createTempConfig(t, "audio:\n  mix_rate: 48000\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Audio.MixRate != 96000 {
		t.Errorf("Expected env mix rate 96000, got %d", cfg.Audio.MixRate)
	}
	if cfg.Output.SavePath != "/data/env-take" {
		t.Errorf("Expected env save path, got %s", cfg.Output.SavePath)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfig(t, "audio: [mix_rate\n"))
	if err == nil {
		t.Fatal("Expected error for malformed config")
	}
	if !strings.Contains(err.Error(), "error reading config file") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"mix rate too low", func(c *Config) { c.Audio.MixRate = 4000 }, "audio.mix_rate"},
		{"mix rate too high", func(c *Config) { c.Audio.MixRate = 768000 }, "audio.mix_rate"},
		{"zero buffer", func(c *Config) { c.Audio.BufferMs = 0 }, "audio.buffer_ms"},
		{"zero block", func(c *Config) { c.Audio.BlockFrames = 0 }, "audio.block_frames"},
		{"unknown source", func(c *Config) { c.Audio.Source = "jack" }, "audio.source"},
		{"pulse source", func(c *Config) { c.Audio.Source = "pulse" }, ""},
		{"empty save path", func(c *Config) { c.Output.SavePath = "  " }, "output.save_path"},
		{"zero idle wait", func(c *Config) { c.Capture.IdleWait = 0 }, "capture.idle_wait"},
		{"negative refresh", func(c *Config) { c.Capture.HeaderRefresh = -time.Second }, "capture.header_refresh"},
		{"negative join timeout", func(c *Config) { c.Capture.JoinTimeout = -time.Second }, "capture.join_timeout"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestUpdateSavePath(t *testing.T) {
	configFile := createTempConfig(t, "audio:\n  mix_rate: 48000\n")

	if err := UpdateSavePath(configFile, "/tmp/new-take"); err != nil {
		t.Fatalf("Failed to update save path: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if cfg.Output.SavePath != "/tmp/new-take" {
		t.Errorf("Expected updated save path, got %s", cfg.Output.SavePath)
	}
	if cfg.Audio.MixRate != 48000 {
		t.Errorf("Expected existing settings to be kept, got mix rate %d", cfg.Audio.MixRate)
	}
}

func TestUpdateSavePath_CreatesFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "nested", "capturewav.yaml")

	if err := UpdateSavePath(configFile, "/tmp/created"); err != nil {
		t.Fatalf("Failed to update save path: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if cfg.Output.SavePath != "/tmp/created" {
		t.Errorf("Expected save path /tmp/created, got %s", cfg.Output.SavePath)
	}
}

func TestUpdateSavePath_NoFile(t *testing.T) {
	if err := UpdateSavePath("", "/tmp/x"); err == nil {
		t.Error("Expected error for empty config file name")
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/Audio/capturewav", filepath.Join(homeDir, "Audio", "capturewav")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~", "~"}, // Should not expand bare tilde
	}

	for _, test := range tests {
		result := ExpandPath(test.input)
		if result != test.expected {
			t.Errorf("ExpandPath(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

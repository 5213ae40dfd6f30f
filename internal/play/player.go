package play

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/audiolibrelab/capturewav/internal/wavfile"
)

// players in order of preference
var players = []string{"vlc", "mpv", "ffplay", "aplay"}

type Player struct {
	lookPath func(string) (string, error)
	run      func(args []string) error
}

func New() *Player {
	return &Player{
		lookPath: exec.LookPath,
		run: func(args []string) error {
			cmd := exec.Command(args[0], args[1:]...)
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			return cmd.Run()
		},
	}
}

// Play plays a recording with the first audio player found on PATH. A path
// without extension is resolved to its .wav file.
func (p *Player) Play(path string) error {
	audioFile, err := resolveFile(path)
	if err != nil {
		return err
	}

	fmt.Printf("Playing: %s\n", audioFile)

	player, err := p.findAudioPlayer()
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}

	args, err := Command(player, audioFile)
	if err != nil {
		return err
	}

	if err := p.run(args); err != nil {
		return fmt.Errorf("playback failed with %s: %w", player, err)
	}

	fmt.Println("Playback completed")
	return nil
}

// Command returns the command line used to play file with player
func Command(player, file string) ([]string, error) {
	switch player {
	case "vlc":
		return []string{"vlc", "--play-and-exit", file}, nil
	case "mpv":
		return []string{"mpv", "--no-video", file}, nil
	case "ffplay":
		return []string{"ffplay", "-nodisp", "-autoexit", file}, nil
	case "aplay":
		return []string{"aplay", file}, nil
	default:
		return nil, fmt.Errorf("unsupported player: %s", player)
	}
}

func (p *Player) findAudioPlayer() (string, error) {
	for _, player := range players {
		if _, err := p.lookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}

func resolveFile(path string) (string, error) {
	candidates := []string{path}
	if trimmed := wavfile.TrimExtension(path); trimmed == path {
		candidates = append(candidates, path+wavfile.Extension)
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("audio file not found: %s", path)
}

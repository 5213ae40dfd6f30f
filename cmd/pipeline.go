package cmd

import (
	"fmt"
	"strings"

	"github.com/audiolibrelab/capturewav/internal/export"
	"github.com/audiolibrelab/capturewav/internal/play"
	"github.com/audiolibrelab/capturewav/internal/wavfile"
	"github.com/spf13/afero"
)

func executePipeline(outputFile string, startStep rune) error {
	if pipeline == "" {
		return nil
	}

	steps := []rune(strings.ToLower(pipeline))

	// Find the starting position in the pipeline
	startIndex := -1
	for i, step := range steps {
		if step == startStep {
			startIndex = i
			break
		}
	}

	if startIndex == -1 {
		return fmt.Errorf("step '%c' not found in pipeline '%s'", startStep, pipeline)
	}

	return runSteps(outputFile, steps[startIndex+1:])
}

// runSteps executes the post-recording steps on file
func runSteps(file string, steps []rune) error {
	for _, step := range steps {
		fmt.Printf("Pipeline: executing step '%c'...\n", step)

		switch step {
		case 'e':
			out := exportPath(file)
			frames, err := export.ToPCM16(afero.NewOsFs(), file, out)
			if err != nil {
				return fmt.Errorf("pipeline export failed: %w", err)
			}
			fmt.Printf("Pipeline: exported %d frames to %s\n", frames, out)

		case 'p':
			if err := play.New().Play(file); err != nil {
				return fmt.Errorf("pipeline play failed: %w", err)
			}
			fmt.Println("Pipeline: playback completed")

		case 'r':
			return fmt.Errorf("record step must come first in pipeline '%s'", pipeline)

		default:
			return fmt.Errorf("unknown pipeline step: '%c' (valid: r=record, e=export, p=play)", step)
		}
	}

	return nil
}

func validatePipeline() error {
	if pipeline == "" {
		return nil
	}

	validSteps := map[rune]bool{
		'r': true, // record
		'e': true, // export
		'p': true, // play
	}

	steps := []rune(strings.ToLower(pipeline))
	for i, step := range steps {
		if !validSteps[step] {
			return fmt.Errorf("invalid pipeline step: '%c' (valid: r=record, e=export, p=play)", step)
		}
		if step == 'r' && i != 0 {
			return fmt.Errorf("invalid pipeline '%s': record must be the first step", pipeline)
		}
	}

	return nil
}

// exportPath returns take_pcm16.wav for take.wav
func exportPath(file string) string {
	return wavfile.TrimExtension(file) + "_pcm16" + wavfile.Extension
}

package audio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// PipeWire queries the PipeWire graph through the pw-link tool
type PipeWire struct {
	// listOutput is swapped out in tests; it returns the raw pw-link listing.
	listOutput func() ([]byte, error)
}

// NewPipeWire creates a new PipeWire instance
func NewPipeWire() *PipeWire {
	return &PipeWire{
		listOutput: func() ([]byte, error) {
			return exec.Command("pw-link", "-io").Output()
		},
	}
}

// ListPorts returns all available ports known to PipeWire
func (pw *PipeWire) ListPorts() ([]string, error) {
	output, err := pw.listOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to list PipeWire ports: %w", err)
	}
	return parsePortList(string(output)), nil
}

func parsePortList(output string) []string {
	var ports []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "Input ports:") && !strings.HasPrefix(line, "Output ports:") {
			ports = append(ports, line)
		}
	}
	return ports
}

// ValidatePort checks that a capture target exists exactly once
func (pw *PipeWire) ValidatePort(portName string) error {
	if portName == "" {
		return nil
	}

	ports, err := pw.ListPorts()
	if err != nil {
		return err
	}

	duplicates := findPortDuplicatesInList(portName, ports)
	if len(duplicates) == 0 {
		return fmt.Errorf("port not found: %s", portName)
	}
	if len(duplicates) > 1 {
		return fmt.Errorf("duplicate sources detected for '%s': %v. Please close conflicting applications", portName, duplicates)
	}
	return nil
}

// findPortDuplicatesInList finds all ports with exactly the same name
func findPortDuplicatesInList(portName string, allPorts []string) []string {
	var duplicates []string
	for _, port := range allPorts {
		if port == portName {
			duplicates = append(duplicates, port)
		}
	}
	return duplicates
}

// PipeWireSource captures from PipeWire by running pw-record and decoding
// its raw float output.
type PipeWireSource struct {
	mixRate     int
	target      string
	blockFrames int
	graph       *PipeWire
}

// NewPipeWireSource creates a pw-record backed source. An empty target
// records from the default source.
func NewPipeWireSource(mixRate int, target string, blockFrames int) *PipeWireSource {
	return &PipeWireSource{mixRate: mixRate, target: target, blockFrames: blockFrames, graph: NewPipeWire()}
}

func (s *PipeWireSource) Name() string {
	return string(SourceTypePipeWire)
}

// Args returns the pw-record command line
func (s *PipeWireSource) Args() []string {
	args := []string{
		"pw-record",
		"--format", "f32",
		"--channels", "2",
		"--rate", fmt.Sprintf("%d", s.mixRate),
	}
	if s.target != "" {
		args = append(args, "--target", s.target)
	}
	return append(args, "-")
}

// IsPortName reports whether target looks like a "client:port" name
// rather than a node name or serial.
func IsPortName(target string) bool {
	return strings.Contains(target, ":")
}

// Run starts pw-record and streams its stdout into sink until ctx is done.
// A port target must exist exactly once in the graph before recording starts.
func (s *PipeWireSource) Run(ctx context.Context, sink Sink) error {
	if IsPortName(s.target) {
		if err := s.graph.ValidatePort(s.target); err != nil {
			return fmt.Errorf("invalid capture target: %w", err)
		}
	}
	return runCapture(ctx, s.Name(), s.Args(), s.blockFrames, sink)
}

// runCapture runs a capture tool that writes raw float frames to stdout
func runCapture(ctx context.Context, name string, args []string, blockFrames int, sink Sink) error {
	slog.Info("Starting capture tool", "command", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", args[0], err)
	}

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		readOutput(stderr, args[0])
	}()

	streamErr := NewStreamSource(name, stdout, blockFrames).Run(ctx, sink)
	if streamErr != nil || ctx.Err() != nil {
		// stop the tool so its pipes reach EOF
		cmd.Process.Kill()
	}

	// all reads must finish before Wait closes the pipes
	io.Copy(io.Discard, stdout)
	<-stderrDone

	if err := cmd.Wait(); err != nil && ctx.Err() == nil && streamErr == nil {
		return fmt.Errorf("%s exited: %w", args[0], err)
	}
	return streamErr
}

// readOutput forwards a child process pipe to the debug log
func readOutput(pipe io.Reader, label string) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		slog.Debug("Capture tool output", "tool", label, "line", scanner.Text())
	}
}

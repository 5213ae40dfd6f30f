package audio

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newTestPipeWire(output string, err error) *PipeWire {
	return &PipeWire{
		listOutput: func() ([]byte, error) {
			return []byte(output), err
		},
	}
}

func TestParsePortList(t *testing.T) {
	output := `Output ports:
  Chrome:output_FL
  Chrome:output_FR

Input ports:
  system:playback_1
`
	ports := parsePortList(output)

	expected := []string{"Chrome:output_FL", "Chrome:output_FR", "system:playback_1"}
	if len(ports) != len(expected) {
		t.Fatalf("Expected %d ports, got %d: %v", len(expected), len(ports), ports)
	}
	for i, port := range expected {
		if ports[i] != port {
			t.Errorf("Expected port %d to be %s, got %s", i, port, ports[i])
		}
	}
}

func TestValidatePort_Success(t *testing.T) {
	pw := newTestPipeWire("Chrome:output_FL\nsystem:capture_1\n", nil)

	if err := pw.ValidatePort("system:capture_1"); err != nil {
		t.Errorf("Expected no error for valid single port, got: %v", err)
	}
}

func TestValidatePort_NotFound(t *testing.T) {
	pw := newTestPipeWire("Chrome:output_FL\n", nil)

	err := pw.ValidatePort("nonexistent:port")
	if err == nil {
		t.Fatal("Expected error for nonexistent port")
	}
	if !strings.Contains(err.Error(), "port not found") {
		t.Errorf("Expected 'port not found' error, got: %v", err)
	}
}

func TestValidatePort_DuplicateDetection(t *testing.T) {
	pw := newTestPipeWire("Chrome:output_FL\nChrome:output_FL\nChrome-2:output_FL\n", nil)

	err := pw.ValidatePort("Chrome:output_FL")
	if err == nil {
		t.Fatal("Expected error for duplicate sources")
	}
	if !strings.Contains(err.Error(), "duplicate sources detected") {
		t.Errorf("Expected 'duplicate sources detected' error, got: %v", err)
	}
}

func TestValidatePort_EmptyTarget(t *testing.T) {
	pw := newTestPipeWire("", errors.New("pw-link not installed"))

	if err := pw.ValidatePort(""); err != nil {
		t.Errorf("Expected no error for empty target, got: %v", err)
	}
}

func TestValidatePort_ListFailure(t *testing.T) {
	pw := newTestPipeWire("", errors.New("pw-link not installed"))

	err := pw.ValidatePort("Chrome:output_FL")
	if err == nil {
		t.Fatal("Expected error when pw-link fails")
	}
	if !strings.Contains(err.Error(), "failed to list PipeWire ports") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestFindPortDuplicates_Chrome(t *testing.T) {
	mockPorts := []string{
		"Chrome:output_FL",
		"Chrome:output_FL",
		"Chrome-2:output_FL",
		"Firefox:output_FL",
		"system:capture_1",
	}

	duplicates := findPortDuplicatesInList("Chrome:output_FL", mockPorts)

	if len(duplicates) != 2 {
		t.Errorf("Expected 2 duplicates, got %d: %v", len(duplicates), duplicates)
	}
	for _, duplicate := range duplicates {
		if duplicate != "Chrome:output_FL" {
			t.Errorf("Expected only 'Chrome:output_FL', got: %s", duplicate)
		}
	}
}

func TestFindPortDuplicates_NoDuplicates(t *testing.T) {
	mockPorts := []string{"Chrome:output_FL", "Firefox:output_FL", "system:capture_1"}

	duplicates := findPortDuplicatesInList("Chrome:output_FL", mockPorts)

	if len(duplicates) != 1 {
		t.Fatalf("Expected 1 duplicate (itself), got %d: %v", len(duplicates), duplicates)
	}
	if duplicates[0] != "Chrome:output_FL" {
		t.Errorf("Expected Chrome:output_FL, got: %s", duplicates[0])
	}
}

func TestPipeWireSourceArgs(t *testing.T) {
	args := NewPipeWireSource(48000, "", 512).Args()
	got := strings.Join(args, " ")
	if got != "pw-record --format f32 --channels 2 --rate 48000 -" {
		t.Errorf("Unexpected command line: %s", got)
	}

	args = NewPipeWireSource(44100, "alsa_input.usb", 512).Args()
	got = strings.Join(args, " ")
	if !strings.Contains(got, "--target alsa_input.usb") {
		t.Errorf("Expected target in command line, got: %s", got)
	}
	if args[len(args)-1] != "-" {
		t.Errorf("Expected stdout as last argument, got: %s", args[len(args)-1])
	}
}

func TestPipeWireSourceRejectsUnknownPort(t *testing.T) {
	src := NewPipeWireSource(48000, "Scarlett:capture_9", 512)
	src.graph = newTestPipeWire("Scarlett:capture_1\nScarlett:capture_2\n", nil)

	err := src.Run(context.Background(), &collectSink{})
	if err == nil {
		t.Fatal("Expected error for a port that is not in the graph")
	}
	if !strings.Contains(err.Error(), "port not found") {
		t.Errorf("Expected port not found error, got: %v", err)
	}
}

func TestPipeWireSourceRejectsDuplicatePort(t *testing.T) {
	src := NewPipeWireSource(48000, "Chrome:output_FL", 512)
	src.graph = newTestPipeWire("Chrome:output_FL\nChrome:output_FL\n", nil)

	err := src.Run(context.Background(), &collectSink{})
	if err == nil || !strings.Contains(err.Error(), "duplicate sources detected") {
		t.Errorf("Expected duplicate error, got: %v", err)
	}
}

func TestIsPortName(t *testing.T) {
	if !IsPortName("system:capture_1") {
		t.Error("Expected client:port to be a port name")
	}
	if IsPortName("alsa_input.usb") {
		t.Error("Expected node name not to be a port name")
	}
	if IsPortName("") {
		t.Error("Expected empty target not to be a port name")
	}
}

func TestRunCaptureReadsStdoutAndStderr(t *testing.T) {
	// 10 silent frames on stdout, a warning on stderr
	args := []string{"sh", "-c", "head -c 80 /dev/zero; echo warning >&2"}

	sink := &collectSink{}
	if err := runCapture(context.Background(), "sh", args, 4, sink); err != nil {
		t.Fatalf("Expected clean exit, got: %v", err)
	}
	if len(sink.frames) != 10 {
		t.Errorf("Expected 10 frames, got %d", len(sink.frames))
	}
}

func TestRunCaptureReportsToolFailure(t *testing.T) {
	args := []string{"sh", "-c", "echo broken >&2; exit 3"}

	if err := runCapture(context.Background(), "sh", args, 4, &collectSink{}); err == nil {
		t.Error("Expected error when the capture tool fails")
	}
}

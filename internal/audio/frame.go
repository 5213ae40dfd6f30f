package audio

// Channels and BytesPerFrame describe the only capture layout supported:
// interleaved stereo, 32-bit float per sample.
const (
	Channels       = 2
	BytesPerSample = 4
	BytesPerFrame  = Channels * BytesPerSample
)

// Frame is one stereo sample pair.
type Frame struct {
	L float32
	R float32
}

// AudioProcessor is implemented by anything that sits in the processing
// graph and receives audio blocks.
//
// Process is called on the real-time path and must not block, allocate or
// touch the file system.
type AudioProcessor interface {
	Process(frames []Frame)
	// ProcessSilence reports whether the processor wants to receive blocks
	// even when the input is silent.
	ProcessSilence() bool
}

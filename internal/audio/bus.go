package audio

import "sync/atomic"

// processorRef boxes an AudioProcessor so it can live in an atomic.Pointer.
type processorRef struct {
	p AudioProcessor
}

// Bus stands in for the mixing graph: sources push blocks into it and it
// forwards them to whichever processor is attached. Attach and Detach may be
// called from any goroutine while Process runs on the real-time one.
type Bus struct {
	current atomic.Pointer[processorRef]
}

// NewBus creates a bus with nothing attached.
func NewBus() *Bus {
	return &Bus{}
}

// Attach installs p as the bus processor, replacing any previous one.
func (b *Bus) Attach(p AudioProcessor) {
	if p == nil {
		b.current.Store(nil)
		return
	}
	b.current.Store(&processorRef{p: p})
}

// Detach releases the bus handle on the attached processor.
func (b *Bus) Detach() {
	b.current.Store(nil)
}

// Attached reports whether a processor is installed.
func (b *Bus) Attached() bool {
	return b.current.Load() != nil
}

// Process forwards a block to the attached processor.
func (b *Bus) Process(frames []Frame) {
	if ref := b.current.Load(); ref != nil {
		ref.p.Process(frames)
	}
}

// ProcessSilence forwards a silent block only if the processor wants it.
func (b *Bus) ProcessSilence() bool {
	if ref := b.current.Load(); ref != nil {
		return ref.p.ProcessSilence()
	}
	return false
}

// Deliver is what sources call for every block. Silent blocks are skipped
// unless the attached processor asks for them.
func (b *Bus) Deliver(frames []Frame) {
	if isSilent(frames) && !b.ProcessSilence() {
		return
	}
	b.Process(frames)
}

func isSilent(frames []Frame) bool {
	for _, f := range frames {
		if f.L != 0 || f.R != 0 {
			return false
		}
	}
	return true
}

package perception

import "sync"

// Mailbox is a single-slot latest-frame holder. Put overwrites whatever is
// stored, so readers always see the freshest frame and stale frames are
// discarded rather than queued.
type Mailbox struct {
	mu    sync.Mutex
	frame *Frame
}

// Put stores f, replacing any previous frame.
func (m *Mailbox) Put(f *Frame) {
	m.mu.Lock()
	m.frame = f
	m.mu.Unlock()
}

// Latest returns the bytes of the freshest frame, if any.
func (m *Mailbox) Latest() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frame == nil {
		return nil, false
	}
	return m.frame.Data, true
}

// LatestFrame returns the freshest frame, if any.
func (m *Mailbox) LatestFrame() (*Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame, m.frame != nil
}

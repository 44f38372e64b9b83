package capture

import (
	"encoding/binary"
	"sync/atomic"
	"time"
)

// FrameSource produces a captured camera frame payload on demand.
type FrameSource interface {
	Frame() []byte
}

// Session models the capture session lifecycle. CaptureFrame returns nil
// while no session is active, which is how the rest of the system learns the
// camera is unavailable (permission denied and device errors degrade to the
// same state).
type Session struct {
	active atomic.Bool
	src    FrameSource
}

// NewSession wraps a frame source in an inactive session.
func NewSession(src FrameSource) *Session {
	return &Session{src: src}
}

// Start activates the session.
func (s *Session) Start() { s.active.Store(true) }

// Stop deactivates the session. In-flight recognition results are dropped by
// the service's post-resolve active check.
func (s *Session) Stop() { s.active.Store(false) }

// Active reports the session state.
func (s *Session) Active() bool { return s.active.Load() }

// CaptureFrame returns a frame payload, or nil when no session is active.
// Synchronous, no suspension.
func (s *Session) CaptureFrame() []byte {
	if !s.active.Load() {
		return nil
	}
	return s.src.Frame()
}

// Synthetic fabricates frame payloads for the simulation. The content is
// opaque to the matcher; a timestamped header is enough to make payloads
// distinguishable in storage.
type Synthetic struct {
	seq atomic.Uint64
}

// NewSynthetic creates a synthetic frame source.
func NewSynthetic() *Synthetic {
	return &Synthetic{}
}

// Frame returns a small opaque payload.
func (s *Synthetic) Frame() []byte {
	buf := make([]byte, 16)
	copy(buf, "FMFRAME\x00")
	binary.BigEndian.PutUint32(buf[8:], uint32(time.Now().Unix()))
	binary.BigEndian.PutUint32(buf[12:], uint32(s.seq.Add(1)))
	return buf
}

package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Emitter writes responses as single JSON lines and flushes each one before
// returning. It is safe for concurrent use.
type Emitter struct {
	mu  sync.Mutex
	buf *bufio.Writer
	enc *json.Encoder
}

// NewEmitter returns an Emitter writing to w.
func NewEmitter(w io.Writer) *Emitter {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Emitter{buf: buf, enc: enc}
}

// Emit serialises resp followed by a newline and flushes it.
func (e *Emitter) Emit(resp Response) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enc.Encode(resp); err != nil {
		return fmt.Errorf("protocol: encode response: %w", err)
	}
	if err := e.buf.Flush(); err != nil {
		return fmt.Errorf("protocol: flush response: %w", err)
	}
	return nil
}

// Announce emits a status-only response.
func (e *Emitter) Announce(status Status, message string) error {
	return e.Emit(Notice(status, message))
}

package eventlog

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

// Writer appends records to one log session. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closed bool
}

// NewWriter starts a session on w by writing MagicBegin.
func NewWriter(w io.Writer) (*Writer, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(MagicBegin[:]); err != nil {
		return nil, err
	}
	return &Writer{w: bw}, nil
}

func (w *Writer) Write(r Record) error {
	if len(r.Buf) > 0xFF {
		return fmt.Errorf("%s with %d bytes: %w", r.Kind, len(r.Buf), ErrRecordTooLarge)
	}
	var body []byte
	switch r.Kind {
	case KindSendToLink:
		body = append([]byte{byte(r.Kind), r.Link, byte(len(r.Buf))}, r.Buf...)
	case KindSendToApp, KindSendToRouter:
		body = append([]byte{byte(r.Kind), byte(len(r.Buf))}, r.Buf...)
	case KindDvSet:
		body = []byte{byte(r.Kind), r.Subnet, r.Cost, r.NextHop}
	case KindTestNumber:
		body = []byte{byte(r.Kind), r.Test}
	case KindDrop:
		body = []byte{byte(r.Kind), byte(r.Drop)}
	default:
		return fmt.Errorf("write %s: %w", r.Kind, ErrUnknownRecord)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return io.ErrClosedPipe
	}
	_, err := w.w.Write(body)
	return err
}

func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Flush()
}

// Close ends the session with MagicEnd and flushes. The underlying writer is
// not closed.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if _, err := w.w.Write(MagicEnd[:]); err != nil {
		return err
	}
	return w.w.Flush()
}

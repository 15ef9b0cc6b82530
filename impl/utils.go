package impl

import (
	"errors"
	"fmt"
	"io"

	"github.com/encodeous/rani/protocol"
)

var ErrInvalidFrame = errors.New("frame size is invalid")

// ReadFrame reads one frame from a byte stream. The header length field
// delimits the frame; a length below the header size yields a header-only
// frame so that corrupt frames still reach the router and get dropped there.
func ReadFrame(r io.Reader) ([]byte, error) {
	buf := make([]byte, protocol.HeaderSize, protocol.MaxPacketSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	length := max(int(buf[2]), protocol.HeaderSize)
	buf = buf[:length]
	if _, err := io.ReadFull(r, buf[protocol.HeaderSize:]); err != nil {
		return nil, err
	}
	return buf, nil
}

func checkFrame(buf []byte) error {
	if len(buf) < protocol.HeaderSize || len(buf) > protocol.MaxPacketSize {
		return fmt.Errorf("%d bytes: %w", len(buf), ErrInvalidFrame)
	}
	return nil
}

func WriteFrame(w io.Writer, buf []byte) error {
	if err := checkFrame(buf); err != nil {
		return err
	}
	_, err := w.Write(buf)
	return err
}

package impl

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Link is one session on a stream connection. A session begins with a
// single hello byte written by the connecting side.
type Link struct {
	id      uuid.UUID
	Conn    net.Conn
	Hello   byte
	wmu     sync.Mutex
	timeout time.Duration
}

func NewLink(conn net.Conn, hello byte, writeTimeout time.Duration) *Link {
	return &Link{id: uuid.New(), Conn: conn, Hello: hello, timeout: writeTimeout}
}

// DialLink connects to addr and sends hello.
func DialLink(ctx context.Context, addr netip.AddrPort, hello byte, writeTimeout time.Duration) (*Link, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, err
	}
	l := NewLink(conn, hello, writeTimeout)
	if err := l.SendHello(); err != nil {
		conn.Close()
		return nil, err
	}
	return l, nil
}

// AcceptLink waits for the next connection on ln and reads its hello byte.
func AcceptLink(ln net.Listener, helloTimeout, writeTimeout time.Duration) (*Link, error) {
	conn, err := ln.Accept()
	if err != nil {
		return nil, err
	}
	hello, err := ReadHello(conn, helloTimeout)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return NewLink(conn, hello, writeTimeout), nil
}

// ReadHello reads the session hello byte within timeout.
func ReadHello(conn net.Conn, timeout time.Duration) (byte, error) {
	if timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Time{})
	}
	var hello [1]byte
	if _, err := io.ReadFull(conn, hello[:]); err != nil {
		return 0, fmt.Errorf("read hello: %w", err)
	}
	return hello[0], nil
}

// SendHello writes the session hello byte.
func (l *Link) SendHello() error {
	if err := l.write([]byte{l.Hello}); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	return nil
}

func (l *Link) Id() uuid.UUID {
	return l.id
}

func (l *Link) ReceivePacket() ([]byte, error) {
	return ReadFrame(l.Conn)
}

func (l *Link) SendPacket(buf []byte) error {
	if err := checkFrame(buf); err != nil {
		return err
	}
	return l.write(buf)
}

func (l *Link) write(buf []byte) error {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	if l.timeout > 0 {
		_ = l.Conn.SetWriteDeadline(time.Now().Add(l.timeout))
	}
	_, err := l.Conn.Write(buf)
	return err
}

func (l *Link) Close() error {
	return l.Conn.Close()
}

func (l *Link) String() string {
	return fmt.Sprintf("%s (%s)", l.Conn.RemoteAddr(), l.id.String()[:8])
}

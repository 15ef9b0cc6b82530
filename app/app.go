// Package app is the application that sits behind a router's application
// address. It greets every data packet it receives and sends it back.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"github.com/encodeous/rani/eventlog"
	"github.com/encodeous/rani/impl"
	"github.com/encodeous/rani/protocol"
	"github.com/encodeous/rani/state"
)

var ErrBadHello = errors.New("unexpected hello byte")

// Respond computes the reply to one frame received from the router. A nil
// reply with DropNone means the frame was ignored.
func Respond(buf []byte) ([]byte, protocol.DropReason) {
	p, err := protocol.Deserialize(buf)
	if err != nil {
		return nil, protocol.DropChecksumError
	}
	data, ok := p.Payload.(protocol.Data)
	if !ok {
		return nil, protocol.DropNone
	}
	if int(p.Length) > protocol.MaxPacketSize-len(state.AppGreeting) {
		return nil, protocol.DropTooLarge
	}

	greeting := make(protocol.Data, 0, len(state.AppGreeting)+len(data))
	greeting = append(greeting, state.AppGreeting...)
	greeting = append(greeting, data...)
	reply := protocol.Packet{
		Src:     p.Dest,
		Dest:    p.Src,
		TTL:     state.AppReplyTTL,
		Ack:     true,
		SeqNo:   (p.SeqNo + 1) & protocol.MaxSeqNo,
		Payload: greeting,
	}
	if err := reply.FixLength(); err != nil {
		return nil, protocol.DropTooLarge
	}
	out, err := protocol.Marshal(&reply)
	if err != nil {
		return nil, protocol.DropGeneral
	}
	return out, protocol.DropNone
}

// Recorder receives the application's event log records. *eventlog.Writer
// is a Recorder.
type Recorder interface {
	Write(r eventlog.Record) error
}

// Server answers router sessions. Events is optional.
type Server struct {
	Log    *slog.Logger
	Events Recorder
}

func (s *Server) record(r eventlog.Record) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Write(r); err != nil {
		s.Log.Warn("failed to write event log record", "kind", r.Kind, "err", err)
	}
}

// ServeConn handles one router session until the router ends it, the
// connection fails or ctx is done. Control frames are echoed back before
// returning.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	hello, err := impl.ReadHello(conn, state.LinkHelloTimeout)
	if err != nil {
		return err
	}
	if hello != state.AppHello {
		return fmt.Errorf("%w: %d", ErrBadHello, hello)
	}
	link := impl.NewLink(conn, hello, state.LinkWriteTimeout)
	s.Log.Debug("router connected", "session", link)

	for {
		buf, err := link.ReceivePacket()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if c := protocol.ControlFlags(buf); c != 0 && protocol.ValidChecksum(buf) {
			s.Log.Debug("router ended the session", "control", c)
			return link.SendPacket(buf)
		}
		reply, reason := Respond(buf)
		if reason != protocol.DropNone {
			s.Log.Debug("dropped packet", "reason", reason)
			s.record(eventlog.Drop(reason))
			continue
		}
		if reply == nil {
			continue
		}
		s.record(eventlog.SendToRouter(reply))
		if err := link.SendPacket(reply); err != nil {
			return err
		}
	}
}

// ListenAndServe accepts router sessions on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr netip.AddrPort) error {
	ln, err := net.Listen("tcp", addr.String())
	if err != nil {
		return err
	}
	s.Log.Info("application listening", "addr", ln.Addr())
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()
	defer ln.Close()

	wg := sync.WaitGroup{}
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ServeConn(ctx, conn); err != nil {
				s.Log.Warn("session failed", "remote", conn.RemoteAddr(), "err", err)
			}
		}()
	}
}

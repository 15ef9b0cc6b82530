package eventlog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/encodeous/rani/protocol"
)

type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next record, including KindBegin and KindEnd markers.
// It returns io.EOF once the input is exhausted on a record boundary.
func (r *Reader) Next() (Record, error) {
	first, err := r.r.Peek(1)
	if err != nil {
		return Record{}, err
	}
	switch first[0] {
	case MagicBegin[0]:
		return r.magic(MagicBegin, KindBegin)
	case MagicEnd[0]:
		return r.magic(MagicEnd, KindEnd)
	}

	kind, _ := r.r.ReadByte()
	rec := Record{Kind: Kind(kind)}
	switch rec.Kind {
	case KindSendToLink:
		if rec.Link, err = r.readByte(); err != nil {
			return Record{}, err
		}
		rec.Buf, err = r.sized()
	case KindSendToApp, KindSendToRouter:
		rec.Buf, err = r.sized()
	case KindDvSet:
		var b []byte
		if b, err = r.fixed(3); err == nil {
			rec.Subnet, rec.Cost, rec.NextHop = b[0], b[1], b[2]
		}
	case KindTestNumber:
		rec.Test, err = r.readByte()
	case KindDrop:
		var d byte
		d, err = r.readByte()
		rec.Drop = protocol.DropReason(d)
	default:
		return Record{}, fmt.Errorf("kind %d: %w", kind, ErrUnknownRecord)
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// All reads records until EOF.
func (r *Reader) All() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

func (r *Reader) magic(want [4]byte, kind Kind) (Record, error) {
	b, err := r.fixed(len(want))
	if err != nil {
		return Record{}, err
	}
	if !bytes.Equal(b, want[:]) {
		return Record{}, fmt.Errorf("%x: %w", b, ErrBadMagic)
	}
	return Record{Kind: kind}, nil
}

func (r *Reader) readByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, truncated(err)
	}
	return b, nil
}

func (r *Reader) fixed(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, truncated(err)
	}
	return b, nil
}

func (r *Reader) sized() ([]byte, error) {
	n, err := r.readByte()
	if err != nil {
		return nil, err
	}
	return r.fixed(int(n))
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}

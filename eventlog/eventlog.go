// Package eventlog reads and writes the binary router event log.
//
// A log is a sequence of sessions. Each session starts with MagicBegin,
// contains records and ends with MagicEnd. A record is a kind byte followed
// by a kind-specific body; packet bodies are prefixed with a one byte size.
package eventlog

import (
	"errors"
	"fmt"

	"github.com/encodeous/rani/protocol"
)

var (
	MagicBegin = [4]byte{0xCA, 0xFE, 0xDE, 0xAD}
	MagicEnd   = [4]byte{0xB0, 0xBA, 0xB0, 0xBA}
)

var (
	ErrBadMagic       = errors.New("bad magic")
	ErrTruncated      = errors.New("truncated record")
	ErrUnknownRecord  = errors.New("unknown record kind")
	ErrRecordTooLarge = errors.New("record body exceeds 255 bytes")
)

type Kind uint8

const (
	KindSendToLink Kind = iota + 1
	KindSendToApp
	KindSendToRouter
	KindDvSet
	KindTestNumber
	KindDrop

	// KindBegin and KindEnd are session markers produced by Reader; they
	// are encoded as magic numbers, not kind bytes.
	KindBegin Kind = 0xF0
	KindEnd   Kind = 0xF1
)

func (k Kind) String() string {
	switch k {
	case KindSendToLink:
		return "SEND_TO_LINK"
	case KindSendToApp:
		return "SEND_TO_APP"
	case KindSendToRouter:
		return "SEND_TO_ROUTER"
	case KindDvSet:
		return "DV_SET"
	case KindTestNumber:
		return "TEST_NUMBER"
	case KindDrop:
		return "DROP"
	case KindBegin:
		return "BEGIN"
	case KindEnd:
		return "END"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// Record is one log entry. Only the fields relevant to Kind are meaningful.
type Record struct {
	Kind    Kind
	Link    uint8
	Buf     []byte
	Subnet  uint8
	Cost    uint8
	NextHop uint8
	Test    uint8
	Drop    protocol.DropReason
}

func SendToLink(link uint8, buf []byte) Record {
	return Record{Kind: KindSendToLink, Link: link, Buf: buf}
}

func SendToApp(buf []byte) Record {
	return Record{Kind: KindSendToApp, Buf: buf}
}

func SendToRouter(buf []byte) Record {
	return Record{Kind: KindSendToRouter, Buf: buf}
}

func DvSet(subnet, cost, nextHop uint8) Record {
	return Record{Kind: KindDvSet, Subnet: subnet, Cost: cost, NextHop: nextHop}
}

func TestNumber(n uint8) Record {
	return Record{Kind: KindTestNumber, Test: n}
}

func Drop(reason protocol.DropReason) Record {
	return Record{Kind: KindDrop, Drop: reason}
}

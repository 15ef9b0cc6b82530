package protocol

import (
	"fmt"
	"strings"
)

const (
	MaxPacketSize     = 255
	HeaderSize        = 8
	CommandHeaderSize = 4
	CommandEntrySize  = 2
	MaxCommandEntries = (MaxPacketSize - HeaderSize - CommandHeaderSize) / CommandEntrySize
	MaxDataSize       = MaxPacketSize - HeaderSize

	MaxTTL       = 0xF
	MaxSeqNo     = 0xFFF
	MaxTimestamp = 0xFFFFF
)

type Type uint8

const (
	TypeCommand Type = 4
	TypeData    Type = 8
)

func (t Type) String() string {
	switch t {
	case TypeCommand:
		return "command"
	case TypeData:
		return "data"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Packet is a decoded RaNi frame. Length is the total frame size including
// the header and must agree with the payload, see FixLength.
type Packet struct {
	Src     uint8
	Dest    uint8
	Length  uint8
	TTL     uint8
	Ack     bool
	SeqNo   uint16
	Payload Payload
}

// Payload is implemented by Data and Command.
type Payload interface {
	Type() Type
	size() int
}

// Data is an opaque application payload.
type Data []byte

func (Data) Type() Type {
	return TypeData
}

func (d Data) size() int {
	return len(d)
}

// Entry advertises the sender's cost to a destination subnet.
type Entry struct {
	Subnet uint8
	Cost   uint8
}

// Command carries a distance-vector advertisement.
type Command struct {
	Timestamp uint32
	Entries   []Entry
}

func (Command) Type() Type {
	return TypeCommand
}

func (c Command) size() int {
	return CommandHeaderSize + CommandEntrySize*len(c.Entries)
}

func (p Packet) Type() Type {
	if p.Payload == nil {
		return 0
	}
	return p.Payload.Type()
}

// FixLength sets Length from the header and payload size.
func (p *Packet) FixLength() error {
	if p.Payload == nil {
		return ErrUnknownType
	}
	n := HeaderSize + p.Payload.size()
	if n > MaxPacketSize {
		return fmt.Errorf("%d bytes: %w", n, ErrTooLarge)
	}
	p.Length = uint8(n)
	return nil
}

// SubnetOf returns the 6-bit subnet identifier of an address.
func SubnetOf(addr uint8) uint8 {
	return addr >> 2
}

func (p Packet) String() string {
	sb := strings.Builder{}
	sb.WriteString("PACKET:\n")
	sb.WriteString(fmt.Sprintf("  src: %d\n  dest: %d\n  length: %d\n  ttl: %d\n", p.Src, p.Dest, p.Length, p.TTL))
	ack := 0
	if p.Ack {
		ack = 1
	}
	sb.WriteString(fmt.Sprintf("  flag_ack: %d\n  type: %d\n  seq_no: %d\n", ack, uint8(p.Type()), p.SeqNo))
	switch payload := p.Payload.(type) {
	case Data:
		sb.WriteString("data:")
		for _, b := range payload {
			sb.WriteString(fmt.Sprintf(" %d", b))
		}
		sb.WriteString("\n")
	case Command:
		sb.WriteString(fmt.Sprintf("command:\n  entry_count: %d\n  timestamp: %d\n  entries:\n", len(payload.Entries), payload.Timestamp))
		for _, e := range payload.Entries {
			sb.WriteString(fmt.Sprintf("    dest_subnet: %d, cost: %d\n", e.Subnet, e.Cost))
		}
	}
	return sb.String()
}

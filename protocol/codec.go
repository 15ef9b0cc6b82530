package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrTooShort        = errors.New("buffer too short")
	ErrChecksumInvalid = errors.New("checksum invalid")
	ErrUnknownType     = errors.New("unknown packet type")
	ErrBufferTooSmall  = errors.New("destination buffer too small")
	ErrLengthMismatch  = errors.New("length does not match payload")
	ErrTooLarge        = errors.New("packet exceeds maximum size")
	ErrFieldRange      = errors.New("header field out of range")
)

const (
	flagAck     = 1 << 6
	ttlMask     = 0x0F
	checksumIdx = 6
)

// Deserialize decodes a frame. The checksum is validated over all of buf, so
// buf should be exactly the received frame. Data payloads are copied.
func Deserialize(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize {
		return Packet{}, fmt.Errorf("%d byte header: %w", len(buf), ErrTooShort)
	}
	if !ValidChecksum(buf) {
		return Packet{}, ErrChecksumInvalid
	}
	length := int(buf[2])
	if length > len(buf) || length < HeaderSize {
		return Packet{}, fmt.Errorf("length %d with %d bytes: %w", length, len(buf), ErrTooShort)
	}
	p := Packet{
		Src:    buf[0],
		Dest:   buf[1],
		Length: buf[2],
		TTL:    buf[3] & ttlMask,
		Ack:    buf[3]&flagAck != 0,
		SeqNo:  uint16(buf[4]&0x0F)<<8 | uint16(buf[5]),
	}
	body := buf[HeaderSize:length]
	switch Type(buf[4] >> 4) {
	case TypeData:
		p.Payload = Data(bytes.Clone(body))
	case TypeCommand:
		cmd, err := decodeCommand(body)
		if err != nil {
			return Packet{}, err
		}
		p.Payload = cmd
	default:
		return Packet{}, fmt.Errorf("type %d: %w", buf[4]>>4, ErrUnknownType)
	}
	return p, nil
}

func decodeCommand(body []byte) (Command, error) {
	if len(body) < CommandHeaderSize {
		return Command{}, fmt.Errorf("command header: %w", ErrTooShort)
	}
	count := int(body[0])
	need := CommandHeaderSize + count*CommandEntrySize
	if len(body) < need {
		return Command{}, fmt.Errorf("%d entries need %d bytes, have %d: %w", count, need, len(body), ErrTooShort)
	}
	cmd := Command{
		Timestamp: uint32(body[1]&0x0F)<<16 | uint32(binary.BigEndian.Uint16(body[2:4])),
		Entries:   make([]Entry, count),
	}
	for i := range cmd.Entries {
		off := CommandHeaderSize + i*CommandEntrySize
		cmd.Entries[i] = Entry{Subnet: body[off], Cost: body[off+1]}
	}
	return cmd, nil
}

// Serialize encodes p into dst and returns the number of bytes written,
// which is always p.Length. dst is left untouched when an error is returned.
func Serialize(p *Packet, dst []byte) (int, error) {
	switch p.Payload.(type) {
	case Data, Command:
	default:
		return 0, ErrUnknownType
	}
	size := HeaderSize + p.Payload.size()
	if size > MaxPacketSize {
		return 0, fmt.Errorf("%d bytes: %w", size, ErrTooLarge)
	}
	if int(p.Length) != size {
		return 0, fmt.Errorf("length %d, payload needs %d: %w", p.Length, size, ErrLengthMismatch)
	}
	if p.TTL > MaxTTL || p.SeqNo > MaxSeqNo {
		return 0, fmt.Errorf("ttl %d seq_no %d: %w", p.TTL, p.SeqNo, ErrFieldRange)
	}
	if cmd, ok := p.Payload.(Command); ok && cmd.Timestamp > MaxTimestamp {
		return 0, fmt.Errorf("timestamp %d: %w", cmd.Timestamp, ErrFieldRange)
	}
	if len(dst) < size {
		return 0, fmt.Errorf("%d < %d: %w", len(dst), size, ErrBufferTooSmall)
	}
	buf := dst[:size]
	buf[0] = p.Src
	buf[1] = p.Dest
	buf[2] = p.Length
	buf[3] = p.TTL & ttlMask
	if p.Ack {
		buf[3] |= flagAck
	}
	buf[4] = byte(p.Type())<<4 | byte(p.SeqNo>>8)&0x0F
	buf[5] = byte(p.SeqNo)
	buf[6] = 0
	buf[7] = 0
	switch payload := p.Payload.(type) {
	case Data:
		copy(buf[HeaderSize:], payload)
	case Command:
		body := buf[HeaderSize:]
		body[0] = uint8(len(payload.Entries))
		body[1] = uint8(payload.Timestamp>>16) & 0x0F
		binary.BigEndian.PutUint16(body[2:4], uint16(payload.Timestamp))
		for i, e := range payload.Entries {
			off := CommandHeaderSize + i*CommandEntrySize
			body[off] = e.Subnet
			body[off+1] = e.Cost
		}
	default:
		return 0, ErrUnknownType
	}
	buf[checksumIdx] = ComputeChecksum(buf)
	return size, nil
}

// Marshal serializes p into a new buffer of exactly p.Length bytes.
func Marshal(p *Packet) ([]byte, error) {
	buf := make([]byte, p.Length)
	n, err := Serialize(p, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

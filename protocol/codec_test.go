package protocol_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/encodeous/rani/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	dataFrame    = []byte{19, 65, 17, 70, 141, 20, 133, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	commandFrame = []byte{103, 7, 18, 15, 65, 11, 195, 0, 3, 13, 187, 160, 16, 45, 1, 100, 78, 3}
)

func dataPacket() protocol.Packet {
	return protocol.Packet{
		Src:     19,
		Dest:    65,
		Length:  17,
		TTL:     6,
		Ack:     true,
		SeqNo:   3348,
		Payload: protocol.Data{1, 2, 3, 4, 5, 6, 7, 8, 9},
	}
}

func commandPacket() protocol.Packet {
	return protocol.Packet{
		Src:    103,
		Dest:   7,
		Length: 18,
		TTL:    15,
		SeqNo:  267,
		Payload: protocol.Command{
			Timestamp: 900000,
			Entries:   []protocol.Entry{{16, 45}, {1, 100}, {78, 3}},
		},
	}
}

// reseal rewrites the checksum of a modified frame so that later checks are reached.
func reseal(buf []byte) []byte {
	buf[6] = protocol.ComputeChecksum(buf)
	return buf
}

func TestDeserializeData(t *testing.T) {
	p, err := protocol.Deserialize(dataFrame)
	require.NoError(t, err)
	assert.Equal(t, dataPacket(), p)
	assert.Equal(t, protocol.TypeData, p.Type())

	out := make([]byte, protocol.MaxPacketSize)
	n, err := protocol.Serialize(&p, out)
	require.NoError(t, err)
	assert.Equal(t, dataFrame, out[:n])
}

func TestDeserializeCommand(t *testing.T) {
	p, err := protocol.Deserialize(commandFrame)
	require.NoError(t, err)
	assert.Equal(t, commandPacket(), p)
	cmd, ok := p.Payload.(protocol.Command)
	require.True(t, ok)
	assert.Len(t, cmd.Entries, 3)

	out, err := protocol.Marshal(&p)
	require.NoError(t, err)
	assert.Equal(t, commandFrame, out)
}

func TestShortBuffers(t *testing.T) {
	_, err := protocol.Deserialize(dataFrame[:4])
	assert.ErrorIs(t, err, protocol.ErrTooShort)

	p := dataPacket()
	_, err = protocol.Serialize(&p, make([]byte, 4))
	assert.ErrorIs(t, err, protocol.ErrBufferTooSmall)
}

func TestDeserializeRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]byte) []byte
		err    error
	}{
		{"bad checksum", func(b []byte) []byte { b[6] = 65; return b }, protocol.ErrChecksumInvalid},
		{"length beyond buffer", func(b []byte) []byte { b[2] = 20; return reseal(b) }, protocol.ErrTooShort},
		{"length below header", func(b []byte) []byte { b[2] = 5; return reseal(b) }, protocol.ErrTooShort},
		{"unknown type", func(b []byte) []byte { b[4] = 0x3D; return reseal(b) }, protocol.ErrUnknownType},
		{"checksum before length", func(b []byte) []byte { b[2] = 20; return b }, protocol.ErrChecksumInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := protocol.Deserialize(tc.mutate(bytes.Clone(dataFrame)))
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestDeserializeCommandBounds(t *testing.T) {
	buf := bytes.Clone(commandFrame)
	buf[8] = 10
	_, err := protocol.Deserialize(reseal(buf))
	assert.ErrorIs(t, err, protocol.ErrTooShort)

	// a command frame too short to hold the command header
	short := bytes.Clone(commandFrame[:10])
	short[2] = 10
	_, err = protocol.Deserialize(reseal(short))
	assert.ErrorIs(t, err, protocol.ErrTooShort)
}

func TestSerializeRejects(t *testing.T) {
	out := make([]byte, protocol.MaxPacketSize)

	p := dataPacket()
	p.Length = 20
	_, err := protocol.Serialize(&p, out)
	assert.ErrorIs(t, err, protocol.ErrLengthMismatch)

	p = dataPacket()
	p.TTL = 16
	_, err = protocol.Serialize(&p, out)
	assert.ErrorIs(t, err, protocol.ErrFieldRange)

	p = dataPacket()
	p.SeqNo = 4096
	_, err = protocol.Serialize(&p, out)
	assert.ErrorIs(t, err, protocol.ErrFieldRange)

	p = commandPacket()
	p.Payload = protocol.Command{Timestamp: 1 << 20}
	require.NoError(t, p.FixLength())
	_, err = protocol.Serialize(&p, out)
	assert.ErrorIs(t, err, protocol.ErrFieldRange)

	p = dataPacket()
	p.Payload = protocol.Data(make([]byte, protocol.MaxDataSize+1))
	assert.ErrorIs(t, p.FixLength(), protocol.ErrTooLarge)
	_, err = protocol.Serialize(&p, out)
	assert.ErrorIs(t, err, protocol.ErrTooLarge)

	p = protocol.Packet{Length: protocol.HeaderSize}
	_, err = protocol.Serialize(&p, out)
	assert.ErrorIs(t, err, protocol.ErrUnknownType)
}

func TestSerializeFailureLeavesBuffer(t *testing.T) {
	tests := []struct {
		name string
		p    protocol.Packet
		err  error
	}{
		{"timestamp", protocol.Packet{Src: 1, Dest: 2, TTL: 14, Payload: protocol.Command{Timestamp: 1 << 20}}, protocol.ErrFieldRange},
		{"ttl", protocol.Packet{Src: 1, Dest: 2, TTL: 16, Payload: protocol.Data("x")}, protocol.ErrFieldRange},
		{"pointer payload", protocol.Packet{Src: 1, Dest: 2, Payload: &protocol.Data{}}, protocol.ErrUnknownType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.p
			p.Length = uint8(protocol.HeaderSize)
			switch payload := p.Payload.(type) {
			case protocol.Command:
				p.Length += uint8(protocol.CommandHeaderSize + protocol.CommandEntrySize*len(payload.Entries))
			case protocol.Data:
				p.Length += uint8(len(payload))
			}
			dst := bytes.Repeat([]byte{0xAA}, protocol.MaxPacketSize)
			_, err := protocol.Serialize(&p, dst)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, bytes.Repeat([]byte{0xAA}, protocol.MaxPacketSize), dst)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	full := protocol.Command{Timestamp: protocol.MaxTimestamp}
	for i := 0; i < 64; i++ {
		full.Entries = append(full.Entries, protocol.Entry{Subnet: uint8(i), Cost: uint8(255 - i)})
	}
	packets := []protocol.Packet{
		dataPacket(),
		commandPacket(),
		{Src: 12, Dest: 14, TTL: protocol.MaxTTL, SeqNo: protocol.MaxSeqNo, Payload: protocol.Data{}},
		{Src: 1, Dest: 2, TTL: 3, Ack: true, Payload: protocol.Command{Timestamp: 1, Entries: []protocol.Entry{}}},
		{Src: 12, Dest: 8, TTL: 9, SeqNo: 77, Payload: full},
		{Src: 200, Dest: 4, TTL: 1, Payload: protocol.Data(bytes.Repeat([]byte{0xAB}, protocol.MaxDataSize))},
	}
	for i, p := range packets {
		t.Run(fmt.Sprintf("packet %d", i), func(t *testing.T) {
			require.NoError(t, p.FixLength())
			buf, err := protocol.Marshal(&p)
			require.NoError(t, err)
			assert.Len(t, buf, int(p.Length))
			assert.True(t, protocol.ValidChecksum(buf))

			got, err := protocol.Deserialize(buf)
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

func TestDeserializeCopiesData(t *testing.T) {
	buf := bytes.Clone(dataFrame)
	p, err := protocol.Deserialize(buf)
	require.NoError(t, err)
	buf[8] = 99
	assert.Equal(t, protocol.Data{1, 2, 3, 4, 5, 6, 7, 8, 9}, p.Payload)
}

func TestPacketString(t *testing.T) {
	s := commandPacket().String()
	assert.Contains(t, s, "timestamp: 900000")
	assert.Contains(t, s, "dest_subnet: 78, cost: 3")
	assert.Contains(t, dataPacket().String(), "data: 1 2 3 4 5 6 7 8 9")
}

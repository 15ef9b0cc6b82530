package protocol_test

import (
	"bytes"
	"fmt"
	"slices"
	"testing"

	"github.com/encodeous/rani/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChecksum(t *testing.T) {
	tests := []struct {
		Input  []byte
		Output uint8
	}{
		{make([]byte, 8), 0xFF},
		{bytes.Repeat([]byte{0xFF}, 8), 0x00},
		{[]byte{255, 255, 1, 0, 0, 0, 0, 0}, 0xFF},
		{dataFrame, 133},
		{commandFrame, 195},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("Input %v", test.Input), func(t *testing.T) {
			assert.Equal(t, test.Output, protocol.ComputeChecksum(test.Input))
		})
	}
}

func TestComputeChecksumIgnoresChecksumByte(t *testing.T) {
	buf := bytes.Clone(dataFrame)
	for c := 0; c < 256; c++ {
		buf[6] = uint8(c)
		assert.Equal(t, uint8(133), protocol.ComputeChecksum(buf))
	}
}

func TestSingleBitFlipsDetected(t *testing.T) {
	for _, frame := range [][]byte{dataFrame, commandFrame} {
		for i := range frame {
			for bit := 0; bit < 8; bit++ {
				buf := bytes.Clone(frame)
				buf[i] ^= 1 << bit
				_, err := protocol.Deserialize(buf)
				assert.ErrorIs(t, err, protocol.ErrChecksumInvalid, "byte %d bit %d", i, bit)
			}
		}
	}
}

// acceptedChecksums lists every checksum byte for which frame satisfies the
// fold-to-0xFF rule, computed directly from the byte sum.
func acceptedChecksums(frame []byte) []uint8 {
	var accepted []uint8
	buf := bytes.Clone(frame)
	for c := 0; c < 256; c++ {
		buf[6] = uint8(c)
		sum := 0
		for _, b := range buf {
			sum += int(b)
		}
		if (sum&0xFF)+(sum>>8) == 0xFF {
			accepted = append(accepted, uint8(c))
		}
	}
	return accepted
}

func TestChecksumByteSweep(t *testing.T) {
	for _, frame := range [][]byte{dataFrame, commandFrame} {
		accepted := acceptedChecksums(frame)
		require.Contains(t, accepted, frame[6])

		want, err := protocol.Deserialize(frame)
		require.NoError(t, err)

		buf := bytes.Clone(frame)
		for c := 0; c < 256; c++ {
			buf[6] = uint8(c)
			got, err := protocol.Deserialize(buf)
			if slices.Contains(accepted, uint8(c)) {
				require.NoError(t, err, "checksum %d", c)
				assert.Equal(t, want, got)
			} else {
				assert.ErrorIs(t, err, protocol.ErrChecksumInvalid, "checksum %d", c)
			}
		}
	}
}

// foldCarries reports whether the byte sum of frame, checksum byte taken as
// zero, overflows the single byte addition of its two halves.
func foldCarries(frame []byte) bool {
	sum := 0
	for i, b := range frame {
		if i != 6 {
			sum += int(b)
		}
	}
	sum &= 0xFFFF
	return (sum&0xFF)+(sum>>8) > 0xFF
}

func TestFoldCarryHasNoValidEncoding(t *testing.T) {
	var carried, clean []int
	for n := 0; n <= protocol.MaxDataSize; n++ {
		p := protocol.Packet{Src: 1, Dest: 2, Payload: protocol.Data(bytes.Repeat([]byte{'a'}, n))}
		require.NoError(t, p.FixLength())
		buf, err := protocol.Marshal(&p)
		require.NoError(t, err)

		got, err := protocol.Deserialize(buf)
		if foldCarries(buf) {
			carried = append(carried, n)
			assert.False(t, protocol.ValidChecksum(buf), "size %d", n)
			assert.ErrorIs(t, err, protocol.ErrChecksumInvalid, "size %d", n)
			continue
		}
		clean = append(clean, n)
		assert.True(t, protocol.ValidChecksum(buf), "size %d", n)
		require.NoError(t, err, "size %d", n)
		assert.Equal(t, p, got)
	}
	assert.NotEmpty(t, carried)
	assert.NotEmpty(t, clean)
}

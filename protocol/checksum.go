package protocol

// fold sums every byte of buf except index skip into 16 bits, then adds the
// two halves with a single carry-dropping byte addition.
func fold(buf []byte, skip int) uint8 {
	var sum uint16
	for i, b := range buf {
		if i != skip {
			sum += uint16(b)
		}
	}
	return uint8(sum&0xFF) + uint8(sum>>8)
}

// ComputeChecksum returns the checksum byte for a serialized frame, treating
// the checksum position as zero.
func ComputeChecksum(buf []byte) uint8 {
	return ^fold(buf, checksumIdx)
}

// ValidChecksum reports whether buf, checksum byte included, folds to 0xFF.
func ValidChecksum(buf []byte) bool {
	return fold(buf, -1) == 0xFF
}

package protocol

// Control flags occupy otherwise unused bits of header byte 3. They terminate
// a link session and are never routed.
type Control uint8

const (
	ControlErr Control = 1 << 4
	ControlEnd Control = 1 << 5
)

// ControlFlags returns the control bits set on a raw frame.
func ControlFlags(buf []byte) Control {
	if len(buf) < HeaderSize {
		return 0
	}
	return Control(buf[3]) & (ControlErr | ControlEnd)
}

// MarkControl sets c on a serialized frame and refreshes its checksum.
func MarkControl(buf []byte, c Control) {
	if len(buf) < HeaderSize {
		return
	}
	buf[3] |= byte(c)
	buf[checksumIdx] = ComputeChecksum(buf)
}

// ControlFrame builds a minimal data frame carrying c.
func ControlFrame(src, dest uint8, c Control) []byte {
	p := Packet{Src: src, Dest: dest, Length: HeaderSize, Payload: Data{}}
	buf, _ := Marshal(&p)
	MarkControl(buf, c)
	return buf
}

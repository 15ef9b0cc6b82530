package eventlog

import (
	"fmt"
	"strings"

	"github.com/encodeous/rani/protocol"
)

// Format renders r in the human readable log dump layout. Packet bodies are
// decoded when possible.
func Format(r Record) string {
	sb := strings.Builder{}
	switch r.Kind {
	case KindBegin:
		sb.WriteString("********** BEGIN **********\n")
	case KindEnd:
		sb.WriteString("********** END **********\n")
	case KindSendToLink:
		sb.WriteString(fmt.Sprintf("* %s *\nlink: %d\nsize: %d\n", r.Kind, r.Link, len(r.Buf)))
		writePacket(&sb, r.Buf)
	case KindSendToApp, KindSendToRouter:
		sb.WriteString(fmt.Sprintf("* %s *\nsize: %d\n", r.Kind, len(r.Buf)))
		writePacket(&sb, r.Buf)
	case KindDvSet:
		sb.WriteString(fmt.Sprintf("* %s *\nDest Subnet: %d\nCost: %d\nNext Hop Link: %d\n", r.Kind, r.Subnet, r.Cost, r.NextHop))
	case KindTestNumber:
		if r.Test != 0 {
			sb.WriteString(fmt.Sprintf("***** TEST %d *****\n", r.Test))
		} else {
			sb.WriteString("***** TEST *****\n")
		}
	case KindDrop:
		sb.WriteString(fmt.Sprintf("PACKET_DROP: %s\n", r.Drop))
	default:
		sb.WriteString(fmt.Sprintf("[!] %s\n", r.Kind))
	}
	return sb.String()
}

func writePacket(sb *strings.Builder, buf []byte) {
	p, err := protocol.Deserialize(buf)
	if err == nil {
		sb.WriteString(p.String())
		return
	}
	sb.WriteString("Invalid packet:")
	for _, b := range buf {
		sb.WriteString(fmt.Sprintf(" %d", b))
	}
	sb.WriteString("\n")
}

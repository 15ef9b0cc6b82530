package protocol

import "fmt"

// DropReason is the code recorded when a packet is discarded. The numeric
// values appear in event logs.
type DropReason uint8

const (
	DropNone           DropReason = 0
	DropGeneral        DropReason = 99
	DropChecksumError  DropReason = 100
	DropTtlZero        DropReason = 101
	DropNoRoutingEntry DropReason = 102
	DropOutdated       DropReason = 103
	DropTooLarge       DropReason = 104
)

var DropReasons = []DropReason{
	DropGeneral,
	DropChecksumError,
	DropTtlZero,
	DropNoRoutingEntry,
	DropOutdated,
	DropTooLarge,
}

func (d DropReason) String() string {
	switch d {
	case DropNone:
		return "None"
	case DropGeneral:
		return "General"
	case DropChecksumError:
		return "Checksum Error"
	case DropTtlZero:
		return "TTL Zero"
	case DropNoRoutingEntry:
		return "No Routing Entry"
	case DropOutdated:
		return "Outdated Command"
	case DropTooLarge:
		return "Too Large"
	default:
		return fmt.Sprintf("Invalid drop code %d", uint8(d))
	}
}

package state

import "time"

var (
	DefaultAddress    = uint8(12)
	DefaultAppAddress = uint8(14)

	// AppHello is the first byte the router sends on the application link.
	AppHello    = byte(5)
	AppGreeting = "Hello "
	AppReplyTTL = uint8(15)

	DispatchQueueSize     = 128
	DispatchWarnThreshold = time.Millisecond * 4
	TraceBufferSize       = 1024

	LinkDialRetry    = time.Millisecond * 500
	LinkHelloTimeout = time.Second * 2
	// LinkWriteTimeout bounds a single frame write.
	LinkWriteTimeout = time.Second * 2

	DropLogInterval = time.Second * 5
)

var (
	NodeConfigPath = "node.yaml"
)

package core

import (
	"github.com/dustin/go-broadcast"
	"github.com/encodeous/rani/eventlog"
	"github.com/encodeous/rani/state"
)

// RaniTrace fans out every event log record the node produces. Listeners
// receive eventlog.Record values.
type RaniTrace struct {
	broadcast.Broadcaster
}

func (t *RaniTrace) Init(s *state.State) error {
	t.Broadcaster = broadcast.NewBroadcaster(state.TraceBufferSize)
	return nil
}

func (t *RaniTrace) Cleanup(s *state.State) error {
	return t.Broadcaster.Close()
}

func (t *RaniTrace) Record(r eventlog.Record) {
	if t == nil || t.Broadcaster == nil {
		return
	}
	t.Submit(r)
}

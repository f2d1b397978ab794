package engine

import (
	"github.com/meshcore/trustengine/internal/group"
	"github.com/meshcore/trustengine/internal/keyreset"
	"github.com/meshcore/trustengine/internal/util"
)

// HistoryEvent merges group.Event and keyreset.Event into one stream so a
// CLI or operator tool can inspect recent activity without subscribing to
// each Engine separately.
type HistoryEvent struct {
	Source string // "group" or "keyreset"
	Type   string
	Group  string
	UserID string
	Detail string
}

const historyCapacity = 256

// watchHistory drains both Engines' event channels into a single bounded
// ring buffer for the lifetime of the process. Channels are never closed
// by the Engines (see group.Manager.Subscribe), so these goroutines exit
// only when the process does.
func watchHistory(groups *group.Manager, resets *keyreset.Manager) *util.RingBuffer[HistoryEvent] {
	hist := util.NewRingBuffer[HistoryEvent](historyCapacity)

	groupEvents := groups.Subscribe()
	resetEvents := resets.Subscribe()

	go func() {
		for evt := range groupEvents {
			hist.Push(HistoryEvent{Source: "group", Type: evt.Type, Group: evt.Group, Detail: evt.From})
		}
	}()
	go func() {
		for evt := range resetEvents {
			hist.Push(HistoryEvent{Source: "keyreset", Type: evt.Type, UserID: evt.UserID, Detail: evt.Address})
		}
	}()

	return hist
}

// RecentEvents returns a snapshot of the most recent Group/Key-Reset
// Engine activity, oldest first.
func (s *Session) RecentEvents() []HistoryEvent {
	return s.history.Snapshot()
}

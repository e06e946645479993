package session

import (
	"context"

	"parley/internal/protocol"
	"parley/internal/registry"
)

// Fan-out discipline: the audience is collected as a snapshot of connection
// handles under the registry lock (inside LiveConns/ConnsFor), and the writes
// happen here with the lock long released. TrySend never blocks, and a drop
// for one recipient never affects the rest.

// notifyJoined announces a new admission to everyone except the joiner.
func (m *Manager) notifyJoined(name string, st protocol.Status) {
	frame, err := protocol.EncodeUserJoined(name, st)
	if err != nil {
		m.wslog.LogProtocolError(context.Background(), name, err)
		return
	}
	m.fanout(frame, m.reg.LiveConns(name))
}

// notifyStatusChange announces a presence transition to every connected
// user, the subject included when still connected. Disconnects ride the same
// event with StatusDisconnected.
func (m *Manager) notifyStatusChange(name string, st protocol.Status) {
	frame, err := protocol.EncodeStatusChange(name, st)
	if err != nil {
		m.wslog.LogProtocolError(context.Background(), name, err)
		return
	}
	m.fanout(frame, m.reg.LiveConns())
}

func (m *Manager) fanout(frame []byte, audience []registry.Sender) {
	for _, s := range audience {
		s.TrySend(frame)
	}
}

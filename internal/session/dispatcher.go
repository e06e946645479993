package session

import (
	"context"
	"errors"
	"fmt"

	"parley/internal/observability"
	"parley/internal/protocol"
	"parley/internal/registry"
)

// HandleFrame processes one inbound frame from an admitted client. Malformed
// input is logged and dropped; the connection stays open. Every frame
// refreshes the sender's activity, but only SEND_MESSAGE revives an INACTIVE
// sender, so roster polling cannot defeat inactivity detection.
func (m *Manager) HandleFrame(c *Client, frame []byte, binary bool) {
	sender := c.username

	if !binary {
		observability.FramesDropped.WithLabelValues("text").Inc()
		m.wslog.LogProtocolError(context.Background(), sender, errors.New("text frame on binary protocol"))
		return
	}

	r := protocol.NewReader(frame)
	opByte, err := r.U8()
	if err != nil {
		observability.FramesDropped.WithLabelValues("empty").Inc()
		m.wslog.LogProtocolError(context.Background(), sender, err)
		return
	}
	op := protocol.Opcode(opByte)

	rec, ok := m.reg.Lookup(sender)
	if !ok {
		// Raced with the reaper or a concurrent close; nothing to do.
		observability.FramesDropped.WithLabelValues("no_session").Inc()
		return
	}
	m.reg.Touch(sender)

	if rec.Status == protocol.StatusInactive && op == protocol.OpSendMessage {
		m.reg.UpdateStatus(sender, protocol.StatusActive)
		observability.StatusTransitions.WithLabelValues(protocol.StatusActive.String()).Inc()
		m.notifyStatusChange(sender, protocol.StatusActive)
	}

	observability.FramesTotal.WithLabelValues(op.String()).Inc()
	m.wslog.LogFrame(context.Background(), sender, op.String())

	switch op {
	case protocol.OpListUsers:
		m.handleListUsers(c)
	case protocol.OpGetUserInfo:
		m.handleUserInfo(c, r)
	case protocol.OpChangeStatus:
		m.handleChangeStatus(c, r)
	case protocol.OpSendMessage:
		m.handleSendMessage(c, r)
	case protocol.OpGetHistory:
		m.handleHistory(c, r)
	default:
		observability.FramesDropped.WithLabelValues("unknown_opcode").Inc()
		m.wslog.LogProtocolError(context.Background(), sender, fmt.Errorf("unknown opcode %d", opByte))
	}
}

func (m *Manager) handleListUsers(c *Client) {
	snap := m.reg.Snapshot()
	users := make([]protocol.UserEntry, 0, len(snap))
	for _, rec := range snap {
		users = append(users, protocol.UserEntry{Name: rec.Name, Status: rec.Status})
	}
	frame, err := protocol.EncodeUserList(users)
	if err != nil {
		m.wslog.LogProtocolError(context.Background(), c.username, err)
		return
	}
	c.TrySend(frame)
}

func (m *Manager) handleUserInfo(c *Client, r *protocol.Reader) {
	name, err := r.Str8()
	if err != nil {
		m.dropMalformed(c, err)
		return
	}
	rec, ok := m.reg.Lookup(name)
	if !ok {
		m.sendError(c, protocol.ErrCodeUnknownUser)
		return
	}
	frame, err := protocol.EncodeUserInfo(rec.Name, rec.Status)
	if err != nil {
		m.wslog.LogProtocolError(context.Background(), c.username, err)
		return
	}
	c.TrySend(frame)
}

func (m *Manager) handleChangeStatus(c *Client, r *protocol.Reader) {
	target, err := r.Str8()
	if err != nil {
		m.dropMalformed(c, err)
		return
	}
	stByte, err := r.U8()
	if err != nil {
		m.dropMalformed(c, err)
		return
	}
	st := protocol.Status(stByte)

	// Only self-changes, and only to a live presence state: DISCONNECTED is
	// owned by the close path, never settable by request.
	if target != c.username || !st.Valid() || st == protocol.StatusDisconnected {
		m.sendError(c, protocol.ErrCodeInvalidStatus)
		return
	}

	if _, ok := m.reg.UpdateStatus(c.username, st); !ok {
		m.sendError(c, protocol.ErrCodeInvalidStatus)
		return
	}
	observability.StatusTransitions.WithLabelValues(st.String()).Inc()
	m.notifyStatusChange(c.username, st)
}

func (m *Manager) handleSendMessage(c *Client, r *protocol.Reader) {
	dest, err := r.Str8()
	if err != nil {
		m.dropMalformed(c, err)
		return
	}
	text, err := r.Str8()
	if err != nil {
		m.dropMalformed(c, err)
		return
	}
	if text == "" {
		m.sendError(c, protocol.ErrCodeEmptyMessage)
		return
	}
	text = protocol.TruncateText(text)
	sender := c.username

	if dest == protocol.GeneralChat {
		m.reg.AppendGeneral(sender, text)
		frame, err := protocol.EncodeMessage(sender, text)
		if err != nil {
			m.wslog.LogProtocolError(context.Background(), sender, err)
			return
		}
		m.fanout(frame, m.reg.LiveConns())
		return
	}

	rec, ok := m.reg.Lookup(dest)
	if !ok {
		m.sendError(c, protocol.ErrCodeUnknownUser)
		return
	}
	if rec.Status == protocol.StatusDisconnected || rec.Conn == nil {
		m.sendError(c, protocol.ErrCodeDestOffline)
		return
	}

	m.reg.AppendPrivate(sender, dest, sender, text)
	frame, err := protocol.EncodeMessage(sender, text)
	if err != nil {
		m.wslog.LogProtocolError(context.Background(), sender, err)
		return
	}

	// Audience: recipient plus sender echo, each at most once.
	names := []string{sender}
	if dest != sender {
		names = append(names, dest)
	}
	m.fanout(frame, m.reg.ConnsFor(names...))
}

func (m *Manager) handleHistory(c *Client, r *protocol.Reader) {
	target, err := r.Str8()
	if err != nil {
		m.dropMalformed(c, err)
		return
	}

	var entries []protocol.HistoryEntry
	if target == protocol.GeneralChat {
		entries = m.reg.History(protocol.GeneralChat)
	} else {
		entries = m.reg.History(registry.ChatID(c.username, target))
	}

	frame, err := protocol.EncodeHistory(entries)
	if err != nil {
		m.wslog.LogProtocolError(context.Background(), c.username, err)
		return
	}
	c.TrySend(frame)
}

func (m *Manager) dropMalformed(c *Client, err error) {
	observability.FramesDropped.WithLabelValues("malformed").Inc()
	m.wslog.LogProtocolError(context.Background(), c.username, err)
}

package session

import (
	"log/slog"
	"time"

	"parley/internal/observability"
	"parley/internal/protocol"
)

// Two supervised periodic tasks, started once on the first successful admit
// and stopped by Shutdown. Both compute their candidate sets inside the
// registry lock and notify after release.

func (m *Manager) ensureMonitors() {
	m.monitorOnce.Do(func() {
		m.monitorWG.Add(2)
		go m.inactivityLoop()
		go m.reaperLoop()
		m.log.Info("session monitors started",
			slog.Duration("idle_after", m.cfg.IdleAfter),
			slog.Duration("disconnect_grace", m.cfg.DisconnectGrace),
		)
	})
}

// inactivityLoop promotes idle ACTIVE/BUSY users to INACTIVE. A user already
// INACTIVE is left alone; only a SEND_MESSAGE frame brings them back.
func (m *Manager) inactivityLoop() {
	defer m.monitorWG.Done()

	ticker := time.NewTicker(m.cfg.IdleSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.monitorCtx.Done():
			return
		case <-ticker.C:
			for _, name := range m.reg.SweepInactive(m.cfg.IdleAfter) {
				observability.StatusTransitions.WithLabelValues(protocol.StatusInactive.String()).Inc()
				m.log.Info("user idle", slog.String("username", name))
				m.notifyStatusChange(name, protocol.StatusInactive)
			}
		}
	}
}

// reaperLoop hard-evicts records whose connection has been gone past the
// grace period. Eviction is silent on the wire; the DISCONNECTED status
// change already went out when the connection dropped.
func (m *Manager) reaperLoop() {
	defer m.monitorWG.Done()

	ticker := time.NewTicker(m.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.monitorCtx.Done():
			return
		case <-ticker.C:
			evicted := m.reg.ReapDisconnected(m.cfg.DisconnectGrace)
			for _, name := range evicted {
				observability.EvictedUsers.Inc()
				m.log.Info("user record evicted", slog.String("username", name))
			}
			if len(evicted) > 0 {
				observability.KnownUsers.Set(float64(m.reg.Size()))
			}
		}
	}
}

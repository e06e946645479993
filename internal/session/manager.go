// Package session implements the chat engine's connection lifecycle: the
// session manager that admits and releases connections, the per-frame
// protocol dispatcher, the event notifier, and the two background monitors
// (inactivity promotion and disconnect reaping).
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"parley/internal/observability"
	"parley/internal/protocol"
	"parley/internal/registry"
)

// Config tunes the session engine. Zero values fall back to the protocol's
// default timings.
type Config struct {
	// IdleAfter is how long an ACTIVE or BUSY user may go without sending
	// a frame before being promoted to INACTIVE.
	IdleAfter time.Duration

	// IdleSweepInterval is the inactivity monitor's tick period.
	IdleSweepInterval time.Duration

	// DisconnectGrace is how long a DISCONNECTED record is retained for
	// possible reconnect before the reaper evicts it.
	DisconnectGrace time.Duration

	// ReapInterval is the reaper's tick period.
	ReapInterval time.Duration

	// MaxConnections caps concurrently admitted connections.
	MaxConnections int
}

const (
	defaultIdleAfter         = 60 * time.Second
	defaultIdleSweepInterval = 5 * time.Second
	defaultDisconnectGrace   = 5 * time.Minute
	defaultReapInterval      = 60 * time.Second
	defaultMaxConnections    = 10000
)

func (c Config) withDefaults() Config {
	if c.IdleAfter <= 0 {
		c.IdleAfter = defaultIdleAfter
	}
	if c.IdleSweepInterval <= 0 {
		c.IdleSweepInterval = defaultIdleSweepInterval
	}
	if c.DisconnectGrace <= 0 {
		c.DisconnectGrace = defaultDisconnectGrace
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = defaultReapInterval
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = defaultMaxConnections
	}
	return c
}

// ErrServerFull rejects admissions past the connection cap.
var ErrServerFull = errors.New("session: server connection limit reached")

// Manager owns the registry and every live client. It is the single entry
// point the transport layer talks to: OnOpen, HandleFrame (via the client's
// read pump), OnClose, Shutdown.
type Manager struct {
	cfg   Config
	log   *slog.Logger
	wslog *observability.WSLogger
	reg   *registry.Registry

	mu      sync.Mutex
	clients map[*Client]struct{}

	monitorOnce sync.Once
	monitorCtx  context.Context
	stopMon     context.CancelFunc
	monitorWG   sync.WaitGroup

	shutdownOnce sync.Once
}

// NewManager builds a session manager around a fresh registry.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:        cfg.withDefaults(),
		log:        logger,
		wslog:      observability.NewWSLogger(logger),
		reg:        registry.New(),
		clients:    make(map[*Client]struct{}),
		monitorCtx: ctx,
		stopMon:    cancel,
	}
}

// Registry exposes the engine's state store for health reporting.
func (m *Manager) Registry() *registry.Registry { return m.reg }

// OnOpen admits a freshly upgraded connection under the claimed name. On
// rejection it sends a brief text diagnostic, closes the connection, and
// returns the admission error; the caller must not start pumps. The upgrade
// layer has already validated the name, this repeats it for defense in depth.
func (m *Manager) OnOpen(conn *websocket.Conn, claimedName, remoteIP string) (*Client, error) {
	client := newClient(m, conn, remoteIP)

	adm, err := m.admit(client, claimedName, remoteIP)
	if err != nil {
		var diag, reason string
		switch {
		case errors.Is(err, registry.ErrInvalidName):
			diag, reason = "Error: invalid username.", "invalid name"
		case errors.Is(err, registry.ErrDuplicate):
			diag, reason = "Error: username already in use.", "duplicate"
		default:
			diag, reason = "Error: connection refused.", "refused"
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(diag))
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
			time.Now().Add(writeWait),
		)
		_ = conn.Close()
		return nil, err
	}

	m.wslog.LogConnect(context.Background(), claimedName, remoteIP, !adm.NewUser)
	return client, nil
}

// admit runs the transport-free half of admission: registry decision,
// bookkeeping, monitor start, and the USER_JOINED fan-out. Split from
// OnOpen so the engine is testable with channel-only clients.
func (m *Manager) admit(client *Client, claimedName, remoteIP string) (registry.Admission, error) {
	m.mu.Lock()
	if len(m.clients) >= m.cfg.MaxConnections {
		m.mu.Unlock()
		return registry.Admission{}, ErrServerFull
	}
	m.mu.Unlock()

	adm, err := m.reg.Admit(claimedName, client, remoteIP)
	if err != nil {
		return registry.Admission{}, err
	}
	client.username = claimedName

	m.mu.Lock()
	m.clients[client] = struct{}{}
	m.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	observability.KnownUsers.Set(float64(m.reg.Size()))

	// The monitors idle until the first user ever shows up.
	m.ensureMonitors()

	m.notifyJoined(claimedName, adm.Status)
	return adm, nil
}

// OnClose releases a client's session: the record goes DISCONNECTED (and is
// retained for the grace period), and everyone still connected is told via
// USER_STATUS_CHANGE(DISCONNECTED). Safe to call for clients that were never
// admitted.
func (m *Manager) OnClose(client *Client, reason string) {
	m.mu.Lock()
	_, tracked := m.clients[client]
	delete(m.clients, client)
	m.mu.Unlock()

	if !tracked {
		return
	}
	observability.WebSocketConnectionsTotal.Dec()

	name, ok := m.reg.Detach(client)
	if !ok {
		return
	}
	m.wslog.LogDisconnect(context.Background(), name, reason)
	observability.StatusTransitions.WithLabelValues(protocol.StatusDisconnected.String()).Inc()
	m.notifyStatusChange(name, protocol.StatusDisconnected)
}

// ConnectedCount returns the number of live clients.
func (m *Manager) ConnectedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Shutdown stops both monitors and closes every live connection with a
// going-away frame. The registry is left as-is; the process is exiting and
// state does not survive restart.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.stopMon()

		done := make(chan struct{})
		go func() {
			m.monitorWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
		}

		m.mu.Lock()
		clients := make([]*Client, 0, len(m.clients))
		for c := range m.clients {
			clients = append(clients, c)
		}
		m.clients = make(map[*Client]struct{})
		m.mu.Unlock()

		for _, c := range clients {
			c.closeWithReason("server shutting down")
		}
		m.log.Info("session manager stopped", slog.Int("connections_closed", len(clients)))
	})
	return nil
}

func (m *Manager) sendError(c *Client, code protocol.ErrorCode) {
	observability.WireErrors.WithLabelValues(fmt.Sprintf("%d", code)).Inc()
	c.TrySend(protocol.EncodeError(code))
}

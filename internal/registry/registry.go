// Package registry is the authoritative in-memory store for the chat engine:
// known users, their presence and connection handles, the retained-status
// side table, and the per-chat message history. One exclusive mutex guards
// all of it so that admit/detach and their side-table updates are single
// atomic transitions. Nothing here touches the transport; callers collect
// connection handles under the lock and write after release.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"parley/internal/protocol"
)

// Sender delivers one binary frame to a connected peer without blocking.
// The registry stores it as an opaque identity; the session layer implements
// it with a buffered channel push.
type Sender interface {
	TrySend(frame []byte) bool
}

// Admission errors returned by Admit.
var (
	ErrInvalidName = errors.New("registry: invalid username")
	ErrDuplicate   = errors.New("registry: username already connected")
)

// Record is a caller-facing snapshot of one user row. Conn is nil exactly
// when Status is StatusDisconnected.
type Record struct {
	Name       string
	UUID       string
	Status     protocol.Status
	Conn       Sender
	LastActive time.Time
	RemoteIP   string
}

// Admission is the successful outcome of Admit.
type Admission struct {
	UUID    string
	Status  protocol.Status
	NewUser bool
}

type record struct {
	name       string
	uuid       string
	status     protocol.Status
	conn       Sender
	lastActive time.Time
	remoteIP   string
}

// Registry owns all mutable chat-engine state.
type Registry struct {
	mu         sync.Mutex
	users      map[string]*record
	lastStatus map[string]protocol.Status
	history    map[string][]protocol.HistoryEntry

	// now is replaceable in tests to backdate activity.
	now func() time.Time
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		users:      make(map[string]*record),
		lastStatus: make(map[string]protocol.Status),
		history:    make(map[string][]protocol.HistoryEntry),
		now:        time.Now,
	}
}

// Admit decides new-user / reconnect / reject in one atomic step.
//
// A name that fails validation is rejected with ErrInvalidName. An existing
// record with a live connection is rejected with ErrDuplicate. A record left
// behind by a dropped connection is revived: the new connection is attached
// and the status forced back to ACTIVE regardless of what it was before the
// disconnect.
func (r *Registry) Admit(name string, conn Sender, ip string) (Admission, error) {
	if !protocol.ValidUsername(name) {
		return Admission{}, ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[name]
	if !ok {
		u = &record{
			name:       name,
			uuid:       uuid.NewString(),
			status:     protocol.StatusActive,
			conn:       conn,
			lastActive: r.now(),
			remoteIP:   ip,
		}
		r.users[name] = u
		r.lastStatus[name] = protocol.StatusActive
		return Admission{UUID: u.uuid, Status: u.status, NewUser: true}, nil
	}

	if u.conn != nil {
		return Admission{}, ErrDuplicate
	}

	// Reconnect within the grace window. Reconnect forces ACTIVE even when
	// the retained status was BUSY or INACTIVE; the side table keeps the
	// pre-disconnect status for diagnostics.
	u.conn = conn
	u.status = protocol.StatusActive
	u.lastActive = r.now()
	u.remoteIP = ip
	return Admission{UUID: u.uuid, Status: u.status, NewUser: false}, nil
}

// Detach locates the record holding conn, marks it DISCONNECTED and clears
// the handle. The record itself is retained for the reaper's grace period.
// Idempotent: a handle that is not attached anywhere returns ok=false.
func (r *Registry) Detach(conn Sender) (name string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.conn == conn {
			u.conn = nil
			u.status = protocol.StatusDisconnected
			// Stamp the drop time so the reaper's grace window starts at
			// the disconnect, not at the user's last frame.
			u.lastActive = r.touchTime(u)
			return u.name, true
		}
	}
	return "", false
}

// Lookup returns a snapshot of the named record.
func (r *Registry) Lookup(name string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[name]
	if !ok {
		return Record{}, false
	}
	return snapshotOf(u), true
}

// UpdateStatus sets the user's status, refreshes last-activity, and updates
// the retained-status table. Returns the previous status.
func (r *Registry) UpdateStatus(name string, st protocol.Status) (prev protocol.Status, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[name]
	if !ok {
		return 0, false
	}
	prev = u.status
	u.status = st
	u.lastActive = r.touchTime(u)
	if st != protocol.StatusDisconnected {
		r.lastStatus[name] = st
	}
	return prev, true
}

// Touch refreshes the user's last-activity timestamp only.
func (r *Registry) Touch(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[name]
	if !ok {
		return false
	}
	u.lastActive = r.touchTime(u)
	return true
}

// RetainedStatus returns the last non-DISCONNECTED status the user held,
// preserved across the DISCONNECTED window and across reconnects. Kept for
// diagnostics; the reconnect policy ignores it and forces ACTIVE.
func (r *Registry) RetainedStatus(name string) (protocol.Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.lastStatus[name]
	return st, ok
}

// Snapshot copies every record, ordered by name, for roster responses. The
// copy lets fan-out and encoding happen without the lock.
func (r *Registry) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, snapshotOf(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LiveConns returns the connection handles of every connected user except
// those named in exclude. This is the audience-collection step of a fan-out.
func (r *Registry) LiveConns(exclude ...string) []Sender {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Sender, 0, len(r.users))
	for _, u := range r.users {
		if u.conn == nil {
			continue
		}
		skip := false
		for _, name := range exclude {
			if u.name == name {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, u.conn)
		}
	}
	return out
}

// ConnsFor returns the live handles of the named users, skipping any that
// are unknown or disconnected. Used for private-message audiences.
func (r *Registry) ConnsFor(names ...string) []Sender {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Sender, 0, len(names))
	for _, name := range names {
		if u, ok := r.users[name]; ok && u.conn != nil {
			out = append(out, u.conn)
		}
	}
	return out
}

// Size returns the number of known records, connected or not.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// SweepInactive transitions every connected ACTIVE or BUSY user who has been
// idle for at least idleAfter to INACTIVE, without touching last-activity,
// and returns the affected names. Users already INACTIVE are not revisited,
// so each idle spell produces exactly one transition.
func (r *Registry) SweepInactive(idleAfter time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var flipped []string
	for _, u := range r.users {
		if u.conn == nil {
			continue
		}
		if u.status != protocol.StatusActive && u.status != protocol.StatusBusy {
			continue
		}
		if now.Sub(u.lastActive) >= idleAfter {
			u.status = protocol.StatusInactive
			r.lastStatus[u.name] = protocol.StatusInactive
			flipped = append(flipped, u.name)
		}
	}
	sort.Strings(flipped)
	return flipped
}

// ReapDisconnected hard-evicts every record that has been DISCONNECTED for
// at least grace, dropping its retained status with it. Returns the evicted
// names.
func (r *Registry) ReapDisconnected(grace time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var evicted []string
	for name, u := range r.users {
		if u.conn != nil {
			continue
		}
		if now.Sub(u.lastActive) >= grace {
			delete(r.users, name)
			delete(r.lastStatus, name)
			evicted = append(evicted, name)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// touchTime keeps last-activity monotonically non-decreasing even if the
// wall clock steps backwards.
func (r *Registry) touchTime(u *record) time.Time {
	now := r.now()
	if now.Before(u.lastActive) {
		return u.lastActive
	}
	return now
}

func snapshotOf(u *record) Record {
	return Record{
		Name:       u.name,
		UUID:       u.uuid,
		Status:     u.status,
		Conn:       u.conn,
		LastActive: u.lastActive,
		RemoteIP:   u.remoteIP,
	}
}

package app

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Ringer/internal/core"
	"github.com/dkeye/Ringer/internal/domain"
)

type registryEntry struct {
	Conn core.SignalConnection
	Info domain.Connection
}

// Member pairs a registered user with its live connection.
type Member struct {
	User domain.UserID
	Conn core.SignalConnection
}

// Snapshot is the registry state right after a mutation.
type Snapshot struct {
	Online  []domain.UserID
	Members []Member
}

// ChangeFunc observes registry mutations. It runs under the registry lock, so
// consecutive calls see mutations in the order they happened. It must not block
// and must not call back into the Registry.
type ChangeFunc func(Snapshot)

// Registry maps each user to exactly one live connection.
type Registry struct {
	mu       sync.RWMutex
	conns    map[domain.UserID]*registryEntry
	onChange ChangeFunc
	now      func() time.Time
}

func NewRegistry(onChange ChangeFunc) *Registry {
	return &Registry{
		conns:    make(map[domain.UserID]*registryEntry),
		onChange: onChange,
		now:      time.Now,
	}
}

// Register maps uid to conn. A previous mapping is replaced silently and its
// handle is returned without being closed.
func (r *Registry) Register(uid domain.UserID, conn core.SignalConnection) (replaced core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.conns[uid]; ok {
		replaced = prev.Conn
	}
	r.conns[uid] = &registryEntry{
		Conn: conn,
		Info: domain.Connection{User: uid, ID: conn.ID(), ConnectedAt: r.now()},
	}

	l := log.Info().Str("module", "app.registry").Str("uid", uid.String()).Str("conn", conn.ID().String())
	if replaced != nil {
		l = l.Str("replaced", replaced.ID().String())
	}
	l.Msg("registered")

	r.notifyLocked()
	return replaced
}

// Unregister removes uid only while conn is still its current handle.
func (r *Registry) Unregister(uid domain.UserID, conn core.SignalConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[uid]
	if !ok || e.Conn != conn {
		log.Debug().Str("module", "app.registry").Str("uid", uid.String()).Str("conn", conn.ID().String()).Msg("stale unregister ignored")
		return false
	}
	delete(r.conns, uid)
	log.Info().Str("module", "app.registry").Str("uid", uid.String()).Str("conn", conn.ID().String()).Msg("unregistered")

	r.notifyLocked()
	return true
}

func (r *Registry) Lookup(uid domain.UserID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[uid]; ok {
		return e.Conn, true
	}
	return nil, false
}

// Online returns the presence set in ascending order.
func (r *Registry) Online() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineLocked()
}

// Connections returns metadata for every live connection, ordered by user.
func (r *Registry) Connections() []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := lo.MapToSlice(r.conns, func(_ domain.UserID, e *registryEntry) domain.Connection {
		return e.Info
	})
	slices.SortFunc(out, func(a, b domain.Connection) int {
		return cmp.Compare(a.User, b.User)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) onlineLocked() []domain.UserID {
	ids := lo.Keys(r.conns)
	slices.Sort(ids)
	return ids
}

func (r *Registry) notifyLocked() {
	if r.onChange == nil {
		return
	}
	online := r.onlineLocked()
	members := lo.Map(online, func(uid domain.UserID, _ int) Member {
		return Member{User: uid, Conn: r.conns[uid].Conn}
	})
	r.onChange(Snapshot{Online: online, Members: members})
}

package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Ringer/internal/core"
	"github.com/dkeye/Ringer/internal/protocol"
)

// Presence publishes the full online list to every registered connection.
type Presence struct {
	Policy Policy
}

func NewPresence(policy Policy) *Presence {
	return &Presence{Policy: policy}
}

// Broadcast is a ChangeFunc. The frame is encoded once and shared.
func (p *Presence) Broadcast(s Snapshot) {
	raw, err := protocol.OnlineUsers(s.Online)
	if err != nil {
		log.Error().Str("module", "app.presence").Err(err).Msg("encode presence")
		return
	}
	frame := core.Frame(raw)

	var failed int
	for _, m := range s.Members {
		if err := deliver(p.Policy, "app.presence", m.User, m.Conn, frame); err != nil {
			failed++
		}
	}
	log.Debug().Str("module", "app.presence").Int("online", len(s.Online)).Int("failed", failed).Msg("presence broadcast")
}

package orch

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Ringer/internal/app"
	"github.com/dkeye/Ringer/internal/core"
	"github.com/dkeye/Ringer/internal/domain"
	"github.com/dkeye/Ringer/internal/protocol"
)

// Orchestrator is the single entry point the transport talks to.
type Orchestrator struct {
	Registry *app.Registry
	Relay    *app.Relay
	Limiter  *app.RateLimiter
}

func New(reg *app.Registry, relay *app.Relay, limiter *app.RateLimiter) *Orchestrator {
	return &Orchestrator{Registry: reg, Relay: relay, Limiter: limiter}
}

// OnFrame handles one inbound frame from uid's connection.
func (o *Orchestrator) OnFrame(uid domain.UserID, conn core.SignalConnection, data core.Frame) {
	l := log.With().Str("module", "orch").Str("uid", uid.String()).Str("conn", conn.ID().String()).Logger()

	if !o.Limiter.Allow(uid) {
		l.Warn().Msg("rate limited")
		o.Relay.Reply(uid, conn, protocol.MsgRateLimited)
		return
	}

	sig, err := protocol.DecodeSignal(data)
	switch {
	case err == nil, errors.Is(err, protocol.ErrNoRecipient):
		// Relay reports the missing recipient itself.
	case errors.Is(err, protocol.ErrUnknownType):
		l.Debug().Str("type", string(sig.Type)).Msg("unknown frame type ignored")
		return
	default:
		l.Warn().Err(err).Msg("malformed frame")
		o.Relay.Reply(uid, conn, protocol.MsgMalformed)
		return
	}

	if err := o.Relay.Relay(uid, conn, sig); err != nil {
		l.Debug().Err(err).Str("type", string(sig.Type)).Msg("relay")
	}
}

package app

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Ringer/internal/core"
	"github.com/dkeye/Ringer/internal/domain"
	"github.com/dkeye/Ringer/internal/protocol"
)

var ErrRecipientOffline = errors.New("recipient not online")

// Relay forwards signaling messages between two registered users. It keeps no
// per-call state.
type Relay struct {
	Registry *Registry
	Policy   Policy
}

func NewRelay(reg *Registry, policy Policy) *Relay {
	return &Relay{Registry: reg, Policy: policy}
}

// Relay routes sig from the sender to sig.To. Addressing failures are reported
// to the sender as call-error where the event requires it and returned.
func (r *Relay) Relay(from domain.UserID, sender core.SignalConnection, sig protocol.Signal) error {
	l := log.With().Str("module", "app.relay").Str("uid", from.String()).Str("type", string(sig.Type)).Logger()

	if sig.To == "" {
		r.reply(from, sender, protocol.MsgNoRecipient, "")
		l.Debug().Msg("no recipient")
		return protocol.ErrNoRecipient
	}

	target, ok := r.Registry.Lookup(sig.To)
	if !ok {
		if sig.Type.Establishing() {
			r.reply(from, sender, protocol.MsgUserOffline, sig.To)
		}
		l.Debug().Str("to", sig.To.String()).Msg("recipient offline")
		return fmt.Errorf("%w: %s", ErrRecipientOffline, sig.To)
	}

	raw, err := protocol.Forward(sig.Type, from, sig.Body)
	if err != nil {
		return err
	}
	if err := deliver(r.Policy, "app.relay", sig.To, target, core.Frame(raw)); err != nil {
		l.Warn().Err(err).Str("to", sig.To.String()).Msg("forward failed")
		return fmt.Errorf("forward to %s: %w", sig.To, err)
	}
	l.Debug().Str("to", sig.To.String()).Msg("forwarded")
	return nil
}

// Reply sends a call-error to a single connection.
func (r *Relay) Reply(uid domain.UserID, conn core.SignalConnection, message string) {
	r.reply(uid, conn, message, "")
}

func (r *Relay) reply(uid domain.UserID, conn core.SignalConnection, message string, recipient domain.UserID) {
	raw, err := protocol.CallError(message, recipient)
	if err != nil {
		log.Error().Str("module", "app.relay").Err(err).Msg("encode call-error")
		return
	}
	_ = deliver(r.Policy, "app.relay", uid, conn, core.Frame(raw))
}

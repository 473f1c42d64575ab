package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Ringer/internal/core"
	"github.com/dkeye/Ringer/internal/domain"
)

// Connect registers conn as uid's live connection. Presence is published by the
// registry hook.
func (o *Orchestrator) Connect(uid domain.UserID, conn core.SignalConnection) {
	if replaced := o.Registry.Register(uid, conn); replaced != nil {
		log.Info().Str("module", "orch").Str("uid", uid.String()).Str("replaced", replaced.ID().String()).Msg("user reconnected")
	}
}

// Disconnect removes conn if it is still uid's current connection.
func (o *Orchestrator) Disconnect(uid domain.UserID, conn core.SignalConnection) {
	if o.Registry.Unregister(uid, conn) {
		o.Limiter.Forget(uid)
	}
}

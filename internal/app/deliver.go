package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Ringer/internal/core"
	"github.com/dkeye/Ringer/internal/domain"
)

// deliver enqueues frame on conn and applies policy when the queue is full.
func deliver(policy Policy, module string, uid domain.UserID, conn core.SignalConnection, frame core.Frame) error {
	err := conn.TrySend(frame)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrBackpressure) || policy == nil {
		return err
	}

	switch policy.OnBackPressure(uid, conn) {
	case KickConnection:
		log.Warn().Str("module", module).Str("uid", uid.String()).Str("conn", conn.ID().String()).Msg("send queue full, closing connection")
		conn.Close()
	case DropFrame, NoAction:
		log.Warn().Str("module", module).Str("uid", uid.String()).Str("conn", conn.ID().String()).Msg("send queue full, frame dropped")
	}
	return err
}

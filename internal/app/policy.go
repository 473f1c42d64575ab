package app

import (
	"fmt"

	"github.com/dkeye/Ringer/internal/core"
	"github.com/dkeye/Ringer/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickConnection
)

// Policy decides what happens to a connection whose send queue is full.
type Policy interface {
	OnBackPressure(uid domain.UserID, conn core.SignalConnection) BackpressureAction
}

// DropPolicy skips the frame and keeps the connection.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.UserID, core.SignalConnection) BackpressureAction {
	return DropFrame
}

// KickPolicy closes the slow connection. The transport then unregisters it.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(domain.UserID, core.SignalConnection) BackpressureAction {
	return KickConnection
}

func PolicyFromString(name string) (Policy, error) {
	switch name {
	case "", "drop":
		return DropPolicy{}, nil
	case "kick":
		return KickPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}

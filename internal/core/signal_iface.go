//go:generate go run go.uber.org/mock/mockgen -source=signal_iface.go -destination=../mocks/mock_signal.go -package=mocks
package core

import (
	"errors"

	"github.com/dkeye/Ringer/internal/domain"
)

// Frame is a raw encoded signaling message.
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// SignalConnection abstracts for a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
//
// TrySend never blocks: it enqueues on the connection's delivery queue or
// returns ErrBackpressure / ErrConnClosed.
type SignalConnection interface {
	ID() domain.ConnID
	TrySend(Frame) error
	Close()
}

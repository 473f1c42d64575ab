//go:generate go run go.uber.org/mock/mockgen -source=iface.go -destination=../mocks/mock_call.go -package=mocks
package call

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Ringer/internal/domain"
	"github.com/dkeye/Ringer/internal/protocol"
)

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// LocalMedia is the captured microphone and camera for one call.
type LocalMedia interface {
	SetEnabled(kind MediaKind, enabled bool)
	Stop()
}

// MediaSource opens the capture devices.
type MediaSource interface {
	Acquire(ctx context.Context) (LocalMedia, error)
}

// PeerHandlers are invoked from the peer's own goroutines.
type PeerHandlers struct {
	OnCandidate   func(candidate json.RawMessage)
	OnRemoteTrack func(streamID, trackID string)
	OnFailed      func(err error)
}

// Peer is one negotiated peer-to-peer connection.
type Peer interface {
	CreateOffer(ctx context.Context) (json.RawMessage, error)
	AcceptOffer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error)
	ApplyAnswer(answer json.RawMessage) error
	AddCandidate(candidate json.RawMessage) error
	Close() error
}

type PeerFactory interface {
	NewPeer(local LocalMedia, h PeerHandlers) (Peer, error)
}

// Signaler delivers a relayed event to another user.
type Signaler interface {
	Signal(ctx context.Context, ev protocol.EventType, to domain.UserID, body json.RawMessage) error
}

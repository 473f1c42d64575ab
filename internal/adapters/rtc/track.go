package rtc

import (
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Ringer/internal/call"
)

type TrackState int32

const (
	TrackStateLive TrackState = iota
	TrackStateMuted
	TrackStateStopped
)

// localTrack is one captured track. The pump skips muted tracks and exits
// once the track is stopped.
type localTrack struct {
	kind  call.MediaKind
	Track *webrtc.TrackLocalStaticSample
	state atomic.Int32 // Zero by default (TrackStateLive)
}

func newLocalTrack(kind call.MediaKind, track *webrtc.TrackLocalStaticSample) *localTrack {
	return &localTrack{kind: kind, Track: track}
}

func (t *localTrack) State() TrackState {
	return TrackState(t.state.Load())
}

// setEnabled flips live and muted. A stopped track stays stopped.
func (t *localTrack) setEnabled(enabled bool) {
	from, to := TrackStateMuted, TrackStateLive
	if !enabled {
		from, to = TrackStateLive, TrackStateMuted
	}
	t.state.CompareAndSwap(int32(from), int32(to))
}

func (t *localTrack) markStopped() {
	t.state.Store(int32(TrackStateStopped))
}

package call

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/dkeye/Ringer/internal/domain"
	"github.com/dkeye/Ringer/internal/protocol"
)

// maxIdleCandidates bounds candidates held before any session exists.
const maxIdleCandidates = 64

// Transition is the pure call state machine. It never mutates s. A returned
// error leaves the state unchanged and produces no effects; ErrIgnored marks
// events that are simply not relevant to the current session.
func Transition(s Snapshot, ev Event) (Snapshot, []Effect, error) {
	switch ev := ev.(type) {
	case Initiate:
		return initiate(s, ev)
	case Incoming:
		return incoming(s, ev)
	case Accept:
		return accept(s)
	case Reject:
		return reject(s)
	case Hangup:
		return hangup(s)
	case Answered:
		return answered(s, ev)
	case CandidateArrived:
		return candidateArrived(s, ev)
	case PeerEnded:
		return peerEnded(s, ev)
	case PeerRejected:
		return peerRejected(s, ev)
	case CallError:
		return callError(s, ev)
	case PresenceChanged:
		return presenceChanged(s, ev)
	case MediaReady:
		return mediaReady(s, ev)
	case Failed:
		return failed(s, ev)
	case Timeout:
		return timeout(s, ev)
	case LocalCandidate:
		return localCandidate(s, ev)
	case RemoteTrack:
		return remoteTrack(s, ev)
	case ToggleMic:
		return toggle(s, KindAudio)
	case ToggleVideo:
		return toggle(s, KindVideo)
	default:
		return s, nil, fmt.Errorf("%w: %T", ErrInvalidTransition, ev)
	}
}

func initiate(s Snapshot, ev Initiate) (Snapshot, []Effect, error) {
	if s.State != StateIdle {
		return s, nil, ErrBusy
	}
	if ev.Peer == "" {
		return s, nil, fmt.Errorf("%w: no peer", ErrInvalidTransition)
	}
	next := Snapshot{
		State:   StateOutgoingRinging,
		Role:    RoleCaller,
		Peer:    ev.Peer,
		Gen:     s.Gen + 1,
		Pending: candidatesFrom(s.Pending, ev.Peer),
	}
	return next, []Effect{{Kind: EffectAcquireMedia, Gen: next.Gen}}, nil
}

func incoming(s Snapshot, ev Incoming) (Snapshot, []Effect, error) {
	if ev.From == "" {
		return s, nil, fmt.Errorf("%w: incoming call without sender", ErrInvalidTransition)
	}
	if s.State != StateIdle {
		// A repeated offer from the current peer is not a new call. Glare
		// (both sides calling) still falls through to a rejection.
		if ev.From == s.Peer && s.State != StateOutgoingRinging {
			return s, nil, ErrIgnored
		}
		// One call at a time: the newcomer is turned away.
		return s, []Effect{
			send(protocol.EventRejectCall, ev.From, nil),
			notify(NoticeBusy, ev.From, ""),
		}, nil
	}
	next := Snapshot{
		State:    StateIncomingRinging,
		Role:     RoleCallee,
		Peer:     ev.From,
		Gen:      s.Gen + 1,
		Offer:    ev.Offer,
		Signaled: true,
		Pending:  candidatesFrom(s.Pending, ev.From),
	}
	return next, []Effect{
		{Kind: EffectArmTimer, Gen: next.Gen},
		notify(NoticeIncoming, ev.From, ""),
	}, nil
}

func accept(s Snapshot) (Snapshot, []Effect, error) {
	if s.State != StateIncomingRinging {
		return s, nil, fmt.Errorf("%w: accept in %s", ErrInvalidTransition, s.State)
	}
	next := s
	next.State = StateActive
	return next, []Effect{
		{Kind: EffectDisarmTimer},
		{Kind: EffectAcquireMedia, Gen: next.Gen},
	}, nil
}

func reject(s Snapshot) (Snapshot, []Effect, error) {
	if s.State != StateIncomingRinging {
		return s, nil, fmt.Errorf("%w: reject in %s", ErrInvalidTransition, s.State)
	}
	next, effects := toIdle(s,
		send(protocol.EventRejectCall, s.Peer, nil),
		notify(NoticeEnded, s.Peer, MsgCallRejected),
	)
	return next, effects, nil
}

func hangup(s Snapshot) (Snapshot, []Effect, error) {
	if s.State == StateIdle {
		return s, nil, ErrIgnored
	}
	var extra []Effect
	if s.Signaled {
		extra = append(extra, send(protocol.EventEndCall, s.Peer, nil))
	}
	extra = append(extra, notify(NoticeEnded, s.Peer, MsgCallEnded))
	next, effects := toIdle(s, extra...)
	return next, effects, nil
}

func answered(s Snapshot, ev Answered) (Snapshot, []Effect, error) {
	if s.State != StateOutgoingRinging || ev.From != s.Peer || !s.Media {
		return s, nil, ErrIgnored
	}
	next := s
	next.State = StateActive
	next.RemoteApplied = true
	next.Pending = nil

	effects := []Effect{
		{Kind: EffectDisarmTimer},
		{Kind: EffectApplyAnswer, Body: ev.Answer},
	}
	if len(s.Pending) > 0 {
		effects = append(effects, addCandidates(s.Pending))
	}
	effects = append(effects, notify(NoticeConnected, s.Peer, ""))
	return next, effects, nil
}

func candidateArrived(s Snapshot, ev CandidateArrived) (Snapshot, []Effect, error) {
	c := Candidate{From: ev.From, Body: ev.Candidate}
	next := s

	if s.State == StateIdle {
		// The offer may still be on its way; keep a bounded backlog.
		pending := append(slices.Clip(s.Pending), c)
		if len(pending) > maxIdleCandidates {
			pending = pending[len(pending)-maxIdleCandidates:]
		}
		next.Pending = pending
		return next, nil, nil
	}
	if ev.From != s.Peer {
		return s, nil, ErrIgnored
	}
	if s.RemoteApplied {
		return s, []Effect{addCandidates([]Candidate{c})}, nil
	}
	next.Pending = append(slices.Clip(s.Pending), c)
	return next, nil, nil
}

func peerEnded(s Snapshot, ev PeerEnded) (Snapshot, []Effect, error) {
	if s.State == StateIdle || ev.From != s.Peer {
		return s, nil, ErrIgnored
	}
	next, effects := toIdle(s, notify(NoticeEnded, s.Peer, MsgCallEnded))
	return next, effects, nil
}

func peerRejected(s Snapshot, ev PeerRejected) (Snapshot, []Effect, error) {
	if s.State == StateIdle || ev.From != s.Peer {
		return s, nil, ErrIgnored
	}
	next, effects := toIdle(s, notify(NoticeRejected, s.Peer, MsgCallRejected))
	return next, effects, nil
}

func callError(s Snapshot, ev CallError) (Snapshot, []Effect, error) {
	fatal := s.State == StateOutgoingRinging ||
		(s.State != StateIdle && ev.Recipient != "" && ev.Recipient == s.Peer)
	if !fatal {
		return s, []Effect{notify(NoticeError, ev.Recipient, ev.Message)}, nil
	}
	next, effects := toIdle(s, notify(NoticeError, s.Peer, ev.Message))
	return next, effects, nil
}

func presenceChanged(s Snapshot, ev PresenceChanged) (Snapshot, []Effect, error) {
	if s.State == StateIdle || lo.Contains(ev.Online, s.Peer) {
		return s, nil, ErrIgnored
	}
	next, effects := toIdle(s, notify(NoticeEnded, s.Peer, MsgPeerOffline))
	return next, effects, nil
}

func mediaReady(s Snapshot, ev MediaReady) (Snapshot, []Effect, error) {
	if ev.Gen != s.Gen || s.Media {
		return s, nil, ErrIgnored
	}
	next := s
	next.Media = true

	var effects []Effect
	switch {
	case s.State == StateOutgoingRinging:
		next.Signaled = true
		effects = append(effects,
			Effect{Kind: EffectSendOffer, To: s.Peer},
			Effect{Kind: EffectArmTimer, Gen: s.Gen},
			notify(NoticeRinging, s.Peer, ""),
		)
	case s.State == StateActive && s.Role == RoleCallee:
		next.RemoteApplied = true
		next.Pending = nil
		effects = append(effects, Effect{Kind: EffectSendAnswer, To: s.Peer, Body: s.Offer})
		if len(s.Pending) > 0 {
			effects = append(effects, addCandidates(s.Pending))
		}
		effects = append(effects, notify(NoticeConnected, s.Peer, ""))
	default:
		return s, nil, ErrIgnored
	}

	// Mute toggled while capture was starting.
	if s.MicMuted {
		effects = append(effects, Effect{Kind: EffectSetTrack, Media: KindAudio, Enabled: false})
	}
	if s.VideoMuted {
		effects = append(effects, Effect{Kind: EffectSetTrack, Media: KindVideo, Enabled: false})
	}
	return next, effects, nil
}

func failed(s Snapshot, ev Failed) (Snapshot, []Effect, error) {
	if s.State == StateIdle || ev.Gen != s.Gen {
		return s, nil, ErrIgnored
	}
	msg := "call failed"
	if ev.Err != nil {
		msg = ev.Err.Error()
	}
	var extra []Effect
	if !ev.Media && s.Signaled {
		extra = append(extra, send(protocol.EventEndCall, s.Peer, nil))
	}
	extra = append(extra, notify(NoticeError, s.Peer, msg))
	next, effects := toIdle(s, extra...)
	return next, effects, nil
}

func timeout(s Snapshot, ev Timeout) (Snapshot, []Effect, error) {
	if ev.Gen != s.Gen || !s.State.ringing() {
		return s, nil, ErrIgnored
	}
	var extra []Effect
	switch s.State {
	case StateOutgoingRinging:
		if s.Signaled {
			extra = append(extra, send(protocol.EventEndCall, s.Peer, nil))
		}
	case StateIncomingRinging:
		extra = append(extra, send(protocol.EventRejectCall, s.Peer, nil))
	}
	extra = append(extra, notify(NoticeTimedOut, s.Peer, MsgTimedOut))
	next, effects := toIdle(s, extra...)
	return next, effects, nil
}

func localCandidate(s Snapshot, ev LocalCandidate) (Snapshot, []Effect, error) {
	if s.State == StateIdle || ev.Gen != s.Gen {
		return s, nil, ErrIgnored
	}
	return s, []Effect{send(protocol.EventICECandidate, s.Peer, ev.Candidate)}, nil
}

func remoteTrack(s Snapshot, ev RemoteTrack) (Snapshot, []Effect, error) {
	if s.State != StateActive || ev.Gen != s.Gen {
		return s, nil, ErrIgnored
	}
	next := s
	next.Remote = RemoteStream{
		ID:     ev.StreamID,
		Tracks: append(slices.Clip(s.Remote.Tracks), ev.TrackID),
	}
	return next, nil, nil
}

func toggle(s Snapshot, kind MediaKind) (Snapshot, []Effect, error) {
	if s.State != StateActive && s.State != StateOutgoingRinging {
		return s, nil, fmt.Errorf("%w: toggle %s in %s", ErrInvalidTransition, kind, s.State)
	}
	next := s
	var muted bool
	if kind == KindAudio {
		next.MicMuted = !s.MicMuted
		muted = next.MicMuted
	} else {
		next.VideoMuted = !s.VideoMuted
		muted = next.VideoMuted
	}
	if !s.Media {
		return next, nil, nil
	}
	return next, []Effect{{Kind: EffectSetTrack, Media: kind, Enabled: !muted}}, nil
}

// toIdle ends the current session. Local resources are released before any
// extra effect runs.
func toIdle(s Snapshot, extra ...Effect) (Snapshot, []Effect) {
	var effects []Effect
	if s.State.ringing() {
		effects = append(effects, Effect{Kind: EffectDisarmTimer})
	}
	if s.Media {
		effects = append(effects, Effect{Kind: EffectRelease})
	}
	effects = append(effects, extra...)
	return Snapshot{State: StateIdle, Gen: s.Gen}, effects
}

func send(ev protocol.EventType, to domain.UserID, body json.RawMessage) Effect {
	return Effect{Kind: EffectSend, Event: ev, To: to, Body: body}
}

func notify(kind NoticeKind, peer domain.UserID, msg string) Effect {
	return Effect{Kind: EffectNotify, Notice: Notice{Kind: kind, Peer: peer, Message: msg}}
}

func addCandidates(cs []Candidate) Effect {
	return Effect{
		Kind:       EffectAddCandidates,
		Candidates: lo.Map(cs, func(c Candidate, _ int) json.RawMessage { return c.Body }),
	}
}

func candidatesFrom(cs []Candidate, peer domain.UserID) []Candidate {
	out := lo.Filter(cs, func(c Candidate, _ int) bool { return c.From == peer })
	if len(out) == 0 {
		return nil
	}
	return out
}

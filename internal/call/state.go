package call

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Ringer/internal/domain"
	"github.com/dkeye/Ringer/internal/protocol"
)

var (
	ErrBusy              = errors.New("call already in progress")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrIgnored           = errors.New("event ignored")
)

type State int

const (
	StateIdle State = iota
	StateOutgoingRinging
	StateIncomingRinging
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOutgoingRinging:
		return "outgoing-ringing"
	case StateIncomingRinging:
		return "incoming-ringing"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

func (s State) ringing() bool {
	return s == StateOutgoingRinging || s == StateIncomingRinging
}

type Role int

const (
	RoleNone Role = iota
	RoleCaller
	RoleCallee
)

func (r Role) String() string {
	switch r {
	case RoleCaller:
		return "caller"
	case RoleCallee:
		return "callee"
	default:
		return "none"
	}
}

// Candidate is a remote network-path candidate waiting for a remote description.
type Candidate struct {
	From domain.UserID
	Body json.RawMessage
}

// RemoteStream references the peer's media. It holds identifiers only.
type RemoteStream struct {
	ID     string
	Tracks []string
}

// Snapshot is the whole state of one participant's call session.
type Snapshot struct {
	State State
	Role  Role
	Peer  domain.UserID

	// Gen identifies the current session. Asynchronous results carry the Gen
	// they were started under and are ignored once it changes.
	Gen uint64

	Offer         json.RawMessage
	Pending       []Candidate
	RemoteApplied bool

	// Media is set once local capture and the peer connection exist.
	Media bool
	// Signaled is set once the other side knows about the call.
	Signaled bool

	MicMuted   bool
	VideoMuted bool

	Remote RemoteStream
}

type Event interface{ isEvent() }

// Local commands.
type (
	Initiate    struct{ Peer domain.UserID }
	Accept      struct{}
	Reject      struct{}
	Hangup      struct{}
	ToggleMic   struct{}
	ToggleVideo struct{}
)

// Relayed from the peer or the server.
type (
	Incoming struct {
		From  domain.UserID
		Offer json.RawMessage
	}
	Answered struct {
		From   domain.UserID
		Answer json.RawMessage
	}
	CandidateArrived struct {
		From      domain.UserID
		Candidate json.RawMessage
	}
	PeerEnded    struct{ From domain.UserID }
	PeerRejected struct{ From domain.UserID }
	CallError    struct {
		Message   string
		Recipient domain.UserID
	}
	PresenceChanged struct{ Online []domain.UserID }
)

// Produced by the runner.
type (
	MediaReady struct{ Gen uint64 }
	Failed     struct {
		Gen uint64
		Err error
		// Media marks a capture failure, which never produces signaling.
		Media bool
	}
	Timeout        struct{ Gen uint64 }
	LocalCandidate struct {
		Gen       uint64
		Candidate json.RawMessage
	}
	RemoteTrack struct {
		Gen      uint64
		StreamID string
		TrackID  string
	}
)

func (Initiate) isEvent()         {}
func (Accept) isEvent()           {}
func (Reject) isEvent()           {}
func (Hangup) isEvent()           {}
func (ToggleMic) isEvent()        {}
func (ToggleVideo) isEvent()      {}
func (Incoming) isEvent()         {}
func (Answered) isEvent()         {}
func (CandidateArrived) isEvent() {}
func (PeerEnded) isEvent()        {}
func (PeerRejected) isEvent()     {}
func (CallError) isEvent()        {}
func (PresenceChanged) isEvent()  {}
func (MediaReady) isEvent()       {}
func (Failed) isEvent()           {}
func (Timeout) isEvent()          {}
func (LocalCandidate) isEvent()   {}
func (RemoteTrack) isEvent()      {}

type EffectKind int

const (
	EffectAcquireMedia EffectKind = iota
	EffectSendOffer
	EffectSendAnswer
	EffectApplyAnswer
	EffectAddCandidates
	EffectSend
	EffectRelease
	EffectSetTrack
	EffectArmTimer
	EffectDisarmTimer
	EffectNotify
)

func (k EffectKind) String() string {
	switch k {
	case EffectAcquireMedia:
		return "acquire-media"
	case EffectSendOffer:
		return "send-offer"
	case EffectSendAnswer:
		return "send-answer"
	case EffectApplyAnswer:
		return "apply-answer"
	case EffectAddCandidates:
		return "add-candidates"
	case EffectSend:
		return "send"
	case EffectRelease:
		return "release"
	case EffectSetTrack:
		return "set-track"
	case EffectArmTimer:
		return "arm-timer"
	case EffectDisarmTimer:
		return "disarm-timer"
	case EffectNotify:
		return "notify"
	default:
		return "unknown"
	}
}

// Effect is work the runner performs after a transition. Only the fields
// relevant to Kind are set.
type Effect struct {
	Kind EffectKind
	Gen  uint64

	Event protocol.EventType
	To    domain.UserID
	Body  json.RawMessage

	Candidates []json.RawMessage

	Media   MediaKind
	Enabled bool

	Notice Notice
}

type NoticeKind int

const (
	NoticeRinging NoticeKind = iota
	NoticeIncoming
	NoticeConnected
	NoticeEnded
	NoticeRejected
	NoticeTimedOut
	NoticeBusy
	NoticeError
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeRinging:
		return "ringing"
	case NoticeIncoming:
		return "incoming"
	case NoticeConnected:
		return "connected"
	case NoticeEnded:
		return "ended"
	case NoticeRejected:
		return "rejected"
	case NoticeTimedOut:
		return "timed-out"
	case NoticeBusy:
		return "busy"
	case NoticeError:
		return "error"
	default:
		return "unknown"
	}
}

// Notice is what the user interface is told about.
type Notice struct {
	Kind    NoticeKind
	Peer    domain.UserID
	Message string
}

// User-visible messages.
const (
	MsgCallEnded    = "Call ended"
	MsgCallRejected = "Call rejected"
	MsgTimedOut     = "Call timed out"
	MsgPeerOffline  = "Peer went offline"
)

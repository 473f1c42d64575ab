// Package protocol defines the JSON frames exchanged over the signaling socket.
//
// Every frame is an envelope {"type": <event>, "payload": <object>}. The relay
// only looks at the envelope and the "to" field; offer, answer and candidate
// bodies are carried as raw JSON and never re-encoded.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dkeye/Ringer/internal/domain"
)

type EventType string

// Client -> server.
const (
	EventStartCall    EventType = "start-call"
	EventCallAnswer   EventType = "call-answer"
	EventICECandidate EventType = "ice-candidate"
	EventEndCall      EventType = "end-call"
	EventRejectCall   EventType = "reject-call"
)

// Server -> client. call-answer and ice-candidate keep their names.
const (
	EventOnlineUsers  EventType = "getOnlineUsers"
	EventIncomingCall EventType = "incoming-call"
	EventCallEnded    EventType = "call-ended"
	EventCallRejected EventType = "call-rejected"
	EventCallError    EventType = "call-error"
)

// Messages carried by call-error.
const (
	MsgNoRecipient = "No recipient specified"
	MsgUserOffline = "User is not online"
	MsgRateLimited = "Rate limit exceeded"
	MsgMalformed   = "Malformed message"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
	ErrNoRecipient = errors.New("no recipient specified")
)

var validate = validator.New()

// forwardedAs maps a relayed inbound event to the event its target receives.
var forwardedAs = map[EventType]EventType{
	EventStartCall:    EventIncomingCall,
	EventCallAnswer:   EventCallAnswer,
	EventICECandidate: EventICECandidate,
	EventEndCall:      EventCallEnded,
	EventRejectCall:   EventCallRejected,
}

// Envelope is the outer frame.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Relayed reports whether t is one of the five client -> server signaling events.
func (t EventType) Relayed() bool {
	_, ok := forwardedAs[t]
	return ok
}

// Establishing reports whether an offline target must be reported to the sender.
// The remaining variants are best-effort and dropped silently.
func (t EventType) Establishing() bool {
	return t == EventStartCall || t == EventCallAnswer
}

// BodyKey is the payload field holding the variant-specific body, if any.
func (t EventType) BodyKey() string {
	switch t {
	case EventStartCall, EventIncomingCall:
		return "offer"
	case EventCallAnswer:
		return "answer"
	case EventICECandidate:
		return "candidate"
	default:
		return ""
	}
}

// ForwardedAs returns the event name delivered to the target of t.
func (t EventType) ForwardedAs() (EventType, bool) {
	out, ok := forwardedAs[t]
	return out, ok
}

// Signal is a validated inbound relay request.
type Signal struct {
	Type EventType
	To   domain.UserID
	Body json.RawMessage
}

type signalPayload struct {
	To        string          `json:"to" validate:"required"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

func (p signalPayload) body(t EventType) json.RawMessage {
	switch t.BodyKey() {
	case "offer":
		return p.Offer
	case "answer":
		return p.Answer
	case "candidate":
		return p.Candidate
	default:
		return nil
	}
}

// DecodeSignal parses an inbound frame. The returned Signal carries the type even
// when err is ErrNoRecipient so the caller can report it.
func DecodeSignal(data []byte) (Signal, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !env.Type.Relayed() {
		return Signal{Type: env.Type}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	var p signalPayload
	if len(env.Payload) > 0 && !bytes.Equal(env.Payload, []byte("null")) {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Signal{Type: env.Type}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if err := validate.Struct(p); err != nil {
		return Signal{Type: env.Type}, ErrNoRecipient
	}
	return Signal{
		Type: env.Type,
		To:   domain.UserID(p.To),
		Body: p.body(env.Type),
	}, nil
}

// EncodeSignal builds the inbound frame a client sends for a relayed event.
func EncodeSignal(t EventType, to domain.UserID, body json.RawMessage) ([]byte, error) {
	if !t.Relayed() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	p := signalPayload{To: string(to)}
	switch t.BodyKey() {
	case "offer":
		p.Offer = body
	case "answer":
		p.Answer = body
	case "candidate":
		p.Candidate = body
	}
	return encode(t, p)
}

// Forward builds the frame delivered to the target of an inbound event of type t.
// The body bytes are copied verbatim.
func Forward(t EventType, from domain.UserID, body json.RawMessage) ([]byte, error) {
	out, ok := forwardedAs[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	typeJSON, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	fromJSON, err := json.Marshal(from)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.WriteString(`{"type":`)
	b.Write(typeJSON)
	b.WriteString(`,"payload":{"from":`)
	b.Write(fromJSON)
	if key := t.BodyKey(); key != "" && len(body) > 0 {
		b.WriteString(`,"`)
		b.WriteString(key)
		b.WriteString(`":`)
		b.Write(body)
	}
	b.WriteString(`}}`)
	return b.Bytes(), nil
}

// OnlineUsers builds the presence frame.
func OnlineUsers(ids []domain.UserID) ([]byte, error) {
	if ids == nil {
		ids = []domain.UserID{}
	}
	return encode(EventOnlineUsers, ids)
}

type callErrorPayload struct {
	Message   string        `json:"message"`
	Recipient domain.UserID `json:"recipient,omitempty"`
}

// CallError builds the error frame sent back to a sender. recipient may be empty.
func CallError(message string, recipient domain.UserID) ([]byte, error) {
	return encode(EventCallError, callErrorPayload{Message: message, Recipient: recipient})
}

func encode(t EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Payload: raw})
}

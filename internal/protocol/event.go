package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Ringer/internal/domain"
)

// Event is a server -> client frame as seen by a client.
type Event struct {
	Type EventType

	// Forwarded events.
	From domain.UserID
	Body json.RawMessage

	// getOnlineUsers.
	Online []domain.UserID

	// call-error.
	Message   string
	Recipient domain.UserID
}

type forwardedPayload struct {
	From      domain.UserID   `json:"from"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// DecodeEvent parses a frame received from the server.
func DecodeEvent(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	ev := Event{Type: env.Type}

	switch env.Type {
	case EventOnlineUsers:
		if err := json.Unmarshal(env.Payload, &ev.Online); err != nil {
			return ev, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case EventCallError:
		var p callErrorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return ev, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		ev.Message, ev.Recipient = p.Message, p.Recipient
	case EventIncomingCall, EventCallAnswer, EventICECandidate, EventCallEnded, EventCallRejected:
		var p forwardedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return ev, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		ev.From = p.From
		switch env.Type.BodyKey() {
		case "offer":
			ev.Body = p.Offer
		case "answer":
			ev.Body = p.Answer
		case "candidate":
			ev.Body = p.Candidate
		}
	default:
		return ev, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return ev, nil
}

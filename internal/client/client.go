// Package client is the signaling side of a softphone: it keeps one socket to
// the server, sends relayed events for a call.Session and feeds server frames
// back into it.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Ringer/internal/call"
	"github.com/dkeye/Ringer/internal/domain"
	"github.com/dkeye/Ringer/internal/protocol"
)

const (
	dialTimeout = 10 * time.Second
	writeWait   = 5 * time.Second
)

var ErrClosed = errors.New("client closed")

// Sink receives the call events decoded from server frames.
type Sink interface {
	Dispatch(call.Event)
}

// Client is one signaling connection. Signal may be called concurrently.
type Client struct {
	user domain.UserID
	conn *websocket.Conn
	log  zerolog.Logger

	// OnPresence observes every presence list before it reaches the sink.
	OnPresence func([]domain.UserID)

	wmu    sync.Mutex
	closed atomic.Bool
}

// Dial connects to the signaling endpoint as user.
func Dial(ctx context.Context, serverURL string, user domain.UserID) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("bad server url: %w", err)
	}
	q := u.Query()
	q.Set("userId", user.String())
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Redacted(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}

	c := &Client{
		user: user,
		conn: conn,
		log:  log.With().Str("module", "client").Str("uid", user.String()).Logger(),
	}
	c.log.Info().Str("url", u.Redacted()).Msg("connected")
	return c, nil
}

func (c *Client) User() domain.UserID { return c.user }

// Signal sends a relayed event to another user.
func (c *Client) Signal(ctx context.Context, ev protocol.EventType, to domain.UserID, body json.RawMessage) error {
	if c.closed.Load() {
		return ErrClosed
	}
	frame, err := protocol.EncodeSignal(ev, to, body)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send %s: %w", ev, err)
	}
	c.log.Debug().Str("event", string(ev)).Str("to", to.String()).Msg("signal sent")
	return nil
}

// Run reads server frames into sink until the socket closes or ctx is done.
func (c *Client) Run(ctx context.Context, sink Sink) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		ev, err := protocol.DecodeEvent(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("bad frame from server")
			continue
		}
		if ev.Type == protocol.EventOnlineUsers && c.OnPresence != nil {
			c.OnPresence(ev.Online)
		}
		if out, ok := ToCallEvent(ev); ok {
			sink.Dispatch(out)
		}
	}
}

// Close sends a close frame and drops the socket. Safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.wmu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.conn.Close()
}

// ToCallEvent maps a server frame onto the call state machine's input.
func ToCallEvent(ev protocol.Event) (call.Event, bool) {
	switch ev.Type {
	case protocol.EventOnlineUsers:
		return call.PresenceChanged{Online: ev.Online}, true
	case protocol.EventIncomingCall:
		return call.Incoming{From: ev.From, Offer: ev.Body}, true
	case protocol.EventCallAnswer:
		return call.Answered{From: ev.From, Answer: ev.Body}, true
	case protocol.EventICECandidate:
		return call.CandidateArrived{From: ev.From, Candidate: ev.Body}, true
	case protocol.EventCallEnded:
		return call.PeerEnded{From: ev.From}, true
	case protocol.EventCallRejected:
		return call.PeerRejected{From: ev.From}, true
	case protocol.EventCallError:
		return call.CallError{Message: ev.Message, Recipient: ev.Recipient}, true
	default:
		return nil, false
	}
}

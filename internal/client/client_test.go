package client

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	router "github.com/dkeye/Ringer/internal/adapters/http"
	"github.com/dkeye/Ringer/internal/app"
	"github.com/dkeye/Ringer/internal/app/orch"
	"github.com/dkeye/Ringer/internal/call"
	"github.com/dkeye/Ringer/internal/config"
	"github.com/dkeye/Ringer/internal/domain"
	"github.com/dkeye/Ringer/internal/protocol"
)

type fakeLocal struct{}

func (fakeLocal) SetEnabled(call.MediaKind, bool) {}
func (fakeLocal) Stop()                           {}

type fakeMedia struct{}

func (fakeMedia) Acquire(context.Context) (call.LocalMedia, error) { return fakeLocal{}, nil }

// fakePeer answers negotiation with fixed descriptions and reports one local
// candidate per description it creates.
type fakePeer struct {
	name string
	h    call.PeerHandlers

	mu         sync.Mutex
	answer     json.RawMessage
	candidates []string
	closed     bool
}

func (p *fakePeer) CreateOffer(context.Context) (json.RawMessage, error) {
	p.h.OnCandidate(json.RawMessage(`{"candidate":"` + p.name + `"}`))
	return json.RawMessage(`{"type":"offer","sdp":"` + p.name + `"}`), nil
}

func (p *fakePeer) AcceptOffer(context.Context, json.RawMessage) (json.RawMessage, error) {
	p.h.OnCandidate(json.RawMessage(`{"candidate":"` + p.name + `"}`))
	return json.RawMessage(`{"type":"answer","sdp":"` + p.name + `"}`), nil
}

func (p *fakePeer) ApplyAnswer(answer json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answer = answer
	return nil
}

func (p *fakePeer) AddCandidate(c json.RawMessage) error {
	var v struct {
		Candidate string `json:"candidate"`
	}
	if err := json.Unmarshal(c, &v); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candidates = append(p.candidates, v.Candidate)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) seen() ([]string, json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.candidates...), p.answer
}

type fakePeers struct {
	name string
	mu   sync.Mutex
	last *fakePeer
}

func (f *fakePeers) NewPeer(_ call.LocalMedia, h call.PeerHandlers) (call.Peer, error) {
	p := &fakePeer{name: f.name, h: h}
	f.mu.Lock()
	f.last = p
	f.mu.Unlock()
	return p, nil
}

func (f *fakePeers) peer() *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type party struct {
	client   *Client
	sess     *call.Session
	peers    *fakePeers
	notices  chan call.Notice
	presence chan []domain.UserID
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Mode:         "test",
		ReadLimit:    32768,
		PingPeriod:   time.Second,
		PongWait:     2 * time.Second,
		WriteWait:    time.Second,
		SendBuffer:   16,
		Backpressure: "kick",
	}
	policy := app.KickPolicy{}
	reg := app.NewRegistry(app.NewPresence(policy).Broadcast)
	o := orch.New(reg, app.NewRelay(reg, policy), nil)

	srv := httptest.NewServer(router.SetupRouter(t.Context(), cfg, o))
	t.Cleanup(srv.Close)
	return srv
}

func join(t *testing.T, srv *httptest.Server, user domain.UserID) *party {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	c, err := Dial(ctx, url, user)
	require.NoError(t, err)

	p := &party{
		client:   c,
		peers:    &fakePeers{name: user.String()},
		notices:  make(chan call.Notice, 16),
		presence: make(chan []domain.UserID, 16),
	}
	c.OnPresence = func(ids []domain.UserID) { p.presence <- ids }
	p.sess = call.NewSession(call.Options{
		Self:     user,
		Media:    fakeMedia{},
		Peers:    p.peers,
		Signaler: c,
		OnNotice: func(n call.Notice) { p.notices <- n },
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = c.Run(ctx, p.sess)
	}()
	go func() {
		defer wg.Done()
		_ = p.sess.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return p
}

func (p *party) waitOnline(t *testing.T, user domain.UserID) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ids := <-p.presence:
			for _, id := range ids {
				if id == user {
					return
				}
			}
		case <-deadline:
			t.Fatalf("%s never came online", user)
		}
	}
}

func (p *party) waitNotice(t *testing.T, kind call.NoticeKind) call.Notice {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-p.notices:
			if n.Kind == kind {
				return n
			}
		case <-deadline:
			t.Fatalf("no %s notice", kind)
			return call.Notice{}
		}
	}
}

func TestClient_CallAcceptHangup(t *testing.T) {
	req := require.New(t)
	srv := newServer(t)
	ctx := context.Background()

	// Given alice and bob both online
	alice := join(t, srv, "alice")
	bob := join(t, srv, "bob")
	alice.waitOnline(t, "bob")

	// When alice calls bob
	req.NoError(alice.sess.Handle(ctx, call.Initiate{Peer: "bob"}))
	alice.waitNotice(t, call.NoticeRinging)

	// Then bob rings and accepts
	n := bob.waitNotice(t, call.NoticeIncoming)
	req.Equal(domain.UserID("alice"), n.Peer)
	req.NoError(bob.sess.Handle(ctx, call.Accept{}))

	alice.waitNotice(t, call.NoticeConnected)
	bob.waitNotice(t, call.NoticeConnected)
	req.Equal(call.StateActive, alice.sess.Snapshot().State)

	// And the answer and both candidates crossed the relay untouched
	req.Eventually(func() bool {
		cands, answer := alice.peers.peer().seen()
		return len(cands) == 1 && cands[0] == "bob" && string(answer) == `{"type":"answer","sdp":"bob"}`
	}, 2*time.Second, 10*time.Millisecond)
	req.Eventually(func() bool {
		cands, _ := bob.peers.peer().seen()
		return len(cands) == 1 && cands[0] == "alice"
	}, 2*time.Second, 10*time.Millisecond)

	// When alice hangs up, bob is told
	req.NoError(alice.sess.Handle(ctx, call.Hangup{}))
	n = bob.waitNotice(t, call.NoticeEnded)
	req.Equal(call.MsgCallEnded, n.Message)
	req.Equal(call.StateIdle, bob.sess.Snapshot().State)
}

func TestClient_CallOfflineUser(t *testing.T) {
	req := require.New(t)
	srv := newServer(t)

	alice := join(t, srv, "alice")
	alice.waitOnline(t, "alice")

	req.NoError(alice.sess.Handle(context.Background(), call.Initiate{Peer: "carol"}))

	n := alice.waitNotice(t, call.NoticeError)
	req.Equal(protocol.MsgUserOffline, n.Message)
	req.Equal(call.StateIdle, alice.sess.Snapshot().State)
}

func TestClient_RejectedCall(t *testing.T) {
	req := require.New(t)
	srv := newServer(t)
	ctx := context.Background()

	alice := join(t, srv, "alice")
	bob := join(t, srv, "bob")
	alice.waitOnline(t, "bob")

	req.NoError(alice.sess.Handle(ctx, call.Initiate{Peer: "bob"}))
	bob.waitNotice(t, call.NoticeIncoming)
	req.NoError(bob.sess.Handle(ctx, call.Reject{}))

	n := alice.waitNotice(t, call.NoticeRejected)
	req.Equal(domain.UserID("bob"), n.Peer)
	req.Equal(call.StateIdle, alice.sess.Snapshot().State)
}

func TestClient_PeerDisconnectEndsCall(t *testing.T) {
	req := require.New(t)
	srv := newServer(t)
	ctx := context.Background()

	alice := join(t, srv, "alice")
	bob := join(t, srv, "bob")
	alice.waitOnline(t, "bob")

	req.NoError(alice.sess.Handle(ctx, call.Initiate{Peer: "bob"}))
	bob.waitNotice(t, call.NoticeIncoming)
	req.NoError(bob.sess.Handle(ctx, call.Accept{}))
	alice.waitNotice(t, call.NoticeConnected)

	// When bob's socket drops without an end-call
	req.NoError(bob.client.conn.Close())

	// Then the presence update ends alice's call
	n := alice.waitNotice(t, call.NoticeEnded)
	req.Equal(call.MsgPeerOffline, n.Message)
}

func TestClient_SignalAfterClose(t *testing.T) {
	req := require.New(t)
	srv := newServer(t)

	alice := join(t, srv, "alice")
	req.NoError(alice.client.Close())
	req.NoError(alice.client.Close())

	err := alice.client.Signal(context.Background(), protocol.EventEndCall, "bob", nil)
	req.ErrorIs(err, ErrClosed)
}

func TestToCallEvent(t *testing.T) {
	req := require.New(t)

	body := json.RawMessage(`{"sdp":"x"}`)
	cases := []struct {
		in   protocol.Event
		want call.Event
	}{
		{protocol.Event{Type: protocol.EventOnlineUsers, Online: []domain.UserID{"a"}}, call.PresenceChanged{Online: []domain.UserID{"a"}}},
		{protocol.Event{Type: protocol.EventIncomingCall, From: "a", Body: body}, call.Incoming{From: "a", Offer: body}},
		{protocol.Event{Type: protocol.EventCallAnswer, From: "a", Body: body}, call.Answered{From: "a", Answer: body}},
		{protocol.Event{Type: protocol.EventICECandidate, From: "a", Body: body}, call.CandidateArrived{From: "a", Candidate: body}},
		{protocol.Event{Type: protocol.EventCallEnded, From: "a"}, call.PeerEnded{From: "a"}},
		{protocol.Event{Type: protocol.EventCallRejected, From: "a"}, call.PeerRejected{From: "a"}},
		{protocol.Event{Type: protocol.EventCallError, Message: "m", Recipient: "a"}, call.CallError{Message: "m", Recipient: "a"}},
	}
	for _, tc := range cases {
		got, ok := ToCallEvent(tc.in)
		req.True(ok, tc.in.Type)
		req.Equal(tc.want, got, tc.in.Type)
	}

	_, ok := ToCallEvent(protocol.Event{Type: protocol.EventStartCall})
	req.False(ok)
}

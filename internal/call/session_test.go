package call_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/Ringer/internal/call"
	"github.com/dkeye/Ringer/internal/domain"
	"github.com/dkeye/Ringer/internal/mocks"
	"github.com/dkeye/Ringer/internal/protocol"
)

type harness struct {
	media *mocks.MockMediaSource
	local *mocks.MockLocalMedia
	peers *mocks.MockPeerFactory
	peer  *mocks.MockPeer
	sig   *mocks.MockSignaler

	notices chan call.Notice
	sess    *call.Session
}

func newHarness(t *testing.T, ringTimeout time.Duration) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)

	h := &harness{
		media:   mocks.NewMockMediaSource(ctrl),
		local:   mocks.NewMockLocalMedia(ctrl),
		peers:   mocks.NewMockPeerFactory(ctrl),
		peer:    mocks.NewMockPeer(ctrl),
		sig:     mocks.NewMockSignaler(ctrl),
		notices: make(chan call.Notice, 16),
	}
	h.sess = call.NewSession(call.Options{
		Self:        "me",
		Media:       h.media,
		Peers:       h.peers,
		Signaler:    h.sig,
		RingTimeout: ringTimeout,
		OnNotice:    func(n call.Notice) { h.notices <- n },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.sess.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// expectCapture makes the next acquisition succeed and returns the handlers
// passed to the peer factory.
func (h *harness) expectCapture() chan call.PeerHandlers {
	handlers := make(chan call.PeerHandlers, 1)
	h.media.EXPECT().Acquire(gomock.Any()).Return(h.local, nil)
	h.peers.EXPECT().NewPeer(h.local, gomock.Any()).DoAndReturn(func(_ call.LocalMedia, ph call.PeerHandlers) (call.Peer, error) {
		handlers <- ph
		return h.peer, nil
	})
	return handlers
}

func (h *harness) wait(t *testing.T, kind call.NoticeKind) call.Notice {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-h.notices:
			if n.Kind == kind {
				return n
			}
		case <-deadline:
			t.Fatalf("no %s notice", kind)
			return call.Notice{}
		}
	}
}

func TestSession_OutgoingCallAndHangup(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, 0)
	ctx := context.Background()

	offer := json.RawMessage(`{"type":"offer","sdp":"o"}`)
	answer := json.RawMessage(`{"type":"answer","sdp":"a"}`)

	// Given capture and negotiation that succeed
	h.expectCapture()
	gomock.InOrder(
		h.peer.EXPECT().CreateOffer(gomock.Any()).Return(offer, nil),
		h.sig.EXPECT().Signal(gomock.Any(), protocol.EventStartCall, domain.UserID("bob"), offer).Return(nil),
	)

	// When the user calls bob
	req.NoError(h.sess.Handle(ctx, call.Initiate{Peer: "bob"}))
	h.wait(t, call.NoticeRinging)
	req.Equal(call.StateOutgoingRinging, h.sess.Snapshot().State)

	// And bob answers
	h.peer.EXPECT().ApplyAnswer(answer).Return(nil)
	req.NoError(h.sess.Handle(ctx, call.Answered{From: "bob", Answer: answer}))
	h.wait(t, call.NoticeConnected)
	req.Equal(call.StateActive, h.sess.Snapshot().State)

	// Then hanging up releases media before telling bob, exactly once
	gomock.InOrder(
		h.peer.EXPECT().Close().Return(nil),
		h.local.EXPECT().Stop(),
		h.sig.EXPECT().Signal(gomock.Any(), protocol.EventEndCall, domain.UserID("bob"), gomock.Nil()).Return(nil),
	)
	req.NoError(h.sess.Handle(ctx, call.Hangup{}))
	h.wait(t, call.NoticeEnded)

	req.ErrorIs(h.sess.Handle(ctx, call.Hangup{}), call.ErrIgnored)
	req.Equal(call.StateIdle, h.sess.Snapshot().State)
}

func TestSession_RejectNeverAcquires(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, 0)
	ctx := context.Background()

	req.NoError(h.sess.Handle(ctx, call.Incoming{From: "alice", Offer: json.RawMessage(`{}`)}))
	h.wait(t, call.NoticeIncoming)

	h.sig.EXPECT().Signal(gomock.Any(), protocol.EventRejectCall, domain.UserID("alice"), gomock.Nil()).Return(nil).Times(1)
	req.NoError(h.sess.Handle(ctx, call.Reject{}))
	req.Equal(call.StateIdle, h.sess.Snapshot().State)
}

func TestSession_MediaFailureSendsNothing(t *testing.T) {
	h := newHarness(t, 0)

	h.media.EXPECT().Acquire(gomock.Any()).Return(nil, errors.New("permission denied"))

	require.NoError(t, h.sess.Handle(context.Background(), call.Initiate{Peer: "bob"}))
	n := h.wait(t, call.NoticeError)

	require.Contains(t, n.Message, "permission denied")
	require.Eventually(t, func() bool { return h.sess.Snapshot().State == call.StateIdle }, time.Second, 5*time.Millisecond)
}

func TestSession_EarlyCandidatesFlushedAfterAnswer(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, 0)
	ctx := context.Background()

	offer := json.RawMessage(`{"type":"offer","sdp":"o"}`)
	answer := json.RawMessage(`{"type":"answer","sdp":"a"}`)
	c1 := json.RawMessage(`{"candidate":"c1"}`)
	c2 := json.RawMessage(`{"candidate":"c2"}`)

	// Given an incoming call whose candidates arrive before the user accepts
	req.NoError(h.sess.Handle(ctx, call.Incoming{From: "alice", Offer: offer}))
	req.NoError(h.sess.Handle(ctx, call.CandidateArrived{From: "alice", Candidate: c1}))
	req.NoError(h.sess.Handle(ctx, call.CandidateArrived{From: "alice", Candidate: c2}))

	// Then they are applied only after the offer
	h.expectCapture()
	gomock.InOrder(
		h.peer.EXPECT().AcceptOffer(gomock.Any(), offer).Return(answer, nil),
		h.sig.EXPECT().Signal(gomock.Any(), protocol.EventCallAnswer, domain.UserID("alice"), answer).Return(nil),
		h.peer.EXPECT().AddCandidate(c1).Return(nil),
		h.peer.EXPECT().AddCandidate(c2).Return(nil),
	)

	// When the user accepts
	req.NoError(h.sess.Handle(ctx, call.Accept{}))
	h.wait(t, call.NoticeConnected)

	// Cleanup on shutdown
	h.peer.EXPECT().Close().Return(nil).AnyTimes()
	h.local.EXPECT().Stop().AnyTimes()
	h.sig.EXPECT().Signal(gomock.Any(), protocol.EventEndCall, domain.UserID("alice"), gomock.Nil()).Return(nil).AnyTimes()
}

func TestSession_LocalCandidatesForwarded(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, 0)
	ctx := context.Background()

	handlers := h.expectCapture()
	h.peer.EXPECT().CreateOffer(gomock.Any()).Return(json.RawMessage(`{}`), nil)
	h.sig.EXPECT().Signal(gomock.Any(), protocol.EventStartCall, domain.UserID("bob"), gomock.Any()).Return(nil)

	req.NoError(h.sess.Handle(ctx, call.Initiate{Peer: "bob"}))
	h.wait(t, call.NoticeRinging)
	ph := <-handlers

	sent := make(chan struct{})
	cand := json.RawMessage(`{"candidate":"local"}`)
	h.sig.EXPECT().Signal(gomock.Any(), protocol.EventICECandidate, domain.UserID("bob"), cand).
		DoAndReturn(func(context.Context, protocol.EventType, domain.UserID, json.RawMessage) error {
			close(sent)
			return nil
		})

	// When the peer connection gathers a candidate
	ph.OnCandidate(cand)

	// Then it is signaled to bob
	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("candidate not signaled")
	}

	h.peer.EXPECT().Close().Return(nil).AnyTimes()
	h.local.EXPECT().Stop().AnyTimes()
	h.sig.EXPECT().Signal(gomock.Any(), protocol.EventEndCall, gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func TestSession_IncomingRingTimeout(t *testing.T) {
	h := newHarness(t, 30*time.Millisecond)

	h.sig.EXPECT().Signal(gomock.Any(), protocol.EventRejectCall, domain.UserID("alice"), gomock.Nil()).Return(nil).Times(1)

	require.NoError(t, h.sess.Handle(context.Background(), call.Incoming{From: "alice", Offer: json.RawMessage(`{}`)}))
	n := h.wait(t, call.NoticeTimedOut)

	require.Equal(t, call.MsgTimedOut, n.Message)
	require.Equal(t, call.StateIdle, h.sess.Snapshot().State)
}

func TestSession_HangupDuringCaptureReleasesLateMedia(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, 0)
	ctx := context.Background()

	// Given a capture that is slow to start
	unblock := make(chan struct{})
	h.media.EXPECT().Acquire(gomock.Any()).DoAndReturn(func(context.Context) (call.LocalMedia, error) {
		<-unblock
		return h.local, nil
	})
	h.peers.EXPECT().NewPeer(h.local, gomock.Any()).Return(h.peer, nil)

	req.NoError(h.sess.Handle(ctx, call.Initiate{Peer: "bob"}))

	// When the user gives up before it finishes
	req.NoError(h.sess.Handle(ctx, call.Hangup{}))
	h.wait(t, call.NoticeEnded)

	// Then the late media is released and nothing is signaled
	stopped := make(chan struct{})
	h.peer.EXPECT().Close().Return(nil)
	h.local.EXPECT().Stop().Do(func() { close(stopped) })
	close(unblock)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("late media not released")
	}
	req.Equal(call.StateIdle, h.sess.Snapshot().State)
}

func TestSession_BusyRejectsNewcomer(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, 0)
	ctx := context.Background()

	req.NoError(h.sess.Handle(ctx, call.Incoming{From: "alice", Offer: json.RawMessage(`{}`)}))

	h.sig.EXPECT().Signal(gomock.Any(), protocol.EventRejectCall, domain.UserID("carol"), gomock.Nil()).Return(nil)
	req.NoError(h.sess.Handle(ctx, call.Incoming{From: "carol", Offer: json.RawMessage(`{}`)}))
	h.wait(t, call.NoticeBusy)

	snap := h.sess.Snapshot()
	req.Equal(domain.UserID("alice"), snap.Peer)

	h.sig.EXPECT().Signal(gomock.Any(), protocol.EventEndCall, domain.UserID("alice"), gomock.Nil()).Return(nil).AnyTimes()
}

func TestSession_ShutdownDuringCaptureReleasesLateMedia(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	media := mocks.NewMockMediaSource(ctrl)
	local := mocks.NewMockLocalMedia(ctrl)
	peers := mocks.NewMockPeerFactory(ctrl)
	peer := mocks.NewMockPeer(ctrl)
	sess := call.NewSession(call.Options{
		Self:     "me",
		Media:    media,
		Peers:    peers,
		Signaler: mocks.NewMockSignaler(ctrl),
	})

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sess.Run(runCtx)
	}()

	// Given a capture that is still starting
	started := make(chan struct{})
	unblock := make(chan struct{})
	media.EXPECT().Acquire(gomock.Any()).DoAndReturn(func(context.Context) (call.LocalMedia, error) {
		close(started)
		<-unblock
		return local, nil
	})
	peers.EXPECT().NewPeer(local, gomock.Any()).Return(peer, nil)
	sess.Dispatch(call.Initiate{Peer: "bob"})
	<-started

	// When the session shuts down before it finishes
	cancel()
	<-done

	// Then the media delivered afterwards is still released
	stopped := make(chan struct{})
	peer.EXPECT().Close().Return(nil)
	local.EXPECT().Stop().Do(func() { close(stopped) })
	close(unblock)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("capture device leaked after shutdown")
	}
	req.Equal(call.StateIdle, sess.Snapshot().State)
}

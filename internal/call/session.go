package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Ringer/internal/domain"
	"github.com/dkeye/Ringer/internal/protocol"
)

// hangupTimeout bounds the end-call sent while shutting down.
const hangupTimeout = 2 * time.Second

// mediaAcquired carries the result of a finished capture back into the loop.
type mediaAcquired struct {
	gen   uint64
	local LocalMedia
	peer  Peer
}

func (mediaAcquired) isEvent() {}

type Options struct {
	Self        domain.UserID
	Media       MediaSource
	Peers       PeerFactory
	Signaler    Signaler
	RingTimeout time.Duration
	// OnNotice is called outside the session lock and may call back into the session.
	OnNotice func(Notice)
}

// Session runs Transition for one participant and executes its effects.
// Events are processed one at a time; Dispatch may be called from any goroutine.
type Session struct {
	opts Options
	log  zerolog.Logger

	mu    sync.Mutex
	snap  Snapshot
	local LocalMedia
	peer  Peer
	timer *time.Timer

	qmu     sync.Mutex
	queue   []Event
	notices []Notice
	closed  bool
	wake    chan struct{}
}

func NewSession(opts Options) *Session {
	return &Session{
		opts: opts,
		log:  log.With().Str("module", "call").Str("uid", opts.Self.String()).Logger(),
		wake: make(chan struct{}, 1),
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Dispatch queues ev for the Run loop. It never blocks.
// After shutdown, late capture results are released and everything else is dropped.
func (s *Session) Dispatch(ev Event) {
	s.qmu.Lock()
	if s.closed {
		s.qmu.Unlock()
		if m, ok := ev.(mediaAcquired); ok {
			releaseAcquired(m)
		}
		return
	}
	s.queue = append(s.queue, ev)
	s.qmu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Handle processes ev synchronously, followed by anything already queued.
func (s *Session) Handle(ctx context.Context, ev Event) error {
	s.mu.Lock()
	err := s.step(ctx, ev)
	s.drainLocked(ctx)
	s.mu.Unlock()

	s.flushNotices()
	return err
}

// Run processes dispatched events until ctx is done. An unfinished call is
// hung up and all media is released on the way out.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case <-s.wake:
		}
		s.mu.Lock()
		s.drainLocked(ctx)
		s.mu.Unlock()
		s.flushNotices()
	}
}

func (s *Session) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), hangupTimeout)
	defer cancel()

	s.mu.Lock()
	if s.snap.State != StateIdle {
		_ = s.step(ctx, Hangup{})
	}
	s.releaseLocked()
	s.stopTimerLocked()
	s.mu.Unlock()

	s.qmu.Lock()
	s.closed = true
	pending := s.queue
	s.queue = nil
	s.qmu.Unlock()
	for _, ev := range pending {
		if m, ok := ev.(mediaAcquired); ok {
			releaseAcquired(m)
		}
	}
	s.flushNotices()
}

func (s *Session) drainLocked(ctx context.Context) {
	for {
		s.qmu.Lock()
		if len(s.queue) == 0 {
			s.qmu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()

		if err := s.step(ctx, ev); err != nil && !errors.Is(err, ErrIgnored) {
			s.log.Debug().Err(err).Type("event", ev).Msg("event rejected")
		}
	}
}

// step applies one event. Caller holds s.mu.
func (s *Session) step(ctx context.Context, ev Event) error {
	if m, ok := ev.(mediaAcquired); ok {
		return s.stepMedia(ctx, m)
	}

	prev := s.snap.State
	next, effects, err := Transition(s.snap, ev)
	if err != nil {
		if errors.Is(err, ErrIgnored) {
			s.log.Debug().Type("event", ev).Str("state", prev.String()).Msg("ignored")
		}
		return err
	}
	s.snap = next
	if prev != next.State {
		s.log.Info().Str("from", prev.String()).Str("to", next.State.String()).Str("peer", next.Peer.String()).Type("event", ev).Msg("transition")
	}
	s.run(ctx, effects)
	return nil
}

func (s *Session) stepMedia(ctx context.Context, m mediaAcquired) error {
	next, effects, err := Transition(s.snap, MediaReady{Gen: m.gen})
	if err != nil {
		// The call ended while capture was starting.
		releaseAcquired(m)
		return err
	}
	s.local, s.peer = m.local, m.peer
	s.snap = next
	s.run(ctx, effects)
	return nil
}

func (s *Session) run(ctx context.Context, effects []Effect) {
	for _, eff := range effects {
		if err := s.exec(ctx, eff); err != nil {
			s.log.Warn().Err(err).Str("effect", eff.Kind.String()).Msg("effect failed")
			s.enqueueFront(Failed{Gen: s.snap.Gen, Err: err})
			return
		}
	}
}

// enqueueFront schedules ev ahead of anything already dispatched.
func (s *Session) enqueueFront(ev Event) {
	s.qmu.Lock()
	s.queue = append([]Event{ev}, s.queue...)
	s.qmu.Unlock()
}

func (s *Session) exec(ctx context.Context, eff Effect) error {
	switch eff.Kind {
	case EffectAcquireMedia:
		go s.acquire(ctx, eff.Gen)

	case EffectSendOffer:
		if s.peer == nil {
			return errors.New("no peer connection")
		}
		offer, err := s.peer.CreateOffer(ctx)
		if err != nil {
			return fmt.Errorf("create offer: %w", err)
		}
		if err := s.opts.Signaler.Signal(ctx, protocol.EventStartCall, eff.To, offer); err != nil {
			return fmt.Errorf("send offer: %w", err)
		}

	case EffectSendAnswer:
		if s.peer == nil {
			return errors.New("no peer connection")
		}
		answer, err := s.peer.AcceptOffer(ctx, eff.Body)
		if err != nil {
			return fmt.Errorf("accept offer: %w", err)
		}
		if err := s.opts.Signaler.Signal(ctx, protocol.EventCallAnswer, eff.To, answer); err != nil {
			return fmt.Errorf("send answer: %w", err)
		}

	case EffectApplyAnswer:
		if s.peer == nil {
			return errors.New("no peer connection")
		}
		if err := s.peer.ApplyAnswer(eff.Body); err != nil {
			return fmt.Errorf("apply answer: %w", err)
		}

	case EffectAddCandidates:
		for _, c := range eff.Candidates {
			if s.peer == nil {
				break
			}
			if err := s.peer.AddCandidate(c); err != nil {
				s.log.Warn().Err(err).Msg("add candidate")
			}
		}

	case EffectSend:
		if err := s.opts.Signaler.Signal(ctx, eff.Event, eff.To, eff.Body); err != nil {
			s.log.Warn().Err(err).Str("type", string(eff.Event)).Str("to", eff.To.String()).Msg("signal")
		}

	case EffectRelease:
		s.releaseLocked()

	case EffectSetTrack:
		if s.local != nil {
			s.local.SetEnabled(eff.Media, eff.Enabled)
		}

	case EffectArmTimer:
		s.armTimerLocked(eff.Gen)

	case EffectDisarmTimer:
		s.stopTimerLocked()

	case EffectNotify:
		s.qmu.Lock()
		s.notices = append(s.notices, eff.Notice)
		s.qmu.Unlock()
	}
	return nil
}

func (s *Session) acquire(ctx context.Context, gen uint64) {
	local, err := s.opts.Media.Acquire(ctx)
	if err != nil {
		s.Dispatch(Failed{Gen: gen, Err: fmt.Errorf("acquire media: %w", err), Media: true})
		return
	}
	peer, err := s.opts.Peers.NewPeer(local, PeerHandlers{
		OnCandidate: func(c json.RawMessage) {
			s.Dispatch(LocalCandidate{Gen: gen, Candidate: c})
		},
		OnRemoteTrack: func(streamID, trackID string) {
			s.Dispatch(RemoteTrack{Gen: gen, StreamID: streamID, TrackID: trackID})
		},
		OnFailed: func(err error) {
			s.Dispatch(Failed{Gen: gen, Err: err})
		},
	})
	if err != nil {
		local.Stop()
		s.Dispatch(Failed{Gen: gen, Err: fmt.Errorf("peer connection: %w", err), Media: true})
		return
	}
	s.Dispatch(mediaAcquired{gen: gen, local: local, peer: peer})
}

func (s *Session) releaseLocked() {
	if s.peer != nil {
		if err := s.peer.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close peer")
		}
		s.peer = nil
	}
	if s.local != nil {
		s.local.Stop()
		s.local = nil
	}
}

func releaseAcquired(m mediaAcquired) {
	_ = m.peer.Close()
	m.local.Stop()
}

func (s *Session) armTimerLocked(gen uint64) {
	s.stopTimerLocked()
	if s.opts.RingTimeout <= 0 {
		return
	}
	s.timer = time.AfterFunc(s.opts.RingTimeout, func() {
		s.Dispatch(Timeout{Gen: gen})
	})
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) flushNotices() {
	s.qmu.Lock()
	notices := s.notices
	s.notices = nil
	s.qmu.Unlock()

	for _, n := range notices {
		s.log.Info().Str("notice", n.Kind.String()).Str("peer", n.Peer.String()).Str("message", n.Message).Msg("call notice")
		if s.opts.OnNotice != nil {
			s.opts.OnNotice(n)
		}
	}
}

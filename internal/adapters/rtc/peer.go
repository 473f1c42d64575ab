package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Ringer/internal/call"
)

var (
	ErrBadDescription = errors.New("bad session description")
	ErrBadCandidate   = errors.New("bad ice candidate")
	ErrPeerFailed     = errors.New("peer connection failed")
)

// TrackSource is implemented by local media that can be attached to a peer.
type TrackSource interface {
	Tracks() []webrtc.TrackLocal
}

// PeerFactory builds pion peer connections sharing one API instance.
type PeerFactory struct {
	api *webrtc.API
	cfg webrtc.Configuration
}

func NewPeerFactory(iceServers []string) (*PeerFactory, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{LoggerFactory: NewLoggerFactory()}
	se.SetICETimeouts(10*time.Second, 30*time.Second, 2*time.Second)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(se),
	)

	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return &PeerFactory{api: api, cfg: cfg}, nil
}

func (f *PeerFactory) NewPeer(local call.LocalMedia, h call.PeerHandlers) (call.Peer, error) {
	pc, err := f.api.NewPeerConnection(f.cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Peer{
		pc:     pc,
		h:      h,
		cancel: cancel,
		log:    log.With().Str("module", "rtc").Logger(),
	}

	var tracks []webrtc.TrackLocal
	if ts, ok := local.(TrackSource); ok {
		tracks = ts.Tracks()
	}
	for _, tr := range tracks {
		sender, err := pc.AddTrack(tr)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("add %s track: %w", tr.Kind(), err)
		}
		go drainRTCP(ctx, sender)
	}
	if len(tracks) == 0 {
		addRecvOnlyTransceivers(pc, p.log)
	}

	p.bind(ctx)
	return p, nil
}

// addRecvOnlyTransceivers keeps offers valid when nothing is sent.
func addRecvOnlyTransceivers(pc *webrtc.PeerConnection, l zerolog.Logger) {
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			l.Warn().Err(err).Str("kind", kind.String()).Msg("add recvonly transceiver")
		}
	}
}

// drainRTCP reads RTCP so interceptors keep working.
func drainRTCP(ctx context.Context, sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for ctx.Err() == nil {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// RemoteStats counts what arrived on the remote tracks.
type RemoteStats struct {
	Packets uint64
	Bytes   uint64
	LastSeq uint16
}

// Peer wraps one pion PeerConnection. SDP and candidates cross the boundary as
// the JSON forms browsers use.
type Peer struct {
	pc     *webrtc.PeerConnection
	h      call.PeerHandlers
	cancel context.CancelFunc
	closed atomic.Bool
	log    zerolog.Logger

	mu    sync.Mutex
	stats RemoteStats
}

func (p *Peer) bind(ctx context.Context) {
	p.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil || p.h.OnCandidate == nil || p.closed.Load() {
			return
		}
		raw, err := json.Marshal(cand.ToJSON())
		if err != nil {
			p.log.Error().Err(err).Msg("marshal candidate")
			return
		}
		p.h.OnCandidate(raw)
	})

	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		p.log.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed && !p.closed.Load() && p.h.OnFailed != nil {
			p.h.OnFailed(ErrPeerFailed)
		}
	})

	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.log.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if p.h.OnRemoteTrack != nil {
			p.h.OnRemoteTrack(track.StreamID(), track.ID())
		}
		go p.readRemote(ctx, track)
	})
}

// readRemote consumes a remote track until it ends or the peer closes.
func (p *Peer) readRemote(ctx context.Context, track *webrtc.TrackRemote) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			p.log.Debug().Err(err).Str("track_id", track.ID()).Msg("remote track ended")
			return
		}
		p.count(pkt)
	}
}

func (p *Peer) count(pkt *rtp.Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Packets++
	p.stats.Bytes += uint64(len(pkt.Payload))
	p.stats.LastSeq = pkt.SequenceNumber
}

func (p *Peer) Stats() RemoteStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Peer) CreateOffer(ctx context.Context) (json.RawMessage, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return p.localDescription()
}

func (p *Peer) AcceptOffer(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	offer, err := decodeDescription(raw, webrtc.SDPTypeOffer)
	if err != nil {
		return nil, err
	}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return p.localDescription()
}

func (p *Peer) ApplyAnswer(raw json.RawMessage) error {
	answer, err := decodeDescription(raw, webrtc.SDPTypeAnswer)
	if err != nil {
		return err
	}
	return p.pc.SetRemoteDescription(answer)
}

func (p *Peer) AddCandidate(raw json.RawMessage) error {
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &ci); err != nil {
		return fmt.Errorf("%w: %v", ErrBadCandidate, err)
	}
	if ci.Candidate == "" {
		// End-of-candidates marker.
		return nil
	}
	return p.pc.AddICECandidate(ci)
}

func (p *Peer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.cancel()
	if err := p.pc.Close(); err != nil {
		p.log.Error().Err(err).Msg("close error")
		return err
	}
	p.log.Info().Msg("closed")
	return nil
}

func (p *Peer) localDescription() (json.RawMessage, error) {
	desc := p.pc.LocalDescription()
	if desc == nil {
		return nil, fmt.Errorf("%w: no local description", ErrBadDescription)
	}
	return json.Marshal(desc)
}

func decodeDescription(raw json.RawMessage, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, fmt.Errorf("%w: %v", ErrBadDescription, err)
	}
	if desc.Type != want {
		return desc, fmt.Errorf("%w: got %s, want %s", ErrBadDescription, desc.Type, want)
	}
	if desc.SDP == "" {
		return desc, fmt.Errorf("%w: empty sdp", ErrBadDescription)
	}
	return desc, nil
}

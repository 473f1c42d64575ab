package rtc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Ringer/internal/call"
)

const (
	audioFrame = 20 * time.Millisecond
	videoFrame = 33 * time.Millisecond
)

// opusSilence is a single Opus packet decoding to 20ms of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// vp8Filler is an opaque payload. Receivers count it, nobody decodes it.
var vp8Filler = make([]byte, 160)

// SyntheticSource stands in for a microphone and camera. It produces paced
// samples so a call carries real RTP without any capture hardware.
type SyntheticSource struct {
	Audio bool
	Video bool
}

var ErrNoTracks = errors.New("no tracks requested")

func (s SyntheticSource) Acquire(ctx context.Context) (call.LocalMedia, error) {
	if !s.Audio && !s.Video {
		return nil, ErrNoTracks
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	streamID := "ringer-" + uuid.NewString()
	c := &Capture{}
	if s.Audio {
		tr, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			"audio", streamID)
		if err != nil {
			return nil, err
		}
		c.tracks = append(c.tracks, newLocalTrack(call.KindAudio, tr))
	}
	if s.Video {
		tr, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"video", streamID)
		if err != nil {
			return nil, err
		}
		c.tracks = append(c.tracks, newLocalTrack(call.KindVideo, tr))
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	for _, t := range c.tracks {
		c.wg.Add(1)
		go c.pump(pumpCtx, t)
	}
	log.Info().Str("module", "rtc").Str("stream", streamID).Int("tracks", len(c.tracks)).Msg("synthetic capture started")
	return c, nil
}

// Capture owns the local tracks of one call.
type Capture struct {
	tracks []*localTrack
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Tracks exposes the tracks to attach to a peer connection.
func (c *Capture) Tracks() []webrtc.TrackLocal {
	out := make([]webrtc.TrackLocal, 0, len(c.tracks))
	for _, t := range c.tracks {
		out = append(out, t.Track)
	}
	return out
}

func (c *Capture) SetEnabled(kind call.MediaKind, enabled bool) {
	for _, t := range c.tracks {
		if t.kind == kind {
			t.setEnabled(enabled)
		}
	}
}

// Enabled reports whether any track of kind is live.
func (c *Capture) Enabled(kind call.MediaKind) bool {
	for _, t := range c.tracks {
		if t.kind == kind && t.State() == TrackStateLive {
			return true
		}
	}
	return false
}

// Stop ends every track and waits for the pumps.
func (c *Capture) Stop() {
	c.once.Do(func() {
		for _, t := range c.tracks {
			t.markStopped()
		}
		c.cancel()
		c.wg.Wait()
		log.Info().Str("module", "rtc").Msg("synthetic capture stopped")
	})
}

func (c *Capture) pump(ctx context.Context, t *localTrack) {
	defer c.wg.Done()

	period, payload := audioFrame, opusSilence
	if t.kind == call.KindVideo {
		period, payload = videoFrame, vp8Filler
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		switch t.State() {
		case TrackStateStopped:
			return
		case TrackStateMuted:
			continue
		case TrackStateLive:
			if err := t.Track.WriteSample(media.Sample{Data: payload, Duration: period}); err != nil {
				log.Debug().Err(err).Str("module", "rtc").Str("kind", string(t.kind)).Msg("write sample")
			}
		}
	}
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Ringer/internal/adapters/rtc"
	"github.com/dkeye/Ringer/internal/call"
	"github.com/dkeye/Ringer/internal/client"
	"github.com/dkeye/Ringer/internal/config"
	"github.com/dkeye/Ringer/internal/domain"
)

const usage = `commands: call <user> | accept | reject | hangup | mic | video | state | quit`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fs := pflag.NewFlagSet("ringer", pflag.ExitOnError)
	config.ClientFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.LoadClient(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := run(ctx, cfg, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("client stopped")
	}
	log.Info().Msg("bye")
}

func run(ctx context.Context, cfg *config.ClientConfig, in io.Reader) error {
	self, err := domain.ParseUserID(cfg.User)
	if err != nil {
		return err
	}
	target := domain.UserID(strings.TrimSpace(cfg.Call))

	peers, err := rtc.NewPeerFactory(cfg.ICEServers)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := client.Dial(ctx, cfg.ServerURL, self)
	if err != nil {
		return err
	}
	defer c.Close()

	p := &phone{cfg: cfg, target: target, quit: cancel}
	p.sess = call.NewSession(call.Options{
		Self:        self,
		Media:       rtc.SyntheticSource{Audio: true, Video: true},
		Peers:       peers,
		Signaler:    c,
		RingTimeout: cfg.RingTimeout,
		OnNotice:    p.onNotice,
	})
	c.OnPresence = p.onPresence

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Run(gctx, p.sess) })
	g.Go(func() error { return p.sess.Run(gctx) })
	go p.readCommands(gctx, in)

	fmt.Println(usage)
	return g.Wait()
}

// phone turns notices and console input into session commands.
type phone struct {
	cfg    *config.ClientConfig
	target domain.UserID
	sess   *call.Session
	quit   context.CancelFunc

	mu     sync.Mutex
	dialed bool
	hangup *time.Timer
}

func (p *phone) onPresence(ids []domain.UserID) {
	p.mu.Lock()
	dial := p.target != "" && !p.dialed && lo.Contains(ids, p.target)
	if dial {
		p.dialed = true
	}
	p.mu.Unlock()

	fmt.Printf("online: %s\n", strings.Join(lo.Map(ids, func(id domain.UserID, _ int) string { return id.String() }), ", "))
	if dial {
		p.sess.Dispatch(call.Initiate{Peer: p.target})
	}
}

func (p *phone) onNotice(n call.Notice) {
	line := fmt.Sprintf("[%s] %s", n.Kind, n.Peer)
	if n.Message != "" {
		line += ": " + n.Message
	}
	fmt.Println(line)

	switch n.Kind {
	case call.NoticeIncoming:
		switch p.cfg.Answer {
		case "accept":
			p.sess.Dispatch(call.Accept{})
		case "reject":
			p.sess.Dispatch(call.Reject{})
		default:
			fmt.Println("type accept or reject")
		}
	case call.NoticeConnected:
		if p.cfg.HangupAfter > 0 {
			p.mu.Lock()
			p.hangup = time.AfterFunc(p.cfg.HangupAfter, func() { p.sess.Dispatch(call.Hangup{}) })
			p.mu.Unlock()
		}
	case call.NoticeEnded, call.NoticeRejected, call.NoticeTimedOut, call.NoticeError:
		p.mu.Lock()
		if p.hangup != nil {
			p.hangup.Stop()
			p.hangup = nil
		}
		p.mu.Unlock()
		// A one-shot call exits once it is over.
		if p.target != "" && n.Peer == p.target {
			p.quit()
		}
	}
}

func (p *phone) readCommands(ctx context.Context, in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		var ev call.Event
		switch fields[0] {
		case "call":
			if len(fields) < 2 {
				fmt.Println(usage)
				continue
			}
			ev = call.Initiate{Peer: domain.UserID(fields[1])}
		case "accept":
			ev = call.Accept{}
		case "reject":
			ev = call.Reject{}
		case "hangup":
			ev = call.Hangup{}
		case "mic":
			ev = call.ToggleMic{}
		case "video":
			ev = call.ToggleVideo{}
		case "state":
			s := p.sess.Snapshot()
			fmt.Printf("%s %s peer=%s mic_muted=%t video_muted=%t remote=%d\n",
				s.State, s.Role, s.Peer, s.MicMuted, s.VideoMuted, len(s.Remote.Tracks))
			continue
		case "quit":
			p.quit()
			return
		default:
			fmt.Println(usage)
			continue
		}
		if err := p.sess.Handle(ctx, ev); err != nil && !errors.Is(err, call.ErrIgnored) {
			fmt.Println("error:", err)
		}
	}
}

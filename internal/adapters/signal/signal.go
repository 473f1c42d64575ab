package signal

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Ringer/internal/app/orch"
	"github.com/dkeye/Ringer/internal/config"
	"github.com/dkeye/Ringer/internal/domain"
)

// Options tune a signaling socket.
type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
	}
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  5 * time.Second,
		SendBuffer: 64,
	}
}

type SignalWSController struct {
	Orch *orch.Orchestrator
	Opts Options
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	return &SignalWSController{Orch: o, Opts: opts}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades GET /api/ws/signal?userId=<id>. Requests without a
// usable id are refused before the upgrade.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	uid, err := domain.ParseUserID(c.Query("userId"))
	if err != nil {
		log.Warn().Str("module", "signal").Str("remote", c.ClientIP()).Err(err).Msg("rejected connection")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := NewWsSignalConn(uid, ws, ctl.Opts.SendBuffer)
	log.Info().Str("module", "signal").Str("uid", uid.String()).Str("conn", conn.ID().String()).Msg("new WS connection")

	ctl.serve(ctx, conn)
}

func (ctl *SignalWSController) serve(ctx context.Context, conn *WsSignalConn) {
	ctl.Orch.Connect(conn.User(), conn)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(conn)
}

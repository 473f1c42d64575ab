package signal

import (
	"time"

	"github.com/gorilla/websocket"
)

// keepalive is a ticker that never fires when the period is zero.
type keepalive struct {
	t *time.Ticker
}

func newKeepalive(period time.Duration) keepalive {
	if period <= 0 {
		return keepalive{}
	}
	return keepalive{t: time.NewTicker(period)}
}

func (k keepalive) C() <-chan time.Time {
	if k.t == nil {
		return nil
	}
	return k.t.C
}

func (k keepalive) Stop() {
	if k.t != nil {
		k.t.Stop()
	}
}

func (ctl *SignalWSController) ping(c *WsSignalConn) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.Opts.WriteWait))
}

// armReadDeadline makes a silent peer fail its read after PongWait. Every pong
// pushes the deadline forward.
func (ctl *SignalWSController) armReadDeadline(c *WsSignalConn) {
	if ctl.Opts.PongWait <= 0 {
		return
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.Opts.PongWait))
	})
}

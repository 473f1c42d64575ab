package signal

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Ringer/internal/core"
)

// writePump owns every write on the socket. It exits when the send queue is
// closed, a write fails or ctx is done; the last two close the connection so
// the read pump unblocks.
func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := newKeepalive(ctl.Opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", c.ID().String()).Msg("writePump ctx done")
			c.Close()
			return
		case <-ticker.C():
			if err := ctl.ping(c); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", c.ID().String()).Msg("writePump ping")
				c.Close()
				return
			}
		case data, ok := <-c.send:
			if !ok {
				ctl.closeFrame(c)
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", c.ID().String()).Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

// readPump runs until the socket fails, then unregisters and closes it.
func (ctl *SignalWSController) readPump(c *WsSignalConn) {
	uid := c.User()
	defer func() {
		log.Info().Str("module", "signal").Str("uid", uid.String()).Str("conn", c.ID().String()).Msg("readPump closing")
		ctl.Orch.Disconnect(uid, c)
		c.Close()
	}()

	if ctl.Opts.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.Opts.ReadLimit)
	}
	ctl.armReadDeadline(c)

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !c.isClosed() {
				log.Warn().Err(err).Str("module", "signal").Str("uid", uid.String()).Msg("readPump read error")
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		ctl.Orch.OnFrame(uid, c, core.Frame(data))
	}
}

func (ctl *SignalWSController) closeFrame(c *WsSignalConn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(ctl.Opts.WriteWait))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Debug().Err(err).Str("module", "signal").Str("conn", c.ID().String()).Msg("close frame")
	}
}

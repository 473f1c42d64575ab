package signal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Ringer/internal/app"
	"github.com/dkeye/Ringer/internal/app/orch"
	"github.com/dkeye/Ringer/internal/domain"
	"github.com/dkeye/Ringer/internal/protocol"
)

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := app.NewRegistry(app.NewPresence(app.KickPolicy{}).Broadcast)
	o := orch.New(reg, app.NewRelay(reg, app.KickPolicy{}), nil)

	ctrl := NewSignalWSController(o, opts)
	r := gin.New()
	ctx := t.Context()
	r.GET("/api/ws/signal", func(c *gin.Context) { ctrl.HandleSignal(ctx, c) })

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, o
}

func wsURL(srv *httptest.Server, uid string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal?userId=" + url.QueryEscape(uid)
}

func dial(t *testing.T, srv *httptest.Server, uid string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, uid), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) (protocol.Event, []byte) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	ev, err := protocol.DecodeEvent(data)
	require.NoError(t, err)
	return ev, data
}

func send(t *testing.T, ws *websocket.Conn, typ protocol.EventType, to string, body string) {
	t.Helper()
	var raw json.RawMessage
	if body != "" {
		raw = json.RawMessage(body)
	}
	frame, err := protocol.EncodeSignal(typ, domain.UserID(to), raw)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, frame))
}

func TestSignal_RejectsMissingUserID(t *testing.T) {
	req := require.New(t)
	srv, o := newTestServer(t, DefaultOptions())

	for _, q := range []string{"", "?userId=", "?userId=undefined"} {
		resp, err := http.Get(srv.URL + "/api/ws/signal" + q)
		req.NoError(err)
		_ = resp.Body.Close()
		req.Equal(http.StatusBadRequest, resp.StatusCode, q)
	}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "undefined"), nil)
	req.Error(err)
	req.Equal(http.StatusBadRequest, resp.StatusCode)
	req.Equal(0, o.Registry.Len())
}

func TestSignal_CallScenario(t *testing.T) {
	req := require.New(t)
	srv, o := newTestServer(t, DefaultOptions())

	// Given alice and bob connected
	alice := dial(t, srv, "alice")
	ev, _ := readEvent(t, alice)
	req.Equal(protocol.EventOnlineUsers, ev.Type)
	req.Equal([]domain.UserID{"alice"}, ev.Online)

	bob := dial(t, srv, "bob")
	ev, _ = readEvent(t, alice)
	req.Equal([]domain.UserID{"alice", "bob"}, ev.Online)
	ev, _ = readEvent(t, bob)
	req.Equal([]domain.UserID{"alice", "bob"}, ev.Online)

	// When alice calls bob
	offer := `{"type":"offer","sdp":"v=0\r\ns=-\r\n"}`
	send(t, alice, protocol.EventStartCall, "bob", offer)

	// Then bob gets incoming-call with the offer bytes intact
	ev, data := readEvent(t, bob)
	req.Equal(protocol.EventIncomingCall, ev.Type)
	req.Equal(domain.UserID("alice"), ev.From)
	req.Contains(string(data), `"offer":`+offer)

	// When bob answers and both trickle candidates
	send(t, bob, protocol.EventCallAnswer, "alice", `{"type":"answer","sdp":"v=0\r\n"}`)
	ev, _ = readEvent(t, alice)
	req.Equal(protocol.EventCallAnswer, ev.Type)
	req.Equal(domain.UserID("bob"), ev.From)

	send(t, alice, protocol.EventICECandidate, "bob", `{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}`)
	ev, _ = readEvent(t, bob)
	req.Equal(protocol.EventICECandidate, ev.Type)
	req.JSONEq(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}`, string(ev.Body))

	// When alice hangs up
	send(t, alice, protocol.EventEndCall, "bob", "")

	// Then bob is told the call ended
	ev, _ = readEvent(t, bob)
	req.Equal(protocol.EventCallEnded, ev.Type)
	req.Equal(domain.UserID("alice"), ev.From)

	// And calling someone offline reports back to alice only
	send(t, alice, protocol.EventStartCall, "carol", offer)
	ev, _ = readEvent(t, alice)
	req.Equal(protocol.EventCallError, ev.Type)
	req.Equal(protocol.MsgUserOffline, ev.Message)
	req.Equal(domain.UserID("carol"), ev.Recipient)

	// When bob drops, alice sees the new presence list
	req.NoError(bob.Close())
	ev, _ = readEvent(t, alice)
	req.Equal(protocol.EventOnlineUsers, ev.Type)
	req.Equal([]domain.UserID{"alice"}, ev.Online)
	req.Equal(1, o.Registry.Len())
}

func TestSignal_MalformedFrame(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t, DefaultOptions())

	alice := dial(t, srv, "alice")
	_, _ = readEvent(t, alice)

	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte(`{oops`)))
	ev, _ := readEvent(t, alice)
	req.Equal(protocol.EventCallError, ev.Type)
	req.Equal(protocol.MsgMalformed, ev.Message)
}

func TestSignal_ReconnectReplacesHandle(t *testing.T) {
	req := require.New(t)
	srv, o := newTestServer(t, DefaultOptions())

	first := dial(t, srv, "alice")
	_, _ = readEvent(t, first)
	second := dial(t, srv, "alice")
	_, _ = readEvent(t, second)

	// When the old socket goes away the user stays online
	req.NoError(first.Close())
	req.Never(func() bool { return o.Registry.Len() == 0 }, 200*time.Millisecond, 20*time.Millisecond)

	req.NoError(second.Close())
	req.Eventually(func() bool { return o.Registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSignal_SilentPeerDropped(t *testing.T) {
	req := require.New(t)

	opts := DefaultOptions()
	opts.PingPeriod = 20 * time.Millisecond
	opts.PongWait = 80 * time.Millisecond
	srv, o := newTestServer(t, opts)

	// Given a client that never reads, so pings are never answered
	_ = dial(t, srv, "alice")
	req.Eventually(func() bool { return o.Registry.Len() == 1 }, time.Second, 5*time.Millisecond)

	// Then the server drops it after the pong deadline
	req.Eventually(func() bool { return o.Registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

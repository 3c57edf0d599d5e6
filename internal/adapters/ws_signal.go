package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ledum/huddle/internal/app"
	"github.com/ledum/huddle/internal/core"
	"github.com/ledum/huddle/internal/domain"
)

// SignalWSController upgrades signaling connections and dispatches their
// messages to the relay.
type SignalWSController struct {
	Relay      *app.Relay
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewSignalWSController(relay *app.Relay, readLimit int64, pingPeriod time.Duration) *SignalWSController {
	return &SignalWSController{Relay: relay, ReadLimit: readLimit, PingPeriod: pingPeriod}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// envelope is the inbound message frame. Payload stays opaque; the relay
// forwards it without looking inside.
type envelope struct {
	Type    string          `json:"type"`
	RoomID  domain.RoomID   `json:"roomId"`
	UserID  domain.UserID   `json:"userId"`
	From    domain.UserID   `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	// The session id is minted per connection: two tabs of the same
	// browser share a client token but never a session.
	sid := core.SessionID(uuid.NewString())
	log.Info().
		Str("module", "adapters.signal").
		Str("sid", string(sid)).
		Str("client", c.GetString("client_token")).
		Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := NewSignalConn(ws)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Relay.Attach(sid, conn, cancel)

	conn.StartWriteLoop(ctx, ctl.PingPeriod)
	go ctl.readPump(ctx, sid, conn)
}

// readPump processes a connection's messages strictly in order. Its exit
// path runs the implicit leave before the connection is discarded, so no
// later message from this session can be observed.
func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, c *SignalConn) {
	defer func() {
		log.Info().Str("module", "adapters.signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Relay.Disconnect(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "adapters.signal").Str("sid", string(sid)).Msg("read error")
				}
				return
			}
			ctl.handleSignal(sid, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *SignalConn, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "adapters.signal").Msg("bad json")
		ctl.sendError(c, "malformed message")
		return
	}

	switch env.Type {
	case "join-room":
		if err := ctl.Relay.Join(sid, env.RoomID, env.UserID); err != nil {
			ctl.sendError(c, userFacing(err))
		}
	case "offer", "answer", "ice-candidate":
		if err := ctl.Relay.Forward(sid, env.Type, env.From, env.Payload); err != nil {
			ctl.sendError(c, userFacing(err))
		}
	case "ping":
		ctl.sendJSON(c, map[string]string{"type": "pong"})
	default:
		log.Warn().Str("module", "adapters.signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *SignalWSController) sendError(c *SignalConn, msg string) {
	ctl.sendJSON(c, map[string]string{"type": "error", "error": msg})
}

func (ctl *SignalWSController) sendJSON(c *SignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// userFacing strips internal detail from errors echoed to a client.
func userFacing(err error) string {
	if errors.Is(err, domain.ErrInvalidArgument) {
		return err.Error()
	}
	return "internal error"
}

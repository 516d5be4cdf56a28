package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/escala-game/escala-backend/internal/engine"
	"github.com/escala-game/escala-backend/internal/hub"
	"github.com/escala-game/escala-backend/internal/registry"
	"github.com/escala-game/escala-backend/internal/session"
	"github.com/escala-game/escala-backend/pkg/types"
)

// PlayerLoader resolves the game a player belongs to when the player first
// announces itself on a connection.
type PlayerLoader interface {
	LoadPlayer(ctx context.Context, id string) (*engine.Player, error)
}

// client adapts one websocket connection to the registry's Conn. Outbound
// frames go through a buffered channel drained by a writer goroutine so a
// slow client never blocks a broadcaster.
type client struct {
	conn   *websocket.Conn
	out    chan []byte
	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(parent context.Context, conn *websocket.Conn) *client {
	ctx, cancel := context.WithCancel(parent)
	return &client{conn: conn, out: make(chan []byte, 16), ctx: ctx, cancel: cancel}
}

func (c *client) Send(payload []byte) bool {
	select {
	case <-c.ctx.Done():
		return false
	case c.out <- payload:
		return true
	default:
		// Full outbox: drop the frame rather than block. The client catches
		// up from the next state-bearing event.
		return false
	}
}

func (c *client) Close(reason string) {
	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, reason)
}

func (c *client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case payload := <-c.out:
			ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
			_ = c.conn.Write(ctx, websocket.MessageText, payload)
			cancel()
		}
	}
}

func (c *client) sendError(code, msg string) {
	payload, _ := json.Marshal(types.ErrorMessage{Type: "ERROR", Code: code, Message: msg})
	c.Send(payload)
}

// Handler serves the game socket. Every frame carries the sender's player
// id; the first sight of an id on a connection registers it (replacing any
// stale connection for that player), which is also how reconnection works.
func Handler(h *hub.Hub, reg *registry.Registry, players PlayerLoader, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c := newClient(r.Context(), conn)
		defer c.cancel()
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		go c.writeLoop()

		identified := ""
		defer func() {
			if identified != "" {
				reg.Disconnected(c)
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("socket read ended", zap.String("player", identified), zap.Error(err))
				}
				return
			}

			var msg types.ClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				c.sendError("bad_json", "malformed message")
				continue
			}
			if msg.PlayerID == "" {
				c.sendError("missing_player", "playerId is required")
				continue
			}

			gameCode := msg.GameCode
			if msg.PlayerID != identified {
				player, err := players.LoadPlayer(r.Context(), msg.PlayerID)
				if err != nil {
					c.sendError("unknown_player", "player not found")
					continue
				}
				identified = player.ID
				gameCode = player.GameCode
				reg.Identify(player.ID, player.GameCode, c)
			}

			switch msg.Type {
			case "JOIN_GAME", "START_GAME":
				// Announcement frames; registration above is their effect.
				log.Debug("client announced",
					zap.String("type", msg.Type),
					zap.String("player", msg.PlayerID),
					zap.String("game", gameCode))
			case "GAME_ACTION":
				dispatchAction(h, c, gameCode, msg)
			default:
				c.sendError("unknown_type", "unsupported message type: "+msg.Type)
			}
		}
	}
}

func dispatchAction(h *hub.Hub, c *client, gameCode string, msg types.ClientMessage) {
	if msg.GameCode != "" {
		gameCode = msg.GameCode
	}
	sess := h.Get(gameCode)
	if sess == nil {
		c.sendError("unknown_game", "game not found: "+gameCode)
		return
	}
	if msg.ActionData == nil {
		c.sendError("bad_action", "actionData is required")
		return
	}

	switch msg.ActionType {
	case "PLACE_MATERIAL":
		reply := make(chan session.PlaceReply, 1)
		sess.Inbox() <- session.PlaceMaterial{
			PlayerID:    msg.PlayerID,
			MaterialID:  msg.ActionData.MaterialID,
			BalanceType: msg.ActionData.BalanceType,
			Side:        msg.ActionData.Side,
			Reply:       reply,
		}
		if r := <-reply; r.Err != nil {
			c.sendError(string(engine.KindOf(r.Err)), r.Err.Error())
		}
	case "MAKE_GUESS":
		reply := make(chan session.GuessReply, 1)
		sess.Inbox() <- session.MakeGuess{
			PlayerID: msg.PlayerID,
			Guesses:  msg.ActionData.Guesses,
			Reply:    reply,
		}
		if r := <-reply; r.Err != nil {
			c.sendError(string(engine.KindOf(r.Err)), r.Err.Error())
		}
	default:
		c.sendError("bad_action", "unsupported action type: "+msg.ActionType)
	}
}

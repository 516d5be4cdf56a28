// Package registry tracks which live connection currently represents which
// player. There is no reconnect handshake: a client re-announces its player
// id and the stale connection, if any, is closed.
package registry

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/escala-game/escala-backend/pkg/types"
)

// Conn is the slice of a websocket connection the registry needs. Send must
// not block; it reports false when the connection can no longer accept
// writes.
type Conn interface {
	Send(payload []byte) bool
	Close(reason string)
}

// Notifier receives membership transitions. Implementations route them into
// the owning game's session actor.
type Notifier interface {
	PlayerDeparted(gameCode, playerID string)
	PlayerReturned(gameCode, playerID string)
}

type connState int

const (
	stateConnected connState = iota
	statePendingDeparture
)

type entry struct {
	playerID string
	gameCode string
	conn     Conn
	state    connState
	grace    *time.Timer
}

type Registry struct {
	mu       sync.Mutex
	byPlayer map[string]*entry
	grace    time.Duration
	notify   Notifier
	log      *zap.Logger
}

func New(grace time.Duration, notify Notifier, log *zap.Logger) *Registry {
	return &Registry{
		byPlayer: make(map[string]*entry),
		grace:    grace,
		notify:   notify,
		log:      log,
	}
}

// Identify binds a connection to a player. A different live connection for
// the same player is closed first; a pending departure is cancelled and the
// player counts as returned.
func (r *Registry) Identify(playerID, gameCode string, conn Conn) {
	var stale Conn
	returned := false

	r.mu.Lock()
	e := r.byPlayer[playerID]
	if e != nil {
		if e.conn != conn {
			stale = e.conn
		}
		if e.grace != nil {
			e.grace.Stop()
			e.grace = nil
		}
		if e.state == statePendingDeparture {
			returned = true
		}
		e.conn = conn
		e.gameCode = gameCode
		e.state = stateConnected
	} else {
		r.byPlayer[playerID] = &entry{playerID: playerID, gameCode: gameCode, conn: conn, state: stateConnected}
	}
	r.mu.Unlock()

	if stale != nil {
		stale.Close("replaced by a newer connection")
	}
	if returned {
		r.notify.PlayerReturned(gameCode, playerID)
		r.log.Info("player reconnected", zap.String("player", playerID), zap.String("game", gameCode))
	}
}

// Disconnected marks the player pending departure and schedules the grace
// check. The player is only treated as departed if no re-announcement lands
// within the grace window.
func (r *Registry) Disconnected(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.byPlayer {
		if e.conn != conn || e.state != stateConnected {
			continue
		}
		e.state = statePendingDeparture
		playerID := e.playerID
		e.grace = time.AfterFunc(r.grace, func() {
			r.expire(playerID, conn)
		})
		return
	}
}

func (r *Registry) expire(playerID string, conn Conn) {
	r.mu.Lock()
	e := r.byPlayer[playerID]
	if e == nil || e.conn != conn || e.state != statePendingDeparture {
		// Re-identified in the meantime; the departure never happened.
		r.mu.Unlock()
		return
	}
	gameCode := e.gameCode
	delete(r.byPlayer, playerID)
	r.mu.Unlock()

	r.log.Info("player departed", zap.String("player", playerID), zap.String("game", gameCode))
	r.notify.PlayerDeparted(gameCode, playerID)
}

// Broadcast fans an event out to every connected player of a game. Entries
// whose connection refuses the write are skipped, not removed; removal only
// happens through departure.
func (r *Registry) Broadcast(gameCode string, evt types.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		r.log.Error("marshal broadcast failed", zap.String("event", string(evt.Type)), zap.Error(err))
		return
	}
	for _, conn := range r.recipients(gameCode) {
		conn.Send(payload)
	}
}

// BroadcastAll reaches every connected client regardless of game, for events
// not yet tied to a roster.
func (r *Registry) BroadcastAll(evt types.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		r.log.Error("marshal broadcast failed", zap.String("event", string(evt.Type)), zap.Error(err))
		return
	}
	for _, conn := range r.recipients("") {
		conn.Send(payload)
	}
}

func (r *Registry) recipients(gameCode string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	var conns []Conn
	for _, e := range r.byPlayer {
		if e.state != stateConnected {
			continue
		}
		if gameCode != "" && e.gameCode != gameCode {
			continue
		}
		conns = append(conns, e.conn)
	}
	return conns
}

// Connected reports whether the player currently has a live connection.
func (r *Registry) Connected(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.byPlayer[playerID]
	return e != nil && e.state == stateConnected
}

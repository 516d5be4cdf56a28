// Package hub owns the map of live session actors, one per game code.
package hub

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/escala-game/escala-backend/internal/engine"
	"github.com/escala-game/escala-backend/internal/session"
	"github.com/escala-game/escala-backend/pkg/types"
)

// Store is the persistence surface the hub needs on top of what every
// session uses.
type Store interface {
	session.Store
	LoadGame(ctx context.Context, code string) (*engine.Game, error)
	PlayersByGame(ctx context.Context, code string) ([]*engine.Player, error)
	ListPlayingGames(ctx context.Context) ([]*engine.Game, error)
}

// Broadcaster extends the per-game fan-out with a global channel for events
// that predate any connection being tied to the game (GAME_CREATED).
type Broadcaster interface {
	session.Broadcaster
	BroadcastAll(evt types.Event)
}

type HubMsg interface{ isHubMsg() }

type CreateGame struct {
	Code         string
	RoundSeconds int
	Reply        chan CreateReply
}

type CreateReply struct {
	Sess *session.Session
	Err  error
}

// GetSession resolves a session actor, lazily rebuilding one from the store
// when the game exists but has no live actor (e.g. a waiting game after a
// restart). Replies nil when the game does not exist at all.
type GetSession struct {
	Code  string
	Reply chan *session.Session
}

type RemoveSession struct{ Code string }

type ShutdownHub struct{}

func (CreateGame) isHubMsg()    {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

type Deps struct {
	Store     Store
	Timers    session.Timers
	Broadcast Broadcaster
	Seed      int64
	Now       func() time.Time
	Log       *zap.Logger
}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	deps     Deps
	rng      *rand.Rand
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, deps Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Seed == 0 {
		deps.Seed = time.Now().UnixNano()
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		deps:     deps,
		rng:      rand.New(rand.NewSource(deps.Seed)),
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Get is a convenience wrapper around the GetSession message.
func (h *Hub) Get(code string) *session.Session {
	reply := make(chan *session.Session, 1)
	h.inbox <- GetSession{Code: code, Reply: reply}
	return <-reply
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return
		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateGame:
				msg.Reply <- h.create(msg.Code, msg.RoundSeconds)
			case GetSession:
				msg.Reply <- h.resolve(msg.Code)
			case RemoveSession:
				delete(h.sessions, msg.Code)
			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, s := range h.sessions {
		s.Inbox() <- session.Shutdown{}
	}
	clear(h.sessions)
	h.cancel()
}

func (h *Hub) sessionDeps() session.Deps {
	return session.Deps{
		Store:     h.deps.Store,
		Timers:    h.deps.Timers,
		Broadcast: h.deps.Broadcast,
		RNG:       rand.New(rand.NewSource(h.rng.Int63())),
		Now:       h.deps.Now,
		Log:       h.deps.Log,
	}
}

func (h *Hub) create(code string, roundSeconds int) CreateReply {
	if !engine.ValidRoundDuration(roundSeconds) {
		return CreateReply{Err: engine.Validation("round duration must be 60, 120 or 180 seconds")}
	}
	if h.sessions[code] != nil {
		return CreateReply{Err: engine.Conflict("game code already in use: " + code)}
	}
	game := engine.NewGame(code, roundSeconds, h.rng, h.deps.Now())
	if err := h.deps.Store.SaveGame(h.ctx, game); err != nil {
		return CreateReply{Err: err}
	}
	s := session.New(h.ctx, game, nil, h.sessionDeps())
	h.sessions[code] = s
	h.deps.Broadcast.BroadcastAll(types.Event{
		Type:     types.EvtGameCreated,
		GameCode: code,
	})
	h.deps.Log.Info("game created", zap.String("game", code), zap.Int("roundSeconds", roundSeconds))
	return CreateReply{Sess: s}
}

func (h *Hub) resolve(code string) *session.Session {
	if s := h.sessions[code]; s != nil {
		return s
	}
	game, err := h.deps.Store.LoadGame(h.ctx, code)
	if err != nil {
		return nil
	}
	players, err := h.deps.Store.PlayersByGame(h.ctx, code)
	if err != nil {
		h.deps.Log.Error("loading roster failed", zap.String("game", code), zap.Error(err))
		return nil
	}
	s := session.New(h.ctx, game, players, h.sessionDeps())
	h.sessions[code] = s
	if game.State == engine.StatePlaying {
		s.ResumeTimer()
	}
	return s
}

// Recover rebuilds an actor and timer for every game persisted mid-play, so
// a restart continues countdowns from the stored checkpoint. A turn whose
// time fully elapsed while the process was down ends on the first tick.
func (h *Hub) Recover(ctx context.Context) error {
	games, err := h.deps.Store.ListPlayingGames(ctx)
	if err != nil {
		return err
	}
	for _, g := range games {
		if s := h.Get(g.Code); s != nil {
			h.deps.Log.Info("recovered playing game",
				zap.String("game", g.Code),
				zap.Int("timeRemaining", g.TimeRemaining))
		}
	}
	return nil
}

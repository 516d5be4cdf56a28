// Package session implements the game session orchestrator: one goroutine
// actor per game owning all of its mutable state.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escala-game/escala-backend/internal/engine"
	"github.com/escala-game/escala-backend/internal/store"
	"github.com/escala-game/escala-backend/pkg/types"
)

// Store is the slice of the persistence collaborator the actor needs.
type Store interface {
	SaveGame(ctx context.Context, g *engine.Game) error
	SavePlayer(ctx context.Context, p *engine.Player) error
	AppendMovement(ctx context.Context, m *store.Movement) error
	DeleteGame(ctx context.Context, code string) error
}

// Broadcaster fans an event out to a game's connected clients. Sends must not
// block the caller.
type Broadcaster interface {
	Broadcast(gameCode string, evt types.Event)
}

// Timers is the turn timer scheduler surface.
type Timers interface {
	Start(code string, tick func())
	Cancel(code string)
}

type Deps struct {
	Store     Store
	Timers    Timers
	Broadcast Broadcaster
	RNG       *rand.Rand
	Now       func() time.Time
	Log       *zap.Logger
}

type Session struct {
	inbox    chan Msg
	game     *engine.Game
	players  []*engine.Player
	departed map[string]bool

	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc
}

// New starts the actor for an existing game and roster. Timers are NOT armed
// here; Start (or hub recovery) arms them.
func New(parent context.Context, game *engine.Game, players []*engine.Player, deps Deps) *Session {
	ctx, cancel := context.WithCancel(parent)
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Session{
		inbox:    make(chan Msg, 64),
		game:     game,
		players:  players,
		departed: make(map[string]bool),
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
	}
	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) Code() string { return s.game.Code }

// tick posts a Tick without blocking; a full inbox means the actor is busy
// and will re-derive elapsed time on the next tick anyway.
func (s *Session) tick() {
	select {
	case s.inbox <- Tick{}:
	default:
	}
}

// ResumeTimer re-arms the countdown after restart recovery. The first tick
// catches up all wall-clock time elapsed while the process was down.
func (s *Session) ResumeTimer() {
	s.deps.Timers.Start(s.game.Code, s.tick)
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.deps.Timers.Cancel(s.game.Code)
			return
		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				p, err := s.handleJoin(msg.Name, msg.TeamID)
				msg.Reply <- JoinReply{Player: p, Err: err}
			case Start:
				msg.Reply <- s.handleStart()
			case PlaceMaterial:
				msg.Reply <- s.handlePlace(msg)
			case MakeGuess:
				msg.Reply <- s.handleGuess(msg)
			case ChangeTeam:
				msg.Reply <- s.handleChangeTeam(msg.PlayerID, msg.TeamID)
			case Tick:
				s.handleTick()
			case PlayerDeparted:
				s.handleDeparted(msg.PlayerID)
			case PlayerReturned:
				delete(s.departed, msg.PlayerID)
			case GetState:
				msg.Reply <- s.view()
			case Delete:
				msg.Reply <- s.handleDelete()
				s.cancel()
				return
			case Shutdown:
				s.deps.Timers.Cancel(s.game.Code)
				s.cancel()
				return
			}
		}
	}
}

// view snapshots the session for readers outside the actor. Everything is
// deep-copied; later in-place mutations (token removal, penalties) must never
// show through a snapshot already handed out.
func (s *Session) view() View {
	v := View{Game: s.game.Clone()}
	for _, p := range s.players {
		v.Players = append(v.Players, p.Clone())
	}
	for id := range s.departed {
		v.Departed = append(v.Departed, id)
	}
	return v
}

func (s *Session) gameView() *types.GameView {
	gv := &types.GameView{Game: s.game.Clone()}
	for _, p := range s.players {
		gv.Players = append(gv.Players, p.Clone())
	}
	return gv
}

func (s *Session) findPlayer(id string) *engine.Player {
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) broadcast(evt types.Event) {
	evt.GameCode = s.game.Code
	s.deps.Broadcast.Broadcast(s.game.Code, evt)
}

func (s *Session) appendMovement(playerID, action string, data store.MovementData) {
	m := &store.Movement{
		ID:         uuid.NewString(),
		GameCode:   s.game.Code,
		PlayerID:   playerID,
		ActionType: action,
		Data:       data,
		CreatedAt:  s.deps.Now(),
	}
	if err := s.deps.Store.AppendMovement(s.ctx, m); err != nil {
		s.deps.Log.Warn("append movement failed",
			zap.String("game", s.game.Code),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *Session) handleJoin(name string, teamID int) (*engine.Player, error) {
	if s.game.State != engine.StateWaiting {
		return nil, engine.Precondition("game is not joinable")
	}
	if len(s.players) >= engine.MaxPlayers {
		return nil, engine.Precondition(fmt.Sprintf("maximum of %d players allowed", engine.MaxPlayers))
	}
	if teamID < engine.MinTeamID || teamID > engine.MaxTeamID {
		return nil, engine.Validation(fmt.Sprintf("team must be between %d and %d", engine.MinTeamID, engine.MaxTeamID))
	}
	if engine.TeamCounts(s.players)[teamID] >= engine.MaxTeamSize {
		return nil, engine.Conflict(fmt.Sprintf("team %d already has %d players", teamID, engine.MaxTeamSize))
	}
	var used []int
	for _, p := range s.players {
		used = append(used, p.TurnOrder)
	}
	order, ok := engine.AssignTurnOrder(s.deps.RNG, used)
	if !ok {
		return nil, engine.Precondition("no turn order slot available")
	}
	if name == "" {
		name = fmt.Sprintf("Player %d", len(s.players)+1)
	}

	player := &engine.Player{
		ID:        uuid.NewString(),
		GameCode:  s.game.Code,
		Name:      name,
		TeamID:    teamID,
		TurnOrder: order,
		Pieces:    engine.StartingPieces,
		Materials: engine.StartingMaterials(),
	}
	// Persist before touching the roster so a storage failure leaves the
	// session exactly as it was.
	if err := s.deps.Store.SavePlayer(s.ctx, player); err != nil {
		return nil, err
	}
	becomesCreator := len(s.players) == 0
	if becomesCreator {
		s.game.CreatorID = player.ID
	}
	if err := s.deps.Store.SaveGame(s.ctx, s.game); err != nil {
		if becomesCreator {
			s.game.CreatorID = ""
		}
		return nil, err
	}
	s.players = append(s.players, player)
	s.appendMovement(player.ID, store.ActionJoinGame, store.MovementData{})

	creatorName := ""
	if creator := s.findPlayer(s.game.CreatorID); creator != nil {
		creatorName = creator.Name
	}
	pub := player.Clone()
	s.broadcast(types.Event{
		Type:        types.EvtPlayerJoined,
		PlayerID:    player.ID,
		Player:      &pub,
		CreatorID:   s.game.CreatorID,
		CreatorName: creatorName,
	})
	reply := player.Clone()
	return &reply, nil
}

func (s *Session) handleStart() error {
	if s.game.State != engine.StateWaiting {
		return engine.Precondition("game already started or finished")
	}
	if len(s.players) < 2 {
		return engine.Precondition("at least 2 players are required to start")
	}
	teams := engine.ActiveTeams(s.players)
	if len(teams) < 2 {
		return engine.Precondition("at least 2 distinct teams are required to start")
	}
	if s.game.CreatorID == "" {
		return engine.Precondition("game has no creator")
	}

	now := s.deps.Now()
	s.game.State = engine.StatePlaying
	s.game.StartTime = now
	s.game.CurrentTeam = teams[0]
	s.game.PlacedThisTurn = 0
	s.game.TimeRemaining = s.game.RoundSeconds
	s.game.LastTick = now

	if err := s.deps.Store.SaveGame(s.ctx, s.game); err != nil {
		return err
	}

	creatorName := ""
	if creator := s.findPlayer(s.game.CreatorID); creator != nil {
		creatorName = creator.Name
	}
	s.broadcast(types.Event{
		Type:        types.EvtGameStarted,
		CreatorID:   s.game.CreatorID,
		CreatorName: creatorName,
		GameState:   s.gameView(),
	})

	// One material's true weight is revealed to everyone at the start.
	revealed := engine.Materials[s.deps.RNG.Intn(len(engine.Materials))]
	s.broadcast(types.Event{
		Type:     types.EvtMaterialWeightRevealed,
		Material: revealed,
		Weight:   s.game.Weights[revealed],
	})

	s.deps.Timers.Start(s.game.Code, s.tick)
	return nil
}

func (s *Session) handlePlace(msg PlaceMaterial) PlaceReply {
	if s.game.State != engine.StatePlaying {
		return PlaceReply{Err: engine.Precondition("game is not in progress")}
	}
	player := s.findPlayer(msg.PlayerID)
	if player == nil {
		return PlaceReply{Err: engine.NotFound("player not found: " + msg.PlayerID)}
	}
	if player.IsEliminated {
		return PlaceReply{Err: engine.Precondition("player is eliminated")}
	}
	if player.TeamID != s.game.CurrentTeam {
		return PlaceReply{Err: engine.Precondition(fmt.Sprintf("it is team %d's turn", s.game.CurrentTeam))}
	}
	if !player.CanAct() {
		return PlaceReply{Err: engine.Precondition("player must keep at least one token in reserve")}
	}
	if msg.BalanceType != engine.BalanceMain && msg.BalanceType != engine.BalanceSecondary {
		return PlaceReply{Err: engine.Validation("invalid balance type: " + string(msg.BalanceType))}
	}
	if msg.Side != engine.SideLeft && msg.Side != engine.SideRight {
		return PlaceReply{Err: engine.Validation("invalid side: " + string(msg.Side))}
	}
	token, ok := player.RemoveToken(msg.MaterialID)
	if !ok {
		return PlaceReply{Err: engine.NotFound("material not found: " + msg.MaterialID)}
	}

	balance := s.game.Balance(msg.BalanceType)
	engine.Place(balance, msg.Side, token.Kind, player.ID, s.game.Weights)
	s.game.PlacedThisTurn++

	if err := s.deps.Store.SavePlayer(s.ctx, player); err != nil {
		return PlaceReply{Err: err}
	}
	if err := s.deps.Store.SaveGame(s.ctx, s.game); err != nil {
		return PlaceReply{Err: err}
	}
	tok := token
	s.appendMovement(player.ID, store.ActionPlaceMaterial, store.MovementData{
		Material:    &tok,
		BalanceType: msg.BalanceType,
		Side:        msg.Side,
	})

	s.broadcast(types.Event{
		Type:           types.EvtMaterialPlaced,
		PlayerID:       player.ID,
		BalanceType:    msg.BalanceType,
		Side:           msg.Side,
		Material:       &tok,
		IsBalanced:     boolPtr(balance.IsBalanced),
		PlacedThisTurn: intPtr(s.game.PlacedThisTurn),
	})

	// The reserve floor keeps a placement from emptying the bag, but a sweep
	// here keeps the invariant local rather than waiting for turn end.
	s.sweepEliminations()
	return PlaceReply{Material: token, IsBalanced: balance.IsBalanced}
}

func (s *Session) handleGuess(msg MakeGuess) GuessReply {
	fail := func(err error) GuessReply { return GuessReply{Err: err} }

	if s.game.State != engine.StatePlaying {
		return fail(engine.Precondition("game is not in progress"))
	}
	player := s.findPlayer(msg.PlayerID)
	if player == nil {
		return fail(engine.NotFound("player not found: " + msg.PlayerID))
	}
	if player.IsEliminated {
		return fail(engine.Precondition("player is eliminated"))
	}
	if player.TeamID != s.game.CurrentTeam {
		return fail(engine.Precondition(fmt.Sprintf("it is team %d's turn", s.game.CurrentTeam)))
	}
	if !player.CanAct() {
		return fail(engine.Precondition("player must keep at least one token in reserve"))
	}
	if !s.game.MainBalance.IsBalanced {
		return fail(engine.Precondition("main balance is not balanced"))
	}
	if player.Pieces <= 0 {
		return fail(engine.Precondition("no guess tokens available"))
	}
	if player.HasGuessed {
		return fail(engine.Conflict("player has already made a guess"))
	}

	now := s.deps.Now()
	results, allCorrect, err := engine.EvaluateGuess(s.game.Weights, msg.Guesses, now)
	if err != nil {
		return fail(err)
	}

	player.Pieces--
	player.Guesses = append(player.Guesses, results...)
	player.HasGuessed = true

	if allCorrect {
		player.Pieces += 2
		s.game.State = engine.StateFinished
		s.game.EndTime = now
		s.game.WinningTeam = player.TeamID
		for _, p := range s.players {
			if p.TeamID == player.TeamID {
				s.game.Winners = append(s.game.Winners, p.ID)
			}
		}
		s.deps.Timers.Cancel(s.game.Code)
	}

	if err := s.deps.Store.SavePlayer(s.ctx, player); err != nil {
		return fail(err)
	}
	if err := s.deps.Store.SaveGame(s.ctx, s.game); err != nil {
		return fail(err)
	}
	s.appendMovement(player.ID, store.ActionMakeGuess, store.MovementData{
		Guesses:     results,
		GuessResult: boolPtr(allCorrect),
	})

	s.broadcast(types.Event{
		Type:           types.EvtGuessMade,
		PlayerID:       player.ID,
		Guesses:        results,
		GuessResult:    boolPtr(allCorrect),
		NewPiecesTotal: intPtr(player.Pieces),
		GameState:      s.gameView(),
	})
	if allCorrect {
		s.broadcast(types.Event{
			Type:      types.EvtGameEnded,
			Message:   fmt.Sprintf("team %d guessed every weight", player.TeamID),
			GameState: s.gameView(),
		})
	}
	return GuessReply{Results: results, AllCorrect: allCorrect, Pieces: player.Pieces, GameState: s.game.State}
}

func (s *Session) handleChangeTeam(playerID string, teamID int) error {
	if s.game.State != engine.StateWaiting {
		return engine.Precondition("teams can only change before the game starts")
	}
	player := s.findPlayer(playerID)
	if player == nil {
		return engine.NotFound("player not found: " + playerID)
	}
	if teamID < engine.MinTeamID || teamID > engine.MaxTeamID {
		return engine.Validation(fmt.Sprintf("team must be between %d and %d", engine.MinTeamID, engine.MaxTeamID))
	}
	if teamID == player.TeamID {
		return nil
	}
	if engine.TeamCounts(s.players)[teamID] >= engine.MaxTeamSize {
		return engine.Conflict(fmt.Sprintf("team %d already has %d players", teamID, engine.MaxTeamSize))
	}
	player.TeamID = teamID
	if err := s.deps.Store.SavePlayer(s.ctx, player); err != nil {
		return err
	}
	s.broadcast(types.Event{
		Type:     types.EvtPlayerTeamChanged,
		PlayerID: player.ID,
		TeamID:   teamID,
	})
	return nil
}

// handleTick re-derives remaining time from the last checkpoint. The counter
// is never trusted across a suspension; only lastTick is.
func (s *Session) handleTick() {
	if s.game.State != engine.StatePlaying {
		s.deps.Timers.Cancel(s.game.Code)
		return
	}
	now := s.deps.Now()
	elapsed := int(now.Sub(s.game.LastTick).Seconds())
	if elapsed <= 0 {
		return
	}
	remaining := s.game.TimeRemaining - elapsed
	if remaining < 0 {
		remaining = 0
	}
	s.game.TimeRemaining = remaining
	s.game.LastTick = now

	if remaining == 0 {
		s.endTurn(now)
		return
	}

	if err := s.deps.Store.SaveGame(s.ctx, s.game); err != nil {
		// A failed write mid-tick leaves persisted state behind the live
		// one; tear the timer down instead of ticking against it.
		s.deps.Log.Error("tick persist failed, stopping timer",
			zap.String("game", s.game.Code), zap.Error(err))
		s.deps.Timers.Cancel(s.game.Code)
		return
	}
	s.broadcast(types.Event{
		Type:          types.EvtTimerUpdate,
		TimeRemaining: intPtr(remaining),
		ServerTime:    timePtr(now),
	})
}

// endTurn composes penalty, elimination sweep, rotation and timer restart.
func (s *Session) endTurn(now time.Time) {
	if s.game.PlacedThisTurn < engine.MinPlacements {
		if victim := engine.PenaltyVictim(s.deps.RNG, s.players, s.game.CurrentTeam); victim != nil {
			removed := engine.RemoveRandomTokens(s.deps.RNG, victim, engine.PenaltyTokens)
			if err := s.deps.Store.SavePlayer(s.ctx, victim); err != nil {
				s.deps.Log.Error("penalty persist failed", zap.String("game", s.game.Code), zap.Error(err))
			}
			s.broadcast(types.Event{
				Type:     types.EvtPenaltyApplied,
				PlayerID: victim.ID,
				Message:  fmt.Sprintf("team %d placed fewer than %d materials: %s lost %d token(s)", s.game.CurrentTeam, engine.MinPlacements, victim.Name, len(removed)),
			})
		}
	}

	s.sweepEliminations()
	s.appendMovement("", store.ActionEndTurn, store.MovementData{})

	next, ok := engine.NextActiveTeam(s.game.CurrentTeam, s.players)
	if !ok {
		s.finish(now, "no active teams remain")
		return
	}

	s.game.CurrentTeam = next
	s.game.PlacedThisTurn = 0
	s.game.TimeRemaining = s.game.RoundSeconds
	s.game.LastTick = now

	if err := s.deps.Store.SaveGame(s.ctx, s.game); err != nil {
		s.deps.Log.Error("turn change persist failed, stopping timer",
			zap.String("game", s.game.Code), zap.Error(err))
		s.deps.Timers.Cancel(s.game.Code)
		return
	}
	s.deps.Timers.Start(s.game.Code, s.tick)
	s.broadcast(types.Event{
		Type:          types.EvtTurnChanged,
		CurrentTeam:   next,
		TimeRemaining: intPtr(s.game.TimeRemaining),
		ServerTime:    timePtr(now),
	})
}

func (s *Session) sweepEliminations() {
	for _, p := range engine.SweepEliminations(s.players) {
		if err := s.deps.Store.SavePlayer(s.ctx, p); err != nil {
			s.deps.Log.Error("elimination persist failed", zap.String("player", p.ID), zap.Error(err))
		}
		s.broadcast(types.Event{
			Type:     types.EvtPlayerEliminated,
			PlayerID: p.ID,
			Message:  p.Name + " has no materials left and is eliminated",
		})
	}
}

func (s *Session) finish(now time.Time, reason string) {
	s.game.State = engine.StateFinished
	s.game.EndTime = now
	s.deps.Timers.Cancel(s.game.Code)
	if err := s.deps.Store.SaveGame(s.ctx, s.game); err != nil {
		s.deps.Log.Error("finish persist failed", zap.String("game", s.game.Code), zap.Error(err))
	}
	s.broadcast(types.Event{
		Type:      types.EvtGameEnded,
		Message:   reason,
		GameState: s.gameView(),
	})
}

// handleDeparted runs after a disconnect outlived its grace window. If the
// turn-holding team has nobody left who is connected and not eliminated, the
// turn ends as if its timer expired so an abandoned team cannot stall the
// game.
func (s *Session) handleDeparted(playerID string) {
	player := s.findPlayer(playerID)
	if player == nil {
		return
	}
	s.departed[playerID] = true
	s.appendMovement(playerID, store.ActionLeaveGame, store.MovementData{})
	s.broadcast(types.Event{
		Type:     types.EvtPlayerLeft,
		PlayerID: playerID,
	})

	if s.game.State != engine.StatePlaying {
		return
	}
	for _, p := range s.players {
		if p.TeamID == s.game.CurrentTeam && !p.IsEliminated && !s.departed[p.ID] {
			return
		}
	}
	s.endTurn(s.deps.Now())
}

func (s *Session) handleDelete() error {
	s.deps.Timers.Cancel(s.game.Code)
	s.broadcast(types.Event{Type: types.EvtGameDeleted})
	return s.deps.Store.DeleteGame(s.ctx, s.game.Code)
}

func boolPtr(b bool) *bool           { return &b }
func intPtr(i int) *int              { return &i }
func timePtr(t time.Time) *time.Time { return &t }

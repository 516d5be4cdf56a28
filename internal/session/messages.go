package session

import (
	"github.com/escala-game/escala-backend/internal/engine"
)

// Msg is anything the session actor accepts on its inbox. REST actions,
// websocket actions, timer ticks and departure notices all arrive here, so
// every mutation of one game is serialized by a single loop.
type Msg interface{ isSessionMsg() }

type Join struct {
	Name   string
	TeamID int
	Reply  chan JoinReply
}

type JoinReply struct {
	Player *engine.Player
	Err    error
}

type Start struct {
	Reply chan error
}

type PlaceMaterial struct {
	PlayerID    string
	MaterialID  string
	BalanceType engine.BalanceType
	Side        engine.Side
	Reply       chan PlaceReply
}

type PlaceReply struct {
	Material   engine.Token
	IsBalanced bool
	Err        error
}

type MakeGuess struct {
	PlayerID string
	Guesses  []engine.Guess
	Reply    chan GuessReply
}

type GuessReply struct {
	Results    []engine.GuessResult
	AllCorrect bool
	Pieces     int
	GameState  engine.GameState
	Err        error
}

type ChangeTeam struct {
	PlayerID string
	TeamID   int
	Reply    chan error
}

// Tick is posted by the timer scheduler once per second while the game is
// playing.
type Tick struct{}

// PlayerDeparted is posted by the connection registry after a disconnect
// outlives the grace window.
type PlayerDeparted struct{ PlayerID string }

// PlayerReturned clears a departure when the player re-announces identity.
type PlayerReturned struct{ PlayerID string }

type GetState struct {
	Reply chan View
}

// View is a point-in-time copy of the session, safe to read outside the
// actor.
type View struct {
	Game     engine.Game
	Players  []engine.Player
	Departed []string
}

type Delete struct {
	Reply chan error
}

type Shutdown struct{}

func (Join) isSessionMsg()           {}
func (Start) isSessionMsg()          {}
func (PlaceMaterial) isSessionMsg()  {}
func (MakeGuess) isSessionMsg()      {}
func (ChangeTeam) isSessionMsg()     {}
func (Tick) isSessionMsg()           {}
func (PlayerDeparted) isSessionMsg() {}
func (PlayerReturned) isSessionMsg() {}
func (GetState) isSessionMsg()       {}
func (Delete) isSessionMsg()         {}
func (Shutdown) isSessionMsg()       {}

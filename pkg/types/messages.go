package types

import (
	"time"

	"github.com/escala-game/escala-backend/internal/engine"
)

// Broadcast event taxonomy. Every payload carries the game code.
type EventType string

const (
	EvtGameCreated            EventType = "GAME_CREATED"
	EvtGameStarted            EventType = "GAME_STARTED"
	EvtMaterialWeightRevealed EventType = "MATERIAL_WEIGHT_REVEALED"
	EvtTimerUpdate            EventType = "TIMER_UPDATE"
	EvtMaterialPlaced         EventType = "MATERIAL_PLACED"
	EvtGuessMade              EventType = "GUESS_MADE"
	EvtPenaltyApplied         EventType = "PENALTY_APPLIED"
	EvtPlayerEliminated       EventType = "PLAYER_ELIMINATED"
	EvtTurnChanged            EventType = "TURN_CHANGED"
	EvtGameEnded              EventType = "GAME_ENDED"
	EvtPlayerJoined           EventType = "PLAYER_JOINED"
	EvtPlayerLeft             EventType = "PLAYER_LEFT"
	EvtPlayerTeamChanged      EventType = "PLAYER_TEAM_CHANGED"
	EvtGameDeleted            EventType = "GAME_DELETED"
)

// GameView is the public-safe projection of a session: everything a client
// may see. Material weights never appear here (engine.Game excludes them from
// JSON); they are only selectively revealed through
// MATERIAL_WEIGHT_REVEALED events.
type GameView struct {
	engine.Game
	Players []engine.Player `json:"players"`
}

// Event is one server-to-client broadcast, serialized flat. Optional fields
// are pointers where a zero value is meaningful (a timer at 0, an unbalanced
// scale).
type Event struct {
	Type           EventType            `json:"type"`
	GameCode       string               `json:"gameCode"`
	PlayerID       string               `json:"playerId,omitempty"`
	Player         *engine.Player       `json:"player,omitempty"`
	CreatorID      string               `json:"creatorId,omitempty"`
	CreatorName    string               `json:"creatorName,omitempty"`
	// Material carries the placed token on MATERIAL_PLACED and the bare
	// material kind on MATERIAL_WEIGHT_REVEALED; both ride the same key.
	Material       any                  `json:"material,omitempty"`
	Weight         int                  `json:"weight,omitempty"`
	BalanceType    engine.BalanceType   `json:"balanceType,omitempty"`
	Side           engine.Side          `json:"side,omitempty"`
	IsBalanced     *bool                `json:"isBalanced,omitempty"`
	PlacedThisTurn *int                 `json:"materialsPlacedThisTurn,omitempty"`
	Guesses        []engine.GuessResult `json:"guesses,omitempty"`
	GuessResult    *bool                `json:"guessResult,omitempty"`
	NewPiecesTotal *int                 `json:"newPiecesTotal,omitempty"`
	TeamID         int                  `json:"teamId,omitempty"`
	CurrentTeam    int                  `json:"currentTeam,omitempty"`
	TimeRemaining  *int                 `json:"timeRemaining,omitempty"`
	ServerTime     *time.Time           `json:"serverTime,omitempty"`
	Message        string               `json:"message,omitempty"`
	GameState      *GameView            `json:"gameState,omitempty"`
}

// Client-to-server websocket messages. A client identifies itself by sending
// its player id on every frame; re-announcing identity after a drop is the
// reconnect handshake.
type ClientMessage struct {
	Type       string      `json:"type"` // "JOIN_GAME" | "START_GAME" | "GAME_ACTION"
	PlayerID   string      `json:"playerId"`
	GameCode   string      `json:"gameCode"`
	ActionType string      `json:"actionType,omitempty"` // "PLACE_MATERIAL" | "MAKE_GUESS"
	ActionData *ActionData `json:"actionData,omitempty"`
}

type ActionData struct {
	MaterialID  string             `json:"materialId,omitempty"`
	BalanceType engine.BalanceType `json:"balanceType,omitempty"`
	Side        engine.Side        `json:"side,omitempty"`
	Guesses     []engine.Guess     `json:"guesses,omitempty"`
}

// ErrorMessage is sent to a single client whose frame could not be handled.
type ErrorMessage struct {
	Type    string `json:"type"` // always "ERROR"
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

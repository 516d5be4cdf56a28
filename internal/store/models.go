package store

import (
	"time"

	"github.com/escala-game/escala-backend/internal/engine"
)

// GameRecord is the persisted form of a session. Nested structures ride in
// JSON columns via gorm's built-in serializer.
type GameRecord struct {
	Code             string         `gorm:"primaryKey"`
	State            string         `gorm:"index"`
	CreatorID        string
	Weights          engine.Weights `gorm:"serializer:json"`
	MainBalance      engine.Balance `gorm:"serializer:json"`
	SecondaryBalance engine.Balance `gorm:"serializer:json"`
	CurrentTeam      int
	PlacedThisTurn   int
	RoundSeconds     int
	TimeRemaining    int
	LastTick         time.Time
	StartTime        time.Time
	EndTime          time.Time
	WinningTeam      int
	Winners          []string `gorm:"serializer:json"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (GameRecord) TableName() string { return "games" }

type PlayerRecord struct {
	ID           string               `gorm:"primaryKey"`
	GameCode     string               `gorm:"index"`
	Name         string
	TeamID       int
	TurnOrder    int
	Pieces       int
	Materials    []engine.Token       `gorm:"serializer:json"`
	Guesses      []engine.GuessResult `gorm:"serializer:json"`
	HasGuessed   bool
	IsEliminated bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (PlayerRecord) TableName() string { return "players" }

// Movement action kinds, append-only audit taxonomy.
const (
	ActionJoinGame      = "JOIN_GAME"
	ActionPlaceMaterial = "PLACE_MATERIAL"
	ActionMakeGuess     = "MAKE_GUESS"
	ActionEndTurn       = "END_TURN"
	ActionLeaveGame     = "LEAVE_GAME"
)

// MovementData holds the action-specific payload of an audit record.
type MovementData struct {
	Material    *engine.Token        `json:"material,omitempty"`
	BalanceType engine.BalanceType   `json:"balanceType,omitempty"`
	Side        engine.Side          `json:"side,omitempty"`
	Guesses     []engine.GuessResult `json:"guesses,omitempty"`
	GuessResult *bool                `json:"guessResult,omitempty"`
}

// Movement is one immutable audit record. Never updated, only appended and
// eventually cascaded away with its game.
type Movement struct {
	ID         string       `gorm:"primaryKey" json:"id"`
	GameCode   string       `gorm:"index" json:"gameCode"`
	PlayerID   string       `gorm:"index" json:"playerId"`
	ActionType string       `json:"actionType"`
	Data       MovementData `gorm:"serializer:json" json:"data"`
	CreatedAt  time.Time    `json:"createdAt"`
}

func (Movement) TableName() string { return "movements" }

func gameToRecord(g *engine.Game) *GameRecord {
	return &GameRecord{
		Code:             g.Code,
		State:            string(g.State),
		CreatorID:        g.CreatorID,
		Weights:          g.Weights,
		MainBalance:      g.MainBalance,
		SecondaryBalance: g.SecondaryBalance,
		CurrentTeam:      g.CurrentTeam,
		PlacedThisTurn:   g.PlacedThisTurn,
		RoundSeconds:     g.RoundSeconds,
		TimeRemaining:    g.TimeRemaining,
		LastTick:         g.LastTick,
		StartTime:        g.StartTime,
		EndTime:          g.EndTime,
		WinningTeam:      g.WinningTeam,
		Winners:          g.Winners,
	}
}

func recordToGame(r *GameRecord) *engine.Game {
	return &engine.Game{
		Code:             r.Code,
		State:            engine.GameState(r.State),
		CreatorID:        r.CreatorID,
		Weights:          r.Weights,
		MainBalance:      r.MainBalance,
		SecondaryBalance: r.SecondaryBalance,
		CurrentTeam:      r.CurrentTeam,
		PlacedThisTurn:   r.PlacedThisTurn,
		RoundSeconds:     r.RoundSeconds,
		TimeRemaining:    r.TimeRemaining,
		LastTick:         r.LastTick,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		WinningTeam:      r.WinningTeam,
		Winners:          r.Winners,
	}
}

func playerToRecord(p *engine.Player) *PlayerRecord {
	return &PlayerRecord{
		ID:           p.ID,
		GameCode:     p.GameCode,
		Name:         p.Name,
		TeamID:       p.TeamID,
		TurnOrder:    p.TurnOrder,
		Pieces:       p.Pieces,
		Materials:    p.Materials,
		Guesses:      p.Guesses,
		HasGuessed:   p.HasGuessed,
		IsEliminated: p.IsEliminated,
	}
}

func recordToPlayer(r *PlayerRecord) *engine.Player {
	return &engine.Player{
		ID:           r.ID,
		GameCode:     r.GameCode,
		Name:         r.Name,
		TeamID:       r.TeamID,
		TurnOrder:    r.TurnOrder,
		Pieces:       r.Pieces,
		Materials:    r.Materials,
		Guesses:      r.Guesses,
		HasGuessed:   r.HasGuessed,
		IsEliminated: r.IsEliminated,
	}
}

package engine

import (
	"fmt"
	"maps"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Material is one of the five token kinds in play. Each kind has a hidden
// weight fixed at game creation.
type Material string

const (
	MaterialRed    Material = "red"
	MaterialYellow Material = "yellow"
	MaterialGreen  Material = "green"
	MaterialBlue   Material = "blue"
	MaterialPurple Material = "purple"
)

var Materials = []Material{MaterialRed, MaterialYellow, MaterialGreen, MaterialBlue, MaterialPurple}

func ValidMaterial(m Material) bool {
	for _, k := range Materials {
		if k == m {
			return true
		}
	}
	return false
}

type GameState string

const (
	StateWaiting  GameState = "waiting"
	StatePlaying  GameState = "playing"
	StateFinished GameState = "finished"
)

type BalanceType string

const (
	BalanceMain      BalanceType = "main"
	BalanceSecondary BalanceType = "secondary"
)

type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

const (
	MaxPlayers     = 10
	MaxTeamSize    = 2
	MinTeamID      = 1
	MaxTeamID      = 5
	StartingPieces = 2
	TokensPerKind  = 2
	// ReserveFloor is the number of tokens a player must keep in hand. A
	// player at or below the floor can neither place nor guess.
	ReserveFloor = 1
	MinWeight    = 1
	MaxWeight    = 20
	// MinPlacements is how many tokens a team must place per turn to avoid
	// the end-of-turn penalty.
	MinPlacements = 2
	PenaltyTokens = 2
)

var RoundDurations = []int{60, 120, 180}

func ValidRoundDuration(seconds int) bool {
	for _, d := range RoundDurations {
		if d == seconds {
			return true
		}
	}
	return false
}

// Weights maps each material kind to its hidden weight for one game.
type Weights map[Material]int

// GenerateWeights assigns every kind an even weight in [2,20]. Only even
// weights are ever generated even though guesses are validated against the
// full 1..20 range.
func GenerateWeights(rng *rand.Rand) Weights {
	w := make(Weights, len(Materials))
	for _, m := range Materials {
		w[m] = (rng.Intn(10) + 1) * 2
	}
	return w
}

// Token is a placeable unit owned by a player.
type Token struct {
	Kind Material `json:"type"`
	ID   string   `json:"id"`
}

// StartingMaterials builds the fixed opening bag: two tokens of each kind.
func StartingMaterials() []Token {
	tokens := make([]Token, 0, len(Materials)*TokensPerKind)
	for _, m := range Materials {
		for i := 0; i < TokensPerKind; i++ {
			tokens = append(tokens, Token{Kind: m, ID: uuid.NewString()})
		}
	}
	return tokens
}

// BalanceEntry is one placed token on a balance side.
type BalanceEntry struct {
	Kind     Material `json:"type"`
	PlayerID string   `json:"playerId"`
}

type Balance struct {
	LeftSide   []BalanceEntry `json:"leftSide"`
	RightSide  []BalanceEntry `json:"rightSide"`
	IsBalanced bool           `json:"isBalanced"`
}

func sideWeight(entries []BalanceEntry, w Weights) int {
	sum := 0
	for _, e := range entries {
		sum += w[e.Kind]
	}
	return sum
}

// Place appends a token to the named side and recomputes IsBalanced against
// the game's weight table.
func Place(b *Balance, side Side, kind Material, playerID string, w Weights) {
	entry := BalanceEntry{Kind: kind, PlayerID: playerID}
	if side == SideLeft {
		b.LeftSide = append(b.LeftSide, entry)
	} else {
		b.RightSide = append(b.RightSide, entry)
	}
	b.IsBalanced = sideWeight(b.LeftSide, w) == sideWeight(b.RightSide, w)
}

// Guess is one submitted (kind, weight) pair.
type Guess struct {
	Kind   Material `json:"type"`
	Weight int      `json:"weight"`
}

// GuessResult is a Guess annotated with its correctness.
type GuessResult struct {
	Kind      Material  `json:"type"`
	Weight    int       `json:"weight"`
	IsCorrect bool      `json:"isCorrect"`
	Time      time.Time `json:"time"`
}

// EvaluateGuess validates every submitted entry and marks correctness against
// the hidden weights. allCorrect is true only for a non-empty, fully correct
// submission; a partial submission still wins when every entry is correct.
func EvaluateGuess(w Weights, guesses []Guess, now time.Time) ([]GuessResult, bool, error) {
	if len(guesses) == 0 {
		return nil, false, Validation("guess list is empty")
	}
	results := make([]GuessResult, 0, len(guesses))
	allCorrect := true
	for _, g := range guesses {
		if !ValidMaterial(g.Kind) {
			return nil, false, Validation(fmt.Sprintf("invalid material kind: %s", g.Kind))
		}
		if g.Weight < MinWeight || g.Weight > MaxWeight {
			return nil, false, Validation(fmt.Sprintf("invalid weight for %s: %d", g.Kind, g.Weight))
		}
		correct := w[g.Kind] == g.Weight
		if !correct {
			allCorrect = false
		}
		results = append(results, GuessResult{Kind: g.Kind, Weight: g.Weight, IsCorrect: correct, Time: now})
	}
	return results, allCorrect, nil
}

// Player is one participant in a game.
type Player struct {
	ID           string        `json:"id"`
	GameCode     string        `json:"gameCode"`
	Name         string        `json:"name"`
	TeamID       int           `json:"teamId"`
	TurnOrder    int           `json:"turnOrder"`
	Pieces       int           `json:"pieces"`
	Materials    []Token       `json:"materials"`
	Guesses      []GuessResult `json:"guesses"`
	HasGuessed   bool          `json:"hasGuessed"`
	IsEliminated bool          `json:"isEliminated"`
}

// Clone returns a deep copy of the player. RemoveToken and the penalty path
// shift the bag in place, so any player state handed outside the owning
// session actor must be detached first.
func (p *Player) Clone() Player {
	c := *p
	c.Materials = append([]Token(nil), p.Materials...)
	c.Guesses = append([]GuessResult(nil), p.Guesses...)
	return c
}

// RemoveToken takes the token with the given id out of the player's bag.
func (p *Player) RemoveToken(id string) (Token, bool) {
	for i, tok := range p.Materials {
		if tok.ID == id {
			p.Materials = append(p.Materials[:i], p.Materials[i+1:]...)
			return tok, true
		}
	}
	return Token{}, false
}

// CanAct reports whether the player may place or guess: not eliminated and
// holding more tokens than the reserve floor.
func (p *Player) CanAct() bool {
	return !p.IsEliminated && len(p.Materials) > ReserveFloor
}

// Game is the mutable state of one session. All mutation happens inside the
// owning session actor.
type Game struct {
	Code             string    `json:"code"`
	State            GameState `json:"state"`
	CreatorID        string    `json:"creatorId"`
	Weights          Weights   `json:"-"`
	MainBalance      Balance   `json:"mainBalance"`
	SecondaryBalance Balance   `json:"secondaryBalance"`
	CurrentTeam      int       `json:"currentTeam"`
	PlacedThisTurn   int       `json:"materialsPlacedThisTurn"`
	RoundSeconds     int       `json:"roundDuration"`
	TimeRemaining    int       `json:"timeRemaining"`
	LastTick         time.Time `json:"lastTick"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	WinningTeam      int       `json:"winningTeam"`
	Winners          []string  `json:"winners"`
}

// Clone returns a deep copy of the balance, detached from the original's
// side arrays.
func (b Balance) Clone() Balance {
	b.LeftSide = append([]BalanceEntry(nil), b.LeftSide...)
	b.RightSide = append([]BalanceEntry(nil), b.RightSide...)
	return b
}

// Clone returns a deep copy of the game, safe to read outside the owning
// session actor.
func (g *Game) Clone() Game {
	c := *g
	c.Weights = maps.Clone(g.Weights)
	c.MainBalance = g.MainBalance.Clone()
	c.SecondaryBalance = g.SecondaryBalance.Clone()
	c.Winners = append([]string(nil), g.Winners...)
	return c
}

// Balance returns the named balance, defaulting to main.
func (g *Game) Balance(t BalanceType) *Balance {
	if t == BalanceSecondary {
		return &g.SecondaryBalance
	}
	return &g.MainBalance
}

// NewGame creates a session in the waiting state with freshly randomized
// weights.
func NewGame(code string, roundSeconds int, rng *rand.Rand, now time.Time) *Game {
	return &Game{
		Code:          code,
		State:         StateWaiting,
		Weights:       GenerateWeights(rng),
		CurrentTeam:   MinTeamID,
		RoundSeconds:  roundSeconds,
		TimeRemaining: roundSeconds,
		LastTick:      now,
		StartTime:     now,
	}
}

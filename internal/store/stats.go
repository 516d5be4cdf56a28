package store

import (
	"context"
	"time"
)

// GameStats is the per-game report assembled from players and the movement
// log.
type GameStats struct {
	TotalPlayers     int            `json:"totalPlayers"`
	TotalMoves       int            `json:"totalMoves"`
	MovesPerPlayer   map[string]int `json:"movesPerPlayer"`
	CorrectGuesses   int            `json:"correctGuesses"`
	IncorrectGuesses int            `json:"incorrectGuesses"`
	GameState        string         `json:"gameState"`
	StartTime        time.Time      `json:"startTime"`
	EndTime          *time.Time     `json:"endTime,omitempty"`
	DurationSeconds  *float64       `json:"duration,omitempty"`
	Winners          []string       `json:"winners"`
}

type CountRow struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// MovementStats aggregates the audit log for one game.
type MovementStats struct {
	ActionCounts   []CountRow `json:"actionCounts"`
	PlayerCounts   []CountRow `json:"playerCounts"`
	Timeline       []CountRow `json:"timeline"`
	TotalMovements int64      `json:"totalMovements"`
}

func (s *Store) GameStats(ctx context.Context, code string) (*GameStats, error) {
	game, err := s.LoadGame(ctx, code)
	if err != nil {
		return nil, err
	}
	players, err := s.PlayersByGame(ctx, code)
	if err != nil {
		return nil, err
	}
	movements, err := s.MovementsByGame(ctx, code)
	if err != nil {
		return nil, err
	}

	stats := &GameStats{
		TotalPlayers:   len(players),
		TotalMoves:     len(movements),
		MovesPerPlayer: map[string]int{},
		GameState:      string(game.State),
		StartTime:      game.StartTime,
		Winners:        []string{},
	}
	if !game.EndTime.IsZero() {
		end := game.EndTime
		stats.EndTime = &end
		d := end.Sub(game.StartTime).Seconds()
		stats.DurationSeconds = &d
	}

	byID := map[string]int{}
	for _, m := range movements {
		byID[m.PlayerID]++
		if m.ActionType == ActionMakeGuess && m.Data.GuessResult != nil {
			if *m.Data.GuessResult {
				stats.CorrectGuesses++
			} else {
				stats.IncorrectGuesses++
			}
		}
	}
	winnerIDs := map[string]bool{}
	for _, id := range game.Winners {
		winnerIDs[id] = true
	}
	for _, p := range players {
		stats.MovesPerPlayer[p.Name] = byID[p.ID]
		if winnerIDs[p.ID] {
			stats.Winners = append(stats.Winners, p.Name)
		}
	}
	return stats, nil
}

func (s *Store) MovementStats(ctx context.Context, code string) (*MovementStats, error) {
	db := s.db.WithContext(ctx)
	stats := &MovementStats{}

	err := db.Model(&Movement{}).
		Select("action_type as key, count(*) as count").
		Where("game_code = ?", code).
		Group("action_type").
		Scan(&stats.ActionCounts).Error
	if err != nil {
		return nil, err
	}

	err = db.Model(&Movement{}).
		Select("player_id as key, count(*) as count").
		Where("game_code = ?", code).
		Group("player_id").
		Scan(&stats.PlayerCounts).Error
	if err != nil {
		return nil, err
	}

	err = db.Model(&Movement{}).
		Select("to_char(created_at, 'YYYY-MM-DD HH24:MI') as key, count(*) as count").
		Where("game_code = ?", code).
		Group("key").
		Order("key").
		Scan(&stats.Timeline).Error
	if err != nil {
		return nil, err
	}

	err = db.Model(&Movement{}).
		Where("game_code = ?", code).
		Count(&stats.TotalMovements).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

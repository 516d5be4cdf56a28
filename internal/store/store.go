package store

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/escala-game/escala-backend/internal/engine"
)

// Store is the key-addressable persistence collaborator. Each call is
// read-your-writes within this process; no call spans multiple entities in
// one transaction.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects to postgres and migrates the schema.
func Open(dsn string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&GameRecord{}, &PlayerRecord{}, &Movement{}); err != nil {
		return nil, err
	}
	return &Store{db: db, log: log}, nil
}

// New wraps an already-open gorm handle. Used by tests with alternate drivers.
func New(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) LoadGame(ctx context.Context, code string) (*engine.Game, error) {
	var rec GameRecord
	err := s.db.WithContext(ctx).First(&rec, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, engine.NotFound("game not found: " + code)
	}
	if err != nil {
		return nil, err
	}
	return recordToGame(&rec), nil
}

func (s *Store) SaveGame(ctx context.Context, g *engine.Game) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(gameToRecord(g)).Error
}

func (s *Store) AllGames(ctx context.Context) ([]*engine.Game, error) {
	var recs []GameRecord
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&recs).Error; err != nil {
		return nil, err
	}
	games := make([]*engine.Game, 0, len(recs))
	for i := range recs {
		games = append(games, recordToGame(&recs[i]))
	}
	return games, nil
}

// ListPlayingGames returns every game persisted mid-play, for restart
// recovery.
func (s *Store) ListPlayingGames(ctx context.Context) ([]*engine.Game, error) {
	var recs []GameRecord
	err := s.db.WithContext(ctx).
		Where("state = ?", string(engine.StatePlaying)).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	games := make([]*engine.Game, 0, len(recs))
	for i := range recs {
		games = append(games, recordToGame(&recs[i]))
	}
	return games, nil
}

func (s *Store) LoadPlayer(ctx context.Context, id string) (*engine.Player, error) {
	var rec PlayerRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, engine.NotFound("player not found: " + id)
	}
	if err != nil {
		return nil, err
	}
	return recordToPlayer(&rec), nil
}

func (s *Store) SavePlayer(ctx context.Context, p *engine.Player) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(playerToRecord(p)).Error
}

func (s *Store) PlayersByGame(ctx context.Context, code string) ([]*engine.Player, error) {
	var recs []PlayerRecord
	if err := s.db.WithContext(ctx).Where("game_code = ?", code).Order("turn_order").Find(&recs).Error; err != nil {
		return nil, err
	}
	players := make([]*engine.Player, 0, len(recs))
	for i := range recs {
		players = append(players, recordToPlayer(&recs[i]))
	}
	return players, nil
}

func (s *Store) AppendMovement(ctx context.Context, m *Movement) error {
	return s.db.WithContext(ctx).Create(m).Error
}

// DeleteGame removes the game and, as a consequence, its players and
// movements. Deletes are sequential, not transactional.
func (s *Store) DeleteGame(ctx context.Context, code string) error {
	db := s.db.WithContext(ctx)
	if err := db.Delete(&GameRecord{}, "code = ?", code).Error; err != nil {
		return err
	}
	if err := db.Delete(&PlayerRecord{}, "game_code = ?", code).Error; err != nil {
		return err
	}
	return db.Delete(&Movement{}, "game_code = ?", code).Error
}

func (s *Store) RecentMovements(ctx context.Context, limit int) ([]Movement, error) {
	var movements []Movement
	err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&movements).Error
	return movements, err
}

func (s *Store) MovementsByGame(ctx context.Context, code string) ([]Movement, error) {
	var movements []Movement
	err := s.db.WithContext(ctx).
		Where("game_code = ?", code).
		Order("created_at desc").
		Find(&movements).Error
	return movements, err
}

func (s *Store) MovementsByPlayer(ctx context.Context, playerID string) ([]Movement, error) {
	var movements []Movement
	err := s.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("created_at desc").
		Find(&movements).Error
	return movements, err
}

package jornettest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/jornet/internal/jornet"
)

var errNotFound = errors.New("not found")

// timestampLayout matches the naive timestamps the real service returns.
const timestampLayout = "2006-01-02T15:04:05"

type store struct {
	db *sql.DB
}

func (s *store) addLeaderboard(ctx context.Context, id, key uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leaderboards (id, key) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET key = excluded.key`,
		id, key)
	if err != nil {
		return fmt.Errorf("inserting leaderboard: %w", err)
	}
	return nil
}

func (s *store) leaderboardKey(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var key uuid.UUID
	err := s.db.QueryRowContext(ctx, `SELECT key FROM leaderboards WHERE id = ?`, id).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, errNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	return key, nil
}

func (s *store) createPlayer(ctx context.Context, p jornet.Player, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players (id, key, name, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Key, p.Name, now.Unix())
	if err != nil {
		return fmt.Errorf("inserting player: %w", err)
	}
	return nil
}

func (s *store) playerKey(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var key uuid.UUID
	err := s.db.QueryRowContext(ctx, `SELECT key FROM players WHERE id = ?`, id).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, errNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("querying player: %w", err)
	}
	return key, nil
}

func (s *store) addScore(ctx context.Context, leaderboard uuid.UUID, in jornet.ScoreInput) error {
	var meta sql.NullString
	if in.Meta != nil {
		meta = sql.NullString{String: *in.Meta, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (leaderboard_id, player_id, score, meta, timestamp) VALUES (?, ?, ?, ?, ?)`,
		leaderboard, in.Player, float64(in.Score), meta, int64(in.Timestamp))
	if err != nil {
		return fmt.Errorf("inserting score: %w", err)
	}
	return nil
}

// scores returns the leaderboard ranked by score, earliest submission first
// among ties.
func (s *store) scores(ctx context.Context, leaderboard uuid.UUID) ([]jornet.Score, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.score, p.name, s.meta, s.timestamp
		 FROM scores s JOIN players p ON p.id = s.player_id
		 WHERE s.leaderboard_id = ?
		 ORDER BY s.score DESC, s.id ASC`,
		leaderboard)
	if err != nil {
		return nil, fmt.Errorf("querying scores: %w", err)
	}
	defer rows.Close()

	scores := []jornet.Score{}
	for rows.Next() {
		var (
			value     float64
			name      string
			meta      sql.NullString
			timestamp int64
		)
		if err := rows.Scan(&value, &name, &meta, &timestamp); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		score := jornet.Score{
			Score:     float32(value),
			Player:    name,
			Timestamp: time.Unix(timestamp, 0).UTC().Format(timestampLayout),
		}
		if meta.Valid {
			score.Meta = &meta.String
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

func (s *store) ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

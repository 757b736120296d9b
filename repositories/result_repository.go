package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rowerg/live-platform/models"
)

var ErrResultNotFound = errors.New("result not found")

type ResultRepository interface {
	// CreateBatch archives a finished session's final scores in one
	// transaction so a partial archive never surfaces on the leaderboard.
	CreateBatch(ctx context.Context, results []models.Result) error
	ListByEvent(ctx context.Context, eventID int) ([]models.Result, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Result, error)
}

type postgresResultRepository struct {
	db *sql.DB
}

func NewPostgresResultRepository(db *sql.DB) ResultRepository {
	return &postgresResultRepository{db: db}
}

func (r *postgresResultRepository) CreateBatch(ctx context.Context, results []models.Result) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO results (event_id, session_id, competitor_id, competitor_name, team_id, team_name, score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, recorded_at`

	for i := range results {
		res := &results[i]
		err := tx.QueryRowContext(ctx, query,
			res.EventID,
			res.SessionID,
			res.CompetitorID,
			res.CompetitorName,
			res.TeamID,
			res.TeamName,
			res.Score,
		).Scan(&res.ID, &res.RecordedAt)
		if err != nil {
			return fmt.Errorf("failed to insert result for competitor %s: %w", res.CompetitorID, err)
		}
	}

	return tx.Commit()
}

func (r *postgresResultRepository) ListByEvent(ctx context.Context, eventID int) ([]models.Result, error) {
	query := `
		SELECT id, event_id, session_id, competitor_id, competitor_name, team_id, team_name, score, recorded_at
		FROM results
		WHERE event_id = $1
		ORDER BY score DESC`

	return r.list(ctx, query, eventID)
}

func (r *postgresResultRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Result, error) {
	query := `
		SELECT id, event_id, session_id, competitor_id, competitor_name, team_id, team_name, score, recorded_at
		FROM results
		WHERE session_id = $1
		ORDER BY score DESC`

	return r.list(ctx, query, sessionID)
}

func (r *postgresResultRepository) list(ctx context.Context, query string, arg interface{}) ([]models.Result, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.Result
	for rows.Next() {
		var res models.Result
		if err := rows.Scan(
			&res.ID,
			&res.EventID,
			&res.SessionID,
			&res.CompetitorID,
			&res.CompetitorName,
			&res.TeamID,
			&res.TeamName,
			&res.Score,
			&res.RecordedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

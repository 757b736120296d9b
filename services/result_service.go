package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rowerg/live-platform/models"
	"github.com/rowerg/live-platform/repositories"
)

// ResultService archives final scores once a live session is over. This is
// the only bridge between the live coordinator's ephemeral state and the
// database, and it runs as an explicit admin action, never from the live
// message path.
type ResultService interface {
	ArchiveScores(ctx context.Context, input ArchiveInput) ([]models.Result, error)
	ListByEvent(ctx context.Context, eventID int) ([]models.Result, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Result, error)
}

type ArchiveInput struct {
	EventID   int            `json:"event_id"`
	SessionID string         `json:"session_id"`
	Entries   []ArchiveEntry `json:"entries"`
}

type ArchiveEntry struct {
	CompetitorID   string  `json:"competitor_id"`
	CompetitorName string  `json:"competitor_name"`
	TeamID         *string `json:"team_id,omitempty"`
	TeamName       *string `json:"team_name,omitempty"`
	Score          float64 `json:"score"`
}

type resultService struct {
	resultRepo repositories.ResultRepository
	eventRepo  repositories.EventRepository
}

func NewResultService(resultRepo repositories.ResultRepository, eventRepo repositories.EventRepository) ResultService {
	return &resultService{
		resultRepo: resultRepo,
		eventRepo:  eventRepo,
	}
}

func (s *resultService) ArchiveScores(ctx context.Context, input ArchiveInput) ([]models.Result, error) {
	if len(input.Entries) == 0 {
		return nil, ErrResultsEmpty
	}
	if input.SessionID == "" {
		return nil, ErrValidationFailed
	}
	if _, err := s.eventRepo.GetByID(ctx, input.EventID); err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to verify event: %w", err)
	}

	results := make([]models.Result, 0, len(input.Entries))
	for _, entry := range input.Entries {
		if entry.CompetitorID == "" {
			return nil, ErrValidationFailed
		}
		results = append(results, models.Result{
			EventID:        input.EventID,
			SessionID:      input.SessionID,
			CompetitorID:   entry.CompetitorID,
			CompetitorName: entry.CompetitorName,
			TeamID:         entry.TeamID,
			TeamName:       entry.TeamName,
			Score:          entry.Score,
		})
	}

	if err := s.resultRepo.CreateBatch(ctx, results); err != nil {
		return nil, fmt.Errorf("failed to archive results: %w", err)
	}
	return results, nil
}

func (s *resultService) ListByEvent(ctx context.Context, eventID int) ([]models.Result, error) {
	results, err := s.resultRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return results, nil
}

func (s *resultService) ListBySession(ctx context.Context, sessionID string) ([]models.Result, error) {
	results, err := s.resultRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return results, nil
}

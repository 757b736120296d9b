package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rowerg/live-platform/models"
	"github.com/rowerg/live-platform/repositories"
	"golang.org/x/sync/errgroup"
)

// Leaderboard is computed from archived results, not from live sessions.
type Leaderboard struct {
	Event   *models.Event             `json:"event"`
	Entries []models.LeaderboardEntry `json:"entries"`
}

type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, eventID int) (*Leaderboard, error)
}

type leaderboardService struct {
	eventRepo  repositories.EventRepository
	resultRepo repositories.ResultRepository
}

func NewLeaderboardService(eventRepo repositories.EventRepository, resultRepo repositories.ResultRepository) LeaderboardService {
	return &leaderboardService{
		eventRepo:  eventRepo,
		resultRepo: resultRepo,
	}
}

func (s *leaderboardService) GetLeaderboard(ctx context.Context, eventID int) (*Leaderboard, error) {
	var (
		event   *models.Event
		results []models.Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		event, err = s.eventRepo.GetByID(gctx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		results, err = s.resultRepo.ListByEvent(gctx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to build leaderboard: %w", err)
	}

	// Best score per competitor across all their archived sessions.
	best := make(map[string]models.LeaderboardEntry)
	for _, res := range results {
		entry, ok := best[res.CompetitorID]
		if !ok || res.Score > entry.BestScore {
			best[res.CompetitorID] = models.LeaderboardEntry{
				CompetitorID:   res.CompetitorID,
				CompetitorName: res.CompetitorName,
				BestScore:      res.Score,
			}
		}
	}

	entries := make([]models.LeaderboardEntry, 0, len(best))
	for _, entry := range best {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].BestScore != entries[j].BestScore {
			return entries[i].BestScore > entries[j].BestScore
		}
		return entries[i].CompetitorID < entries[j].CompetitorID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return &Leaderboard{Event: event, Entries: entries}, nil
}

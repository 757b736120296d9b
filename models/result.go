package models

import "time"

// Result is an archived final score, written once a live session is over.
// The live coordinator itself never touches this table; archiving is an
// explicit admin action.
type Result struct {
	ID             int       `json:"id" db:"id"`
	EventID        int       `json:"event_id" db:"event_id"`
	SessionID      string    `json:"session_id" db:"session_id"`
	CompetitorID   string    `json:"competitor_id" db:"competitor_id"`
	CompetitorName string    `json:"competitor_name" db:"competitor_name"`
	TeamID         *string   `json:"team_id,omitempty" db:"team_id"`
	TeamName       *string   `json:"team_name,omitempty" db:"team_name"`
	Score          float64   `json:"score" db:"score"`
	RecordedAt     time.Time `json:"recorded_at" db:"recorded_at"`
}

// LeaderboardEntry is a ranked row computed from stored results.
type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	CompetitorID   string  `json:"competitor_id"`
	CompetitorName string  `json:"competitor_name"`
	BestScore      float64 `json:"best_score"`
}

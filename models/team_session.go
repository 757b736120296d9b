package models

import "time"

const SessionTypeTeam = "team"

// Team is one side of a team session.
type Team struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Members []Competitor `json:"members"`
}

// ParticipantScore tracks one rower inside a team. CurrentScore is the
// latest streamed value and is display-only; Score is locked in by an
// explicit completion and is the only value that counts toward the team
// total. IsCompleted never goes back to false for the life of the session.
type ParticipantScore struct {
	ParticipantID   string  `json:"participant_id"`
	ParticipantName string  `json:"participant_name"`
	CurrentScore    float64 `json:"current_score"`
	Score           float64 `json:"score"`
	IsActive        bool    `json:"is_active"`
	IsCompleted     bool    `json:"is_completed"`
}

// TeamScore holds a team's derived total. TotalScore is never set directly;
// it is recomputed from completed participants only.
type TeamScore struct {
	TeamID       string              `json:"team_id"`
	TeamName     string              `json:"team_name"`
	TotalScore   float64             `json:"total_score"`
	Participants []*ParticipantScore `json:"participants"`
}

// Participant returns the participant entry, or nil if absent.
func (ts *TeamScore) Participant(participantID string) *ParticipantScore {
	for _, p := range ts.Participants {
		if p.ParticipantID == participantID {
			return p
		}
	}
	return nil
}

// Assignment says which competitor currently occupies which physical erg.
type Assignment struct {
	CompetitorID   string `json:"competitor_id"`
	CompetitorName string `json:"competitor_name"`
	TeamID         string `json:"team_id"`
	TeamName       string `json:"team_name"`
	ErgSlotID      string `json:"erg_slot_id"`
	EventType      string `json:"event_type,omitempty"`
}

// TeamSession is a live team-vs-team race sharing the transport
// infrastructure with Session.
type TeamSession struct {
	SessionID   string `json:"session_id"`
	SessionType string `json:"session_type"`
	TeamA       Team   `json:"team_a"`
	TeamB       Team   `json:"team_b"`

	// TeamScores is keyed by team id; Assignments by erg slot id.
	TeamScores  map[string]*TeamScore  `json:"team_scores"`
	Assignments map[string]*Assignment `json:"assignments"`

	TelemetryBindingID string     `json:"-"`
	StartedAt          time.Time  `json:"started_at"`
	DisconnectedAt     *time.Time `json:"disconnected_at,omitempty"`
}

// ScoreList returns the team scores in a stable A-then-B order for broadcast.
func (s *TeamSession) ScoreList() []*TeamScore {
	out := make([]*TeamScore, 0, 2)
	if sc, ok := s.TeamScores[s.TeamA.ID]; ok {
		out = append(out, sc)
	}
	if sc, ok := s.TeamScores[s.TeamB.ID]; ok {
		out = append(out, sc)
	}
	return out
}

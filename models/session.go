package models

import "time"

// ErgTick is the last relayed reading for one head-to-head lane,
// kept so late joiners get a current snapshot instead of a blank dashboard.
type ErgTick struct {
	CompetitorIndex int        `json:"competitor_index"`
	Metrics         ErgMetrics `json:"metrics"`
	CalculatedScore float64    `json:"calculated_score"`
	ReceivedAt      time.Time  `json:"received_at"`
}

// Session is a live head-to-head race. TelemetryBindingID is the connection
// currently allowed to stream ticks into it; empty means unbound.
type Session struct {
	SessionID   string       `json:"session_id"`
	Competitors []Competitor `json:"competitors"`
	EventID     string       `json:"event_id,omitempty"`
	EventType   string       `json:"event_type,omitempty"`

	TelemetryBindingID string     `json:"-"`
	StartedAt          time.Time  `json:"started_at"`
	DisconnectedAt     *time.Time `json:"disconnected_at,omitempty"`

	// LastTicks is keyed by competitor index (0 or 1).
	LastTicks map[int]ErgTick `json:"last_ticks,omitempty"`
}

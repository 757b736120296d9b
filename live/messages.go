package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rowerg/live-platform/models"
)

// Message types on the wire. Every frame is an Envelope; the payload shape
// is fixed per type and validated before it reaches any component.
const (
	// admin -> router
	TypeSessionStart       = "session:start"
	TypeSessionStop        = "session:stop"
	TypeUpdateCompetitors  = "session:update-competitors"
	TypeTeamSessionStart   = "team-session:start"
	TypeTeamSessionStop    = "team-session:stop"
	TypeTeamCompetitorJoin = "team-competitor:join"
	TypeTeamCompetitorLeft = "team-competitor:leave"
	TypeAssign             = "team-competitor:assign"
	TypeComplete           = "team-competitor:complete"

	// admin console -> router
	TypeAdminAuthenticate = "admin:authenticate"

	// telemetry source -> router
	TypeAuthenticate = "source:authenticate"
	TypeErgData      = "erg:data"
	TypeTeamErgData  = "team-erg:data"

	// viewer -> router
	TypeSessionJoin = "session:join"

	// router -> clients
	TypeAuthAck            = "source:authenticated"
	TypeAdminAuthAck       = "admin:authenticated"
	TypeSessionResume      = "session:new"
	TypeSessionData        = "session:data"
	TypeTeamSessionData    = "team-session:data"
	TypeErgUpdate          = "erg:update"
	TypeTeamErgUpdate      = "team-erg:update"
	TypeTeamScoreUpdate    = "team-score:update"
	TypeSessionEnded       = "session:ended"
	TypeTeamSessionEnded   = "team-session:ended"
	TypeSourceDisconnected = "session:source-disconnected"
	TypeSourceReconnected  = "session:source-reconnected"
)

// Envelope is the outer frame of every websocket message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(msgType string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshalling %s payload: %w", msgType, err)
	}
	return Envelope{Type: msgType, Payload: raw}, nil
}

var errEmptyType = errors.New("message type is empty")

func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed message frame: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errEmptyType
	}
	return env, nil
}

type AuthenticatePayload struct {
	Secret    string `json:"secret"`
	SessionID string `json:"session_id,omitempty"`
}

// AuthAck acknowledges a telemetry-source authentication attempt.
// Reconnected is set when the connection was rebound to a pre-existing
// session; Session then carries the full stored snapshot.
type AuthAck struct {
	Success     bool        `json:"success"`
	Reconnected bool        `json:"reconnected,omitempty"`
	SessionID   string      `json:"session_id,omitempty"`
	Session     interface{} `json:"session,omitempty"`
}

// AdminAuthenticatePayload carries the organizer JWT issued at login; it
// unlocks the control commands for the presenting connection.
type AdminAuthenticatePayload struct {
	Token string `json:"token"`
}

type AdminAuthAck struct {
	Success bool `json:"success"`
}

type SessionStartPayload struct {
	SessionID   string              `json:"session_id"`
	Competitors []models.Competitor `json:"competitors,omitempty"`
	EventID     string              `json:"event_id,omitempty"`
	EventType   string              `json:"event_type,omitempty"`
}

type SessionStopPayload struct {
	SessionID string `json:"session_id"`
}

type UpdateCompetitorsPayload struct {
	SessionID   string              `json:"session_id"`
	Competitors []models.Competitor `json:"competitors"`
}

type TeamSessionStartPayload struct {
	SessionID   string      `json:"session_id"`
	TeamA       models.Team `json:"team_a"`
	TeamB       models.Team `json:"team_b"`
	SessionType string      `json:"session_type,omitempty"`
}

type TeamCompetitorJoinPayload struct {
	SessionID  string            `json:"session_id"`
	TeamID     string            `json:"team_id"`
	Competitor models.Competitor `json:"competitor"`
}

type TeamCompetitorLeavePayload struct {
	SessionID    string `json:"session_id"`
	TeamID       string `json:"team_id"`
	CompetitorID string `json:"competitor_id"`
}

type AssignPayload struct {
	SessionID  string            `json:"session_id"`
	Assignment models.Assignment `json:"assignment"`
}

type CompletePayload struct {
	SessionID    string  `json:"session_id"`
	ErgSlotID    string  `json:"erg_slot_id"`
	CompetitorID string  `json:"competitor_id"`
	TeamID       string  `json:"team_id"`
	FinalScore   float64 `json:"final_score"`
}

type ErgDataPayload struct {
	SessionID       string            `json:"session_id"`
	CompetitorIndex int               `json:"competitor_index"`
	Metrics         models.ErgMetrics `json:"metrics"`
	CalculatedScore float64           `json:"calculated_score"`
}

type TeamErgDataPayload struct {
	SessionID       string            `json:"session_id"`
	TeamID          string            `json:"team_id"`
	ParticipantID   string            `json:"participant_id"`
	ParticipantName string            `json:"participant_name"`
	Metrics         models.ErgMetrics `json:"metrics"`
	CalculatedScore float64           `json:"calculated_score"`
}

type SessionJoinPayload struct {
	SessionID string `json:"session_id"`
}

// ErgUpdatePayload is the per-tick broadcast to viewers. Timestamp is
// assigned by the server at relay time.
type ErgUpdatePayload struct {
	SessionID       string            `json:"session_id"`
	CompetitorIndex int               `json:"competitor_index"`
	Metrics         models.ErgMetrics `json:"metrics"`
	CalculatedScore float64           `json:"calculated_score"`
	Timestamp       time.Time         `json:"timestamp"`
}

type TeamErgUpdatePayload struct {
	SessionID       string            `json:"session_id"`
	TeamID          string            `json:"team_id"`
	ParticipantID   string            `json:"participant_id"`
	ParticipantName string            `json:"participant_name"`
	Metrics         models.ErgMetrics `json:"metrics"`
	CalculatedScore float64           `json:"calculated_score"`
	Timestamp       time.Time         `json:"timestamp"`
}

type TeamScoreUpdatePayload struct {
	SessionID string              `json:"session_id"`
	Scores    []*models.TeamScore `json:"scores"`
}

type SourceStatePayload struct {
	SessionID string `json:"session_id"`
}

func decodePayload(env Envelope, dst interface{}) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s: payload is empty", env.Type)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", env.Type, err)
	}
	return nil
}

func requireSessionID(msgType, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%s: session_id is required", msgType)
	}
	return nil
}

package models

import "time"

// EventType описывает дистанцию/формат заезда, соответствует ENUM в БД.
type EventType string

const (
	EventType500m   EventType = "500m"
	EventType2000m  EventType = "2000m"
	EventTypeMinute EventType = "one_minute"
	EventTypeTeam   EventType = "team_relay"
)

// Event is a scheduled erg competition heats are raced under.
type Event struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	EventType   EventType `json:"event_type" db:"event_type"`
	OrganizerID int       `json:"organizer_id" db:"organizer_id"`
	StartDate   time.Time `json:"start_date" db:"start_date"`
	Location    *string   `json:"location,omitempty" db:"location"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	BannerKey *string `json:"-" db:"banner_key"`
	BannerURL *string `json:"banner_url,omitempty" db:"-"`
}

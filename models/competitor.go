package models

// Competitor is a single rower as announced by the admin console.
// Age, sex and weight feed the handicap formula on the telemetry side;
// the server only carries them through to viewers.
type Competitor struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Age    int     `json:"age,omitempty"`
	Sex    string  `json:"sex,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

// ErgMetrics is one tick of raw monitor data from a rowing machine.
type ErgMetrics struct {
	Distance   float64 `json:"distance"`
	Pace       float64 `json:"pace"`
	StrokeRate int     `json:"stroke_rate"`
	Watts      float64 `json:"watts,omitempty"`
	Calories   float64 `json:"calories,omitempty"`
	ElapsedMs  int64   `json:"elapsed_ms,omitempty"`
}

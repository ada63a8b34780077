package domain

import "time"

// User is a row of the users dimension. Level is the subscription tier and is
// the only column that changes after the row is first written.
type User struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender"`
	Level     string `json:"level"`

	// LevelObservedAt is the event time that produced Level.
	LevelObservedAt time.Time `json:"level_observed_at"`
}

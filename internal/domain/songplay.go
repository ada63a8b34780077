package domain

import "time"

// Event is a single "song played" line from an activity log, already
// filtered and typed by the extractor.
type Event struct {
	Timestamp int64 // epoch milliseconds
	UserID    string
	FirstName string
	LastName  string
	Gender    string
	Level     string
	Song      string
	Artist    string
	Length    float64
	SessionID int64
	Location  string
	UserAgent string
}

// User returns the users dimension row carried by the event.
func (e Event) User(observedAt time.Time) User {
	return User{
		UserID:          e.UserID,
		FirstName:       e.FirstName,
		LastName:        e.LastName,
		Gender:          e.Gender,
		Level:           e.Level,
		LevelObservedAt: observedAt,
	}
}

// Songplay is a row of the songplays fact table. SongID and ArtistID are
// either both set or both nil.
type Songplay struct {
	StartTime time.Time
	UserID    string
	Level     string
	SongID    *string
	ArtistID  *string
	SessionID int64
	Location  string
	UserAgent string
}

// NewSongplay builds the fact row for an event and its resolution result.
func NewSongplay(e Event, start time.Time, match SongMatch) Songplay {
	return Songplay{
		StartTime: start,
		UserID:    e.UserID,
		Level:     e.Level,
		SongID:    match.SongIDPtr(),
		ArtistID:  match.ArtistIDPtr(),
		SessionID: e.SessionID,
		Location:  e.Location,
		UserAgent: e.UserAgent,
	}
}

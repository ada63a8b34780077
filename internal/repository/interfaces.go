package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/rpattn/sparkify/internal/domain"
)

// Outcome reports what a conflict-aware write did.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeInserted
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	default:
		return "skipped"
	}
}

// DimensionStore writes dimension rows, one operation per entity, each
// honouring the entity's ConflictPolicy.
type DimensionStore interface {
	InsertSong(ctx context.Context, song domain.Song) (Outcome, error)
	InsertArtist(ctx context.Context, artist domain.Artist) (Outcome, error)
	InsertTime(ctx context.Context, rec domain.TimeRecord) (Outcome, error)
	UpsertUser(ctx context.Context, user domain.User) (Outcome, error)
}

// SongCatalog looks up songs for fact resolution.
type SongCatalog interface {
	FindSongCandidates(ctx context.Context, title, artistName string) ([]domain.SongCandidate, error)
}

// FactStore appends songplay rows.
type FactStore interface {
	AppendSongplays(ctx context.Context, plays []domain.Songplay) (int, error)
}

// StarStore is everything a file load needs from the destination schema.
type StarStore interface {
	DimensionStore
	SongCatalog
	FactStore
}

// TableCounts holds the row count of each star-schema table.
type TableCounts struct {
	Songs     int64 `json:"songs"`
	Artists   int64 `json:"artists"`
	Time      int64 `json:"time"`
	Users     int64 `json:"users"`
	Songplays int64 `json:"songplays"`
}

// LoadLogRepository records per-file load outcomes.
type LoadLogRepository interface {
	Record(ctx context.Context, entry domain.LoadLogEntry) error
	ListRun(ctx context.Context, runID uuid.UUID) ([]domain.LoadLogEntry, error)
}

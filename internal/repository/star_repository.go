package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rpattn/sparkify/internal/db"
	"github.com/rpattn/sparkify/internal/domain"
)

type starRepository struct {
	db db.DBTX
}

// NewStarRepository returns a StarStore that runs its statements on q, which
// is normally the transaction of the file being loaded.
func NewStarRepository(q db.DBTX) StarStore {
	return &starRepository{db: q}
}

func (r *starRepository) InsertSong(ctx context.Context, song domain.Song) (Outcome, error) {
	tag, err := r.db.Exec(ctx, insertStatements[EntitySong],
		song.SongID, song.Title, song.ArtistID, song.Year, song.Duration,
	)
	if err != nil {
		return OutcomeSkipped, storageError("insert song "+song.SongID, err)
	}
	return insertOutcome(tag), nil
}

func (r *starRepository) InsertArtist(ctx context.Context, artist domain.Artist) (Outcome, error) {
	tag, err := r.db.Exec(ctx, insertStatements[EntityArtist],
		artist.ArtistID, artist.Name, artist.Location, artist.Latitude, artist.Longitude,
	)
	if err != nil {
		return OutcomeSkipped, storageError("insert artist "+artist.ArtistID, err)
	}
	return insertOutcome(tag), nil
}

func (r *starRepository) InsertTime(ctx context.Context, rec domain.TimeRecord) (Outcome, error) {
	tag, err := r.db.Exec(ctx, insertStatements[EntityTime],
		rec.StartTime, rec.Hour, rec.Day, rec.Week, rec.Month, rec.Year, rec.Weekday,
	)
	if err != nil {
		return OutcomeSkipped, storageError("insert time", err)
	}
	return insertOutcome(tag), nil
}

func (r *starRepository) UpsertUser(ctx context.Context, user domain.User) (Outcome, error) {
	var inserted bool
	err := r.db.QueryRow(ctx, insertStatements[EntityUser],
		user.UserID, user.FirstName, user.LastName, user.Gender, user.Level, user.LevelObservedAt,
	).Scan(&inserted)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// An existing row carries a newer level observation.
		return OutcomeSkipped, nil
	case err != nil:
		return OutcomeSkipped, storageError("upsert user "+user.UserID, err)
	case inserted:
		return OutcomeInserted, nil
	default:
		return OutcomeUpdated, nil
	}
}

func (r *starRepository) FindSongCandidates(ctx context.Context, title, artistName string) ([]domain.SongCandidate, error) {
	rows, err := r.db.Query(ctx, selectSongCandidates, title, artistName)
	if err != nil {
		return nil, storageError("select song candidates", err)
	}

	candidates, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.SongCandidate])
	if err != nil {
		return nil, storageError("scan song candidates", err)
	}
	return candidates, nil
}

func (r *starRepository) AppendSongplays(ctx context.Context, plays []domain.Songplay) (int, error) {
	if len(plays) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, p := range plays {
		batch.Queue(insertStatements[EntitySongplay],
			p.StartTime, p.UserID, p.Level, p.SongID, p.ArtistID, p.SessionID, p.Location, p.UserAgent,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	inserted := 0
	for i := range plays {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return inserted, storageError(fmt.Sprintf("insert songplay %d of %d", i+1, len(plays)), err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return inserted, storageError("close songplay batch", err)
	}
	return inserted, nil
}

// CountTables returns the row count of every star-schema table.
func CountTables(ctx context.Context, q db.DBTX) (TableCounts, error) {
	var c TableCounts
	if err := q.QueryRow(ctx, selectTableCounts).Scan(&c.Songs, &c.Artists, &c.Time, &c.Users, &c.Songplays); err != nil {
		return TableCounts{}, storageError("count tables", err)
	}
	return c, nil
}

func insertOutcome(tag pgconn.CommandTag) Outcome {
	if tag.RowsAffected() > 0 {
		return OutcomeInserted
	}
	return OutcomeSkipped
}

func storageError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &domain.StorageError{Op: op, Constraint: pgErr.ConstraintName, Err: err}
	}
	return &domain.StorageError{Op: op, Err: err}
}

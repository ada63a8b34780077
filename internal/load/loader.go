// Package load writes extracted records into the star schema.
package load

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rpattn/sparkify/internal/domain"
	"github.com/rpattn/sparkify/internal/repository"
)

// Counts tallies the outcome of dimension and fact writes for one file.
type Counts struct {
	Inserted int
	Updated  int
	Skipped  int
}

func (c *Counts) add(o repository.Outcome) {
	switch o {
	case repository.OutcomeInserted:
		c.Inserted++
	case repository.OutcomeUpdated:
		c.Updated++
	default:
		c.Skipped++
	}
}

// Written is the number of rows inserted or updated.
func (c Counts) Written() int { return c.Inserted + c.Updated }

// LogValue implements slog.LogValuer.
func (c Counts) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("inserted", c.Inserted),
		slog.Int("updated", c.Updated),
		slog.Int("skipped", c.Skipped),
	)
}

// DimensionLoader writes dimension rows under the per-entity conflict policy.
type DimensionLoader struct {
	store  repository.DimensionStore
	counts map[repository.Entity]*Counts
}

// NewDimensionLoader wraps a store, usually one bound to a file transaction.
func NewDimensionLoader(store repository.DimensionStore) *DimensionLoader {
	return &DimensionLoader{
		store:  store,
		counts: make(map[repository.Entity]*Counts),
	}
}

func (l *DimensionLoader) tally(entity repository.Entity, o repository.Outcome) {
	c, ok := l.counts[entity]
	if !ok {
		c = &Counts{}
		l.counts[entity] = c
	}
	c.add(o)
}

// LoadSong inserts the song unless its song_id is already present.
func (l *DimensionLoader) LoadSong(ctx context.Context, song domain.Song) error {
	o, err := l.store.InsertSong(ctx, song)
	if err != nil {
		return fmt.Errorf("failed to load song: %w", err)
	}
	l.tally(repository.EntitySong, o)
	return nil
}

// LoadArtist inserts the artist unless its artist_id is already present.
func (l *DimensionLoader) LoadArtist(ctx context.Context, artist domain.Artist) error {
	o, err := l.store.InsertArtist(ctx, artist)
	if err != nil {
		return fmt.Errorf("failed to load artist: %w", err)
	}
	l.tally(repository.EntityArtist, o)
	return nil
}

// LoadTime inserts the time row unless its start_time is already present.
func (l *DimensionLoader) LoadTime(ctx context.Context, rec domain.TimeRecord) error {
	o, err := l.store.InsertTime(ctx, rec)
	if err != nil {
		return fmt.Errorf("failed to load time: %w", err)
	}
	l.tally(repository.EntityTime, o)
	return nil
}

// LoadUser inserts the user, or refreshes only the subscription level of an
// existing user when this observation is not older than the stored one.
func (l *DimensionLoader) LoadUser(ctx context.Context, user domain.User) error {
	if user.UserID == "" {
		return &domain.ValidationError{Field: "user_id", Value: user.UserID, Message: "must not be empty"}
	}
	o, err := l.store.UpsertUser(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	l.tally(repository.EntityUser, o)
	return nil
}

// Counts returns the tally for entity.
func (l *DimensionLoader) Counts(entity repository.Entity) Counts {
	if c, ok := l.counts[entity]; ok {
		return *c
	}
	return Counts{}
}

// FactLoader appends songplay rows. Rows whose (start_time, user_id,
// session_id) is already loaded are skipped by the store.
type FactLoader struct {
	store   repository.FactStore
	pending []domain.Songplay
	counts  Counts
}

// NewFactLoader wraps a fact store.
func NewFactLoader(store repository.FactStore) *FactLoader {
	return &FactLoader{store: store}
}

// Add queues a songplay for the next Flush.
func (l *FactLoader) Add(play domain.Songplay) error {
	if (play.SongID == nil) != (play.ArtistID == nil) {
		return &domain.ValidationError{Field: "song_id/artist_id", Value: play.SongID, Message: "must be resolved together"}
	}
	l.pending = append(l.pending, play)
	return nil
}

// Pending returns the number of queued songplays.
func (l *FactLoader) Pending() int { return len(l.pending) }

// Flush writes every queued songplay in one round trip and returns how many
// rows were inserted.
func (l *FactLoader) Flush(ctx context.Context) (int, error) {
	if len(l.pending) == 0 {
		return 0, nil
	}
	queued := len(l.pending)
	inserted, err := l.store.AppendSongplays(ctx, l.pending)
	if err != nil {
		return inserted, fmt.Errorf("failed to load songplays: %w", err)
	}
	l.pending = l.pending[:0]
	l.counts.Inserted += inserted
	l.counts.Skipped += queued - inserted
	return inserted, nil
}

// Counts returns the running tally of flushed songplays.
func (l *FactLoader) Counts() Counts { return l.counts }

package load

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/sparkify/internal/domain"
	"github.com/rpattn/sparkify/internal/repository"
	"github.com/rpattn/sparkify/internal/repository/repotest"
)

func strPtr(s string) *string { return &s }

func TestDimensionLoaderSkipsExistingRows(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewMemStore()
	loader := NewDimensionLoader(store)

	song := domain.Song{SongID: "S1", Title: "T", ArtistID: "A1", Year: 2000, Duration: 200.5}
	artist := domain.Artist{ArtistID: "A1", Name: "X"}
	rec, err := domain.DeriveTime(1541105830796, time.UTC)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, loader.LoadSong(ctx, song))
		require.NoError(t, loader.LoadArtist(ctx, artist))
		require.NoError(t, loader.LoadTime(ctx, rec))
	}

	// A conflicting song with the same key does not overwrite the original.
	require.NoError(t, loader.LoadSong(ctx, domain.Song{SongID: "S1", Title: "Other"}))
	stored, ok := store.Song("S1")
	require.True(t, ok)
	assert.Equal(t, "T", stored.Title)

	assert.Equal(t, Counts{Inserted: 1, Skipped: 2}, loader.Counts(repository.EntitySong))
	assert.Equal(t, Counts{Inserted: 1, Skipped: 1}, loader.Counts(repository.EntityArtist))
	assert.Equal(t, Counts{Inserted: 1, Skipped: 1}, loader.Counts(repository.EntityTime))
	assert.Equal(t, int64(1), store.Counts().Songs)
}

func TestDimensionLoaderUserLevelLastObservationWins(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewMemStore()
	loader := NewDimensionLoader(store)

	t0 := time.Date(2018, 11, 1, 0, 0, 0, 0, time.UTC)
	free := domain.User{UserID: "7", FirstName: "A", LastName: "B", Gender: "F", Level: "free", LevelObservedAt: t0}
	paid := domain.User{UserID: "7", FirstName: "Changed", LastName: "Name", Gender: "M", Level: "paid", LevelObservedAt: t0.Add(time.Hour)}

	require.NoError(t, loader.LoadUser(ctx, paid))
	require.NoError(t, loader.LoadUser(ctx, free)) // older observation, processed later

	user, ok := store.User("7")
	require.True(t, ok)
	assert.Equal(t, "paid", user.Level)

	later := free
	later.LevelObservedAt = t0.Add(2 * time.Hour)
	require.NoError(t, loader.LoadUser(ctx, later))

	user, _ = store.User("7")
	assert.Equal(t, "free", user.Level)
	assert.Equal(t, "Changed", user.FirstName, "name is immutable once recorded")
	assert.Equal(t, "M", user.Gender)
	assert.Equal(t, Counts{Inserted: 1, Updated: 1, Skipped: 1}, loader.Counts(repository.EntityUser))
}

func TestDimensionLoaderRejectsEmptyUserID(t *testing.T) {
	err := NewDimensionLoader(repotest.NewMemStore()).LoadUser(context.Background(), domain.User{})
	assert.True(t, domain.IsValidationError(err))
}

func TestDimensionLoaderWrapsStorageErrors(t *testing.T) {
	store := repotest.NewMemStore()
	store.FailOn = func(entity repository.Entity) error {
		if entity == repository.EntityArtist {
			return errors.New("disk full")
		}
		return nil
	}

	err := NewDimensionLoader(store).LoadArtist(context.Background(), domain.Artist{ArtistID: "A1"})
	require.Error(t, err)
	assert.True(t, domain.IsStorageError(err))
}

func TestFactLoaderFlushAppendsAndSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewMemStore()
	dims := NewDimensionLoader(store)
	facts := NewFactLoader(store)

	rec, err := domain.DeriveTime(1541105830796, time.UTC)
	require.NoError(t, err)
	require.NoError(t, dims.LoadTime(ctx, rec))
	require.NoError(t, dims.LoadUser(ctx, domain.User{UserID: "7", Level: "free"}))

	resolved := domain.Songplay{StartTime: rec.StartTime, UserID: "7", Level: "free", SongID: strPtr("S1"), ArtistID: strPtr("A1"), SessionID: 100}
	unresolved := domain.Songplay{StartTime: rec.StartTime, UserID: "7", Level: "free", SessionID: 101}

	require.NoError(t, facts.Add(resolved))
	require.NoError(t, facts.Add(unresolved))
	require.NoError(t, facts.Add(resolved))
	assert.Equal(t, 3, facts.Pending())

	n, err := facts.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, facts.Pending())
	assert.Equal(t, Counts{Inserted: 2, Skipped: 1}, facts.Counts())

	plays := store.Songplays()
	require.Len(t, plays, 2)
	assert.Nil(t, plays[1].SongID)
	assert.Nil(t, plays[1].ArtistID)
}

func TestFactLoaderRejectsPartialResolution(t *testing.T) {
	facts := NewFactLoader(repotest.NewMemStore())
	err := facts.Add(domain.Songplay{UserID: "7", SongID: strPtr("S1")})
	assert.True(t, domain.IsValidationError(err))
	assert.Zero(t, facts.Pending())
}

func TestFactLoaderFlushEmpty(t *testing.T) {
	n, err := NewFactLoader(repotest.NewMemStore()).Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

// Package repotest provides in-memory stores that honour the repository
// conflict policies, for tests that do not need Postgres.
package repotest

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/sparkify/internal/domain"
	"github.com/rpattn/sparkify/internal/repository"
)

type playKey struct {
	start     int64
	userID    string
	sessionID int64
}

type state struct {
	songs     map[string]domain.Song
	artists   map[string]domain.Artist
	times     map[int64]domain.TimeRecord
	users     map[string]domain.User
	songplays []domain.Songplay
	playKeys  map[playKey]struct{}
}

func newState() state {
	return state{
		songs:    map[string]domain.Song{},
		artists:  map[string]domain.Artist{},
		times:    map[int64]domain.TimeRecord{},
		users:    map[string]domain.User{},
		playKeys: map[playKey]struct{}{},
	}
}

func (s state) clone() state {
	return state{
		songs:     maps.Clone(s.songs),
		artists:   maps.Clone(s.artists),
		times:     maps.Clone(s.times),
		users:     maps.Clone(s.users),
		songplays: slices.Clone(s.songplays),
		playKeys:  maps.Clone(s.playKeys),
	}
}

// MemStore is an in-memory StarStore and Transactor. Transactions snapshot
// the whole state and restore it on error.
type MemStore struct {
	mu sync.Mutex
	st state

	// FailOn, when set, is consulted before each write with the entity
	// about to be written. A non-nil return is surfaced as a StorageError.
	FailOn func(entity repository.Entity) error

	Commits   int
	Rollbacks int
}

var _ repository.StarStore = (*MemStore)(nil)
var _ repository.Transactor = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{st: newState()}
}

func (m *MemStore) fail(entity repository.Entity) error {
	if m.FailOn == nil {
		return nil
	}
	if err := m.FailOn(entity); err != nil {
		return &domain.StorageError{Op: "insert " + string(entity), Err: err}
	}
	return nil
}

// InTx implements repository.Transactor.
func (m *MemStore) InTx(ctx context.Context, fn func(repository.StarStore) error) error {
	m.mu.Lock()
	snapshot := m.st.clone()
	m.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			m.rollback(snapshot)
			panic(p)
		}
	}()

	if err := fn(m); err != nil {
		m.rollback(snapshot)
		return err
	}
	if err := ctx.Err(); err != nil {
		m.rollback(snapshot)
		return err
	}

	m.mu.Lock()
	m.Commits++
	m.mu.Unlock()
	return nil
}

func (m *MemStore) rollback(snapshot state) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = snapshot
	m.Rollbacks++
}

func (m *MemStore) InsertSong(_ context.Context, song domain.Song) (repository.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(repository.EntitySong); err != nil {
		return repository.OutcomeSkipped, err
	}
	if _, ok := m.st.songs[song.SongID]; ok {
		return repository.OutcomeSkipped, nil
	}
	m.st.songs[song.SongID] = song
	return repository.OutcomeInserted, nil
}

func (m *MemStore) InsertArtist(_ context.Context, artist domain.Artist) (repository.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(repository.EntityArtist); err != nil {
		return repository.OutcomeSkipped, err
	}
	if _, ok := m.st.artists[artist.ArtistID]; ok {
		return repository.OutcomeSkipped, nil
	}
	m.st.artists[artist.ArtistID] = artist
	return repository.OutcomeInserted, nil
}

func (m *MemStore) InsertTime(_ context.Context, rec domain.TimeRecord) (repository.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(repository.EntityTime); err != nil {
		return repository.OutcomeSkipped, err
	}
	key := rec.StartTime.UnixMicro()
	if _, ok := m.st.times[key]; ok {
		return repository.OutcomeSkipped, nil
	}
	m.st.times[key] = rec
	return repository.OutcomeInserted, nil
}

func (m *MemStore) UpsertUser(_ context.Context, user domain.User) (repository.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(repository.EntityUser); err != nil {
		return repository.OutcomeSkipped, err
	}
	existing, ok := m.st.users[user.UserID]
	if !ok {
		m.st.users[user.UserID] = user
		return repository.OutcomeInserted, nil
	}
	if existing.LevelObservedAt.After(user.LevelObservedAt) {
		return repository.OutcomeSkipped, nil
	}
	existing.Level = user.Level
	existing.LevelObservedAt = user.LevelObservedAt
	m.st.users[user.UserID] = existing
	return repository.OutcomeUpdated, nil
}

func (m *MemStore) FindSongCandidates(_ context.Context, title, artistName string) ([]domain.SongCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.SongCandidate
	for _, song := range m.st.songs {
		artist, ok := m.st.artists[song.ArtistID]
		if !ok || song.Title != title || artist.Name != artistName {
			continue
		}
		out = append(out, domain.SongCandidate{SongID: song.SongID, ArtistID: song.ArtistID, Duration: song.Duration})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SongID != out[j].SongID {
			return out[i].SongID < out[j].SongID
		}
		return out[i].ArtistID < out[j].ArtistID
	})
	return out, nil
}

func (m *MemStore) AppendSongplays(_ context.Context, plays []domain.Songplay) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, p := range plays {
		if err := m.fail(repository.EntitySongplay); err != nil {
			return inserted, err
		}
		if _, ok := m.st.times[p.StartTime.UnixMicro()]; !ok {
			return inserted, &domain.StorageError{Op: "insert songplay", Constraint: "songplays_start_time_fkey", Err: errors.New("missing time row")}
		}
		if _, ok := m.st.users[p.UserID]; !ok {
			return inserted, &domain.StorageError{Op: "insert songplay", Constraint: "songplays_user_id_fkey", Err: errors.New("missing user row")}
		}
		key := playKey{start: p.StartTime.UnixMicro(), userID: p.UserID, sessionID: p.SessionID}
		if _, ok := m.st.playKeys[key]; ok {
			continue
		}
		m.st.playKeys[key] = struct{}{}
		m.st.songplays = append(m.st.songplays, p)
		inserted++
	}
	return inserted, nil
}

// Counts mirrors repository.CountTables.
func (m *MemStore) Counts() repository.TableCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return repository.TableCounts{
		Songs:     int64(len(m.st.songs)),
		Artists:   int64(len(m.st.artists)),
		Time:      int64(len(m.st.times)),
		Users:     int64(len(m.st.users)),
		Songplays: int64(len(m.st.songplays)),
	}
}

// Song returns the stored song row.
func (m *MemStore) Song(id string) (domain.Song, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.st.songs[id]
	return s, ok
}

// Artist returns the stored artist row.
func (m *MemStore) Artist(id string) (domain.Artist, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.st.artists[id]
	return a, ok
}

// User returns the stored user row.
func (m *MemStore) User(id string) (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.st.users[id]
	return u, ok
}

// Time returns the stored time row for start.
func (m *MemStore) Time(start time.Time) (domain.TimeRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.st.times[start.UnixMicro()]
	return r, ok
}

// Songplays returns a copy of the fact rows in insertion order.
func (m *MemStore) Songplays() []domain.Songplay {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.st.songplays)
}

// LoadLog is an in-memory LoadLogRepository.
type LoadLog struct {
	mu      sync.Mutex
	Entries []domain.LoadLogEntry
	Err     error
}

var _ repository.LoadLogRepository = (*LoadLog)(nil)

func (l *LoadLog) Record(_ context.Context, entry domain.LoadLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	l.Entries = append(l.Entries, entry)
	return nil
}

func (l *LoadLog) ListRun(_ context.Context, runID uuid.UUID) ([]domain.LoadLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.LoadLogEntry
	for _, e := range l.Entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

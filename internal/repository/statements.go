package repository

// Entity names a destination table written by the loader.
type Entity string

const (
	EntitySong     Entity = "songs"
	EntityArtist   Entity = "artists"
	EntityTime     Entity = "time"
	EntityUser     Entity = "users"
	EntitySongplay Entity = "songplays"
)

// ConflictPolicy says what a write does when the natural key already exists.
type ConflictPolicy string

const (
	// ConflictSkip leaves the existing row untouched.
	ConflictSkip ConflictPolicy = "skip"
	// ConflictUpdateLevel updates users.level when the incoming observation
	// is at least as recent as the stored one. Other columns are kept.
	ConflictUpdateLevel ConflictPolicy = "update_level"
)

// ConflictPolicies is the per-entity conflict policy applied by the loader.
var ConflictPolicies = map[Entity]ConflictPolicy{
	EntitySong:     ConflictSkip,
	EntityArtist:   ConflictSkip,
	EntityTime:     ConflictSkip,
	EntityUser:     ConflictUpdateLevel,
	EntitySongplay: ConflictSkip,
}

// insertStatements holds the single write statement used for each entity.
var insertStatements = map[Entity]string{
	EntitySong: `INSERT INTO songs (song_id, title, artist_id, year, duration)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (song_id) DO NOTHING`,

	EntityArtist: `INSERT INTO artists (artist_id, name, location, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (artist_id) DO NOTHING`,

	EntityTime: `INSERT INTO time (start_time, hour, day, week, month, year, weekday)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (start_time) DO NOTHING`,

	// xmax is zero only for freshly inserted tuples.
	EntityUser: `INSERT INTO users (user_id, first_name, last_name, gender, level, level_observed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET level = EXCLUDED.level,
		    level_observed_at = EXCLUDED.level_observed_at
		WHERE users.level_observed_at IS NULL
		   OR users.level_observed_at <= EXCLUDED.level_observed_at
		RETURNING (xmax = 0) AS inserted`,

	EntitySongplay: `INSERT INTO songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT songplays_natural_key DO NOTHING`,
}

const selectSongCandidates = `SELECT s.song_id, s.artist_id, s.duration
	FROM songs s
	JOIN artists a ON a.artist_id = s.artist_id
	WHERE s.title = $1 AND a.name = $2
	ORDER BY s.song_id, s.artist_id`

const selectTableCounts = `SELECT
	(SELECT count(*) FROM songs),
	(SELECT count(*) FROM artists),
	(SELECT count(*) FROM time),
	(SELECT count(*) FROM users),
	(SELECT count(*) FROM songplays)`

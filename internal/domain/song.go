package domain

// Song is a row of the songs dimension. SongID is the natural key.
type Song struct {
	SongID   string  `json:"song_id"`
	Title    string  `json:"title"`
	ArtistID string  `json:"artist_id"`
	Year     int     `json:"year"`
	Duration float64 `json:"duration"`
}

// Artist is a row of the artists dimension. ArtistID is the natural key.
// Location and coordinates are frequently missing in the source catalogue.
type Artist struct {
	ArtistID  string   `json:"artist_id"`
	Name      string   `json:"name"`
	Location  *string  `json:"location,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// SongMatch is the outcome of resolving an event against the catalogue.
// Found is false when no song/artist pair matched; both ids are then empty.
type SongMatch struct {
	SongID   string
	ArtistID string
	Found    bool
}

// SongCandidate is a catalogue row sharing an event's title and artist name.
type SongCandidate struct {
	SongID   string
	ArtistID string
	Duration float64
}

// SongIDPtr returns the song id as a nullable column value.
func (m SongMatch) SongIDPtr() *string {
	if !m.Found {
		return nil
	}
	id := m.SongID
	return &id
}

// ArtistIDPtr returns the artist id as a nullable column value.
func (m SongMatch) ArtistIDPtr() *string {
	if !m.Found {
		return nil
	}
	id := m.ArtistID
	return &id
}

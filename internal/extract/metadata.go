// Package extract turns raw song-metadata and activity-log files into typed
// records for the loaders.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rpattn/sparkify/internal/domain"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// songRequiredKeys must be present in every metadata record. Artist location
// and coordinates are required as keys but may be null.
var songRequiredKeys = []string{
	"song_id",
	"title",
	"artist_id",
	"year",
	"duration",
	"artist_name",
	"artist_location",
	"artist_latitude",
	"artist_longitude",
}

type songMetadata struct {
	SongID          string   `json:"song_id"`
	Title           string   `json:"title"`
	ArtistID        string   `json:"artist_id"`
	Year            int      `json:"year"`
	Duration        float64  `json:"duration"`
	ArtistName      string   `json:"artist_name"`
	ArtistLocation  *string  `json:"artist_location"`
	ArtistLatitude  *float64 `json:"artist_latitude"`
	ArtistLongitude *float64 `json:"artist_longitude"`
}

// ExtractSongFile reads a metadata file holding exactly one record and
// returns its song and artist rows.
func ExtractSongFile(path string) (domain.Song, domain.Artist, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return domain.Song{}, domain.Artist{}, &domain.ParseError{Path: path, Err: fmt.Errorf("read file: %w", err)}
	}
	return ParseSongMetadata(path, payload)
}

// ParseSongMetadata decodes a metadata payload. path is only used for error
// reporting.
func ParseSongMetadata(path string, payload []byte) (domain.Song, domain.Artist, error) {
	payload = bytes.TrimPrefix(payload, byteOrderMark)

	dec := json.NewDecoder(bytes.NewReader(payload))
	var records []json.RawMessage
	for {
		var record json.RawMessage
		if err := dec.Decode(&record); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return domain.Song{}, domain.Artist{}, &domain.ParseError{Path: path, Err: fmt.Errorf("decode record: %w", err)}
		}
		records = append(records, record)
	}

	if len(records) != 1 {
		return domain.Song{}, domain.Artist{}, &domain.ParseError{
			Path: path,
			Err:  fmt.Errorf("expected exactly one record, found %d", len(records)),
		}
	}

	var record map[string]json.RawMessage
	if err := json.Unmarshal(records[0], &record); err != nil {
		return domain.Song{}, domain.Artist{}, &domain.ParseError{Path: path, Err: fmt.Errorf("decode record: %w", err)}
	}
	for _, key := range songRequiredKeys {
		if _, ok := record[key]; !ok {
			return domain.Song{}, domain.Artist{}, &domain.ParseError{Path: path, Field: key, Err: errors.New("required field missing")}
		}
	}
	for _, key := range []string{"song_id", "artist_id", "title", "artist_name", "year", "duration"} {
		if isNull(record[key]) {
			return domain.Song{}, domain.Artist{}, &domain.ParseError{Path: path, Field: key, Err: errors.New("required field is null")}
		}
	}

	var meta songMetadata
	if err := json.Unmarshal(records[0], &meta); err != nil {
		return domain.Song{}, domain.Artist{}, &domain.ParseError{Path: path, Err: fmt.Errorf("decode fields: %w", err)}
	}
	if meta.SongID == "" || meta.ArtistID == "" {
		return domain.Song{}, domain.Artist{}, &domain.ParseError{Path: path, Field: "song_id", Err: errors.New("natural keys must not be empty")}
	}

	song := domain.Song{
		SongID:   meta.SongID,
		Title:    meta.Title,
		ArtistID: meta.ArtistID,
		Year:     meta.Year,
		Duration: meta.Duration,
	}
	artist := domain.Artist{
		ArtistID:  meta.ArtistID,
		Name:      meta.ArtistName,
		Location:  meta.ArtistLocation,
		Latitude:  meta.ArtistLatitude,
		Longitude: meta.ArtistLongitude,
	}
	return song, artist, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Package resolve links play events to catalogue songs.
package resolve

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rpattn/sparkify/internal/domain"
)

// DefaultTolerance is the largest duration difference, in seconds, still
// treated as the same recording.
const DefaultTolerance = 0.01

// Catalog finds songs by title and artist name.
type Catalog interface {
	FindSongCandidates(ctx context.Context, title, artistName string) ([]domain.SongCandidate, error)
}

// Resolver matches events against the song and artist dimensions.
type Resolver struct {
	catalog   Catalog
	tolerance float64
}

// NewResolver creates a resolver. A zero tolerance requires the durations to
// be equal.
func NewResolver(catalog Catalog, tolerance float64) (*Resolver, error) {
	if tolerance < 0 || math.IsNaN(tolerance) {
		return nil, &domain.ValidationError{
			Field:   "duration_tolerance",
			Value:   tolerance,
			Message: "must not be negative",
		}
	}
	return &Resolver{catalog: catalog, tolerance: tolerance}, nil
}

// Resolve returns the song/artist pair whose title, artist name and duration
// match. When several pairs match, the lowest song id wins, then the lowest
// artist id. No match is not an error.
func (r *Resolver) Resolve(ctx context.Context, title, artistName string, duration float64) (domain.SongMatch, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(artistName) == "" {
		return domain.SongMatch{}, nil
	}

	candidates, err := r.catalog.FindSongCandidates(ctx, title, artistName)
	if err != nil {
		return domain.SongMatch{}, fmt.Errorf("failed to look up %q by %q: %w", title, artistName, err)
	}

	return pick(candidates, duration, r.tolerance), nil
}

func pick(candidates []domain.SongCandidate, duration, tolerance float64) domain.SongMatch {
	var best domain.SongMatch
	for _, c := range candidates {
		if math.Abs(c.Duration-duration) > tolerance {
			continue
		}
		if !best.Found || c.SongID < best.SongID || (c.SongID == best.SongID && c.ArtistID < best.ArtistID) {
			best = domain.SongMatch{SongID: c.SongID, ArtistID: c.ArtistID, Found: true}
		}
	}
	return best
}

// Package distance renders cumulative track distance and searches fixes by it.
package distance

import (
	"fmt"
	"math"
	"strings"

	"github.com/roadlens/trackmark/internal/track"
	"github.com/roadlens/trackmark/pkg/core"
)

// DefaultMaxResults caps the number of search matches.
const DefaultMaxResults = 30

// Format renders meters as "<km>k + <remainder>m" where km is the floor of
// meters/1000 and the remainder is meters mod 1000 with two decimals. The
// remainder is never negative, so -500 renders as "-1k + 500.00m". Meters are
// rounded to centimeters first, so the remainder never prints as 1000.00.
// Non-finite input renders as "NaNk + NaNm".
func Format(meters float64) string {
	if math.IsNaN(meters) || math.IsInf(meters, 0) {
		return "NaNk + NaNm"
	}
	cm := math.Round(meters * 100)
	km := math.Floor(cm / 100000)
	rest := (cm - km*100000) / 100
	return fmt.Sprintf("%dk + %.2fm", int64(km), rest)
}

// Readout renders the on-screen distance of fix, including the track's start offset.
func Readout(t *track.Track, fix core.GpsFix) string {
	return Format(t.DisplayDistance(fix))
}

// Match is a search hit: the fix, its index in the track and its rendered label.
type Match struct {
	Index int
	Fix   core.GpsFix
	Label string
}

// Search returns fixes whose rendered distance contains query, ignoring case
// and surrounding whitespace. Results keep track order and are capped at
// limit (DefaultMaxResults when limit <= 0). An empty query matches nothing.
func Search(t *track.Track, query string, limit int) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || t == nil {
		return nil
	}
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	offset := t.StartOffsetKm() * 1000
	var matches []Match
	for i := 0; i < t.Len() && len(matches) < limit; i++ {
		fix := t.At(i)
		label := Format(offset + fix.TotalDistance)
		if strings.Contains(strings.ToLower(label), q) {
			matches = append(matches, Match{Index: i, Fix: fix, Label: label})
		}
	}
	return matches
}

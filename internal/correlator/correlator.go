// Package correlator implements the pure correlation rule: whether a
// fingerprint has been co-observed by enough distinct participants
// within a configured time window.
//
// Grounded on the pack's event-correlation engine shape (a configured
// window, a pure decision function, no I/O or mutation) and the
// teacher's internal/heuristics/factor_graph.go, which likewise turns
// a numeric signal into a qualitative confidence level with no side
// effects.
package correlator

import (
	"time"

	"github.com/rawblock/fraudmesh-coordinator/pkg/models"
)

// GraphReader is the read-only slice of the graph the correlator needs.
// Implemented by *graph.Graph; declared here so this package has no
// compile-time dependency on the graph package's concurrency internals.
type GraphReader interface {
	RecentObservations(fingerprint string, window time.Duration) []models.Observation
	UniqueParticipants(fingerprint string, window time.Duration) int
}

// Config holds the correlator's thresholds, all with the spec.md §4.2
// defaults.
type Config struct {
	// EntityThreshold is the minimum distinct-participant count for a
	// correlation to exist at all. Must be >= 2.
	EntityThreshold int
	// TimeWindow bounds which observations are considered.
	TimeWindow time.Duration

	// HighParticipants and HighSpan gate the HIGH confidence tier.
	HighParticipants int
	HighSpan         time.Duration

	// MediumParticipants and MediumSpan gate the MEDIUM confidence tier.
	MediumParticipants int
	MediumSpan         time.Duration
}

// DefaultConfig returns the spec.md §4.2 default thresholds:
// threshold=2, window=300s, (kH,tH)=(3,180s), (kM,tM)=(2,300s).
func DefaultConfig() Config {
	return Config{
		EntityThreshold:    2,
		TimeWindow:         300 * time.Second,
		HighParticipants:   3,
		HighSpan:           180 * time.Second,
		MediumParticipants: 2,
		MediumSpan:         300 * time.Second,
	}
}

// Correlate decides whether fingerprint is currently correlated,
// reading the graph through g. Returns (correlation, true) when
// unique_participants >= EntityThreshold, else (zero value, false).
func Correlate(g GraphReader, fingerprint string, cfg Config) (models.Correlation, bool) {
	observations := g.RecentObservations(fingerprint, cfg.TimeWindow)
	if len(observations) == 0 {
		return models.Correlation{}, false
	}

	participantCount := g.UniqueParticipants(fingerprint, cfg.TimeWindow)
	if participantCount < cfg.EntityThreshold {
		return models.Correlation{}, false
	}

	span := timeSpanSeconds(observations)

	return models.Correlation{
		Fingerprint:      fingerprint,
		ParticipantCount: participantCount,
		TimeSpanSeconds:  span,
		Confidence:       confidenceFor(participantCount, span, cfg),
		Observations:     observations,
	}, true
}

// timeSpanSeconds returns last.timestamp - first.timestamp across
// observations, which RecentObservations returns in chronological
// (insertion) order.
func timeSpanSeconds(observations []models.Observation) float64 {
	if len(observations) == 0 {
		return 0
	}
	first := observations[0].Timestamp
	last := observations[0].Timestamp
	for _, obs := range observations {
		if obs.Timestamp.Before(first) {
			first = obs.Timestamp
		}
		if obs.Timestamp.After(last) {
			last = obs.Timestamp
		}
	}
	span := last.Sub(first).Seconds()
	if span < 0 {
		span = 0
	}
	return span
}

// confidenceFor applies spec.md §4.2's confidence rule:
//
//	HIGH   if k >= kH AND span <= tH
//	MEDIUM if k >= kM AND span <= tM
//	else LOW
func confidenceFor(participantCount int, spanSeconds float64, cfg Config) models.Confidence {
	switch {
	case participantCount >= cfg.HighParticipants && spanSeconds <= cfg.HighSpan.Seconds():
		return models.ConfidenceHigh
	case participantCount >= cfg.MediumParticipants && spanSeconds <= cfg.MediumSpan.Seconds():
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

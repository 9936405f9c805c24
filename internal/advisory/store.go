// Package advisory implements the bounded, insertion-ordered advisory
// collection and the fixed recommended-action text table.
//
// Grounded directly on the teacher's internal/heuristics/alert_system.go
// AlertManager: a sync.RWMutex-guarded slice, append-then-trim-from-front
// bounded history, newest-first retrieval. The Advisory Store generalizes
// that "recent alert history for webhook replay" shape into "recent
// advisories for peer consultation", adding severity-tier filtering and
// per-fingerprint lookup.
package advisory

import (
	"fmt"
	"sync"

	"github.com/rawblock/fraudmesh-coordinator/pkg/models"
)

// defaultMaxAdvisories mirrors the teacher's AlertManager.maxHistory
// default of 1000, also spec.md §6's MAX_ADVISORIES default.
const defaultMaxAdvisories = 1000

// Store is a concurrent-safe, bounded, chronologically ordered
// collection of advisories.
type Store struct {
	mu            sync.RWMutex
	advisories    []models.Advisory
	maxAdvisories int
}

// NewStore creates an empty store bounded to maxAdvisories entries. A
// non-positive value falls back to defaultMaxAdvisories.
func NewStore(maxAdvisories int) *Store {
	if maxAdvisories <= 0 {
		maxAdvisories = defaultMaxAdvisories
	}
	return &Store{maxAdvisories: maxAdvisories}
}

// Append adds an advisory to the tail. If the store would exceed its
// bound, the oldest advisory is evicted.
func (s *Store) Append(a models.Advisory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advisories = append(s.advisories, a)
	if len(s.advisories) > s.maxAdvisories {
		s.advisories = s.advisories[len(s.advisories)-s.maxAdvisories:]
	}
}

// List returns up to limit advisories, newest first, optionally
// filtered by severity tier. A non-positive limit returns everything
// that matches the filter.
func (s *Store) List(limit int, tier models.Tier) []models.Advisory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Advisory, 0, len(s.advisories))
	for i := len(s.advisories) - 1; i >= 0; i-- {
		a := s.advisories[i]
		if tier != "" && a.SeverityTier != tier {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ListForFingerprint returns all stored advisories for fingerprint, in
// insertion order.
func (s *Store) ListForFingerprint(fingerprint string) []models.Advisory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Advisory, 0)
	for _, a := range s.advisories {
		if a.Fingerprint == fingerprint {
			out = append(out, a)
		}
	}
	return out
}

// HighestTier returns the highest severity tier already advised for
// fingerprint, used by the pipeline to decide whether a rising
// correlation should re-fire an advisory (spec.md §9 open question,
// decided: an advisory fires at most once per rising tier).
func (s *Store) HighestTier(fingerprint string) (models.Tier, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var highest models.Tier
	found := false
	for _, a := range s.advisories {
		if a.Fingerprint != fingerprint {
			continue
		}
		if !found || a.SeverityTier.HigherThan(highest) {
			highest = a.SeverityTier
			found = true
		}
	}
	return highest, found
}

// Len returns the current number of stored advisories.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.advisories)
}

// recommendedActions holds the fixed, byte-for-byte reproducible action
// text spec.md §4.4 requires, keyed by severity tier.
var recommendedActions = map[models.Tier][]string{
	models.TierCritical: {
		"IMMEDIATE review of matching activity",
		"IMMEDIATE protective limits",
		"URGENT investigation",
		"URGENT peer notification",
		"RECOMMENDED peer sharing",
		"RECOMMENDED rule update",
	},
	models.TierHigh: {
		"URGENT review",
		"URGENT peer notification",
		"RECOMMENDED protective limits",
		"RECOMMENDED peer sharing",
		"OPTIONAL rule update",
	},
	models.TierMedium: {
		"RECOMMENDED monitoring",
		"RECOMMENDED peer notification",
		"OPTIONAL review",
		"OPTIONAL rule update",
	},
}

// RecommendedActions returns the fixed action list for tier, in order.
// Returns a copy so callers can never mutate the shared table.
func RecommendedActions(tier models.Tier) []string {
	actions := recommendedActions[tier]
	out := make([]string, len(actions))
	copy(out, actions)
	return out
}

// BuildAdvisory composes an Advisory from an escalation alert, per
// spec.md §4.4: a stable ID derived from a coarse timestamp and a
// fingerprint prefix, a multi-line message, and the tier's fixed
// action list.
func BuildAdvisory(alert models.IntentAlert) models.Advisory {
	return models.Advisory{
		AdvisoryID:         advisoryID(alert),
		Fingerprint:        alert.Fingerprint,
		SeverityTier:       alert.SeverityTier,
		FraudScore:         alert.FraudScore,
		ParticipantCount:   alert.ParticipantCount,
		Confidence:         alert.Confidence,
		Message:            message(alert),
		RecommendedActions: RecommendedActions(alert.SeverityTier),
		Timestamp:          alert.Timestamp,
	}
}

// advisoryID encodes a coarse (minute-resolution) timestamp and an
// 8-character fingerprint prefix, stable across repeated calls for the
// same alert within the same minute.
func advisoryID(alert models.IntentAlert) string {
	prefix := alert.Fingerprint
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("adv-%d-%s", alert.Timestamp.Unix()/60, prefix)
}

// message renders the multi-line advisory body spec.md §4.4 requires:
// severity, participant count, confidence, and rationale.
func message(alert models.IntentAlert) string {
	return fmt.Sprintf(
		"Severity: %s\nParticipants: %d\nConfidence: %s\n%s",
		alert.SeverityTier, alert.ParticipantCount, alert.Confidence, alert.Rationale,
	)
}

// Package escalation converts a correlation plus a triggering
// submission's severity into an optional intent alert.
//
// The severity-tier threshold table is grounded on
// IAmSoThirsty-Project-AI/octoreflex's internal/escalation/severity.go:
// a Thresholds struct evaluated highest-first, sequentially, with a
// documented monotonic ordering requirement. The fraud-score formula's
// weighted-signal-composition shape is grounded on the teacher's
// internal/heuristics/privacy_score.go (base score + bonuses + penalty
// + clamp).
package escalation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/fraudmesh-coordinator/pkg/models"
)

// Thresholds holds the participant-count boundaries for each severity
// tier. Per spec.md §4.3, Critical >= High >= Medium >= 2.
type Thresholds struct {
	Critical int
	High     int
	Medium   int
}

// DefaultThresholds returns the spec.md §4.3 defaults: (4, 3, 2).
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 4, High: 3, Medium: 2}
}

// recencyPenaltySpanSeconds is the time-span threshold beyond which the
// fraud score takes a recency penalty (spec.md §4.3 step 3).
const recencyPenaltySpanSeconds = 600.0

// TargetTier determines the severity tier for a given participant
// count, evaluated highest-first as octoreflex's TargetState does.
// Returns ("", false) when no tier is reached.
func TargetTier(participantCount int, t Thresholds) (models.Tier, bool) {
	switch {
	case participantCount >= t.Critical:
		return models.TierCritical, true
	case participantCount >= t.High:
		return models.TierHigh, true
	case participantCount >= t.Medium:
		return models.TierMedium, true
	default:
		return "", false
	}
}

// Escalate evaluates a correlation plus the triggering submission's
// severity and produces an optional alert. The escalator is pure: no
// I/O, no state mutation, and it is total over well-formed input — it
// never errors.
func Escalate(corr models.Correlation, submissionSeverity models.Severity, t Thresholds, now time.Time) (models.IntentAlert, bool) {
	tier, ok := TargetTier(corr.ParticipantCount, t)
	if !ok {
		return models.IntentAlert{}, false
	}

	score := fraudScore(corr, submissionSeverity)

	alert := models.IntentAlert{
		AlertID:          generateAlertID(corr.Fingerprint, now),
		Fingerprint:      corr.Fingerprint,
		SeverityTier:     tier,
		Confidence:       corr.Confidence,
		FraudScore:       score,
		ParticipantCount: corr.ParticipantCount,
		TimeSpanSeconds:  corr.TimeSpanSeconds,
		Rationale:        rationale(corr),
		Timestamp:        now,
	}
	return alert, true
}

// fraudScore implements spec.md §4.3's five-step formula:
//  1. base = min(80, 20*k)
//  2. confidence bonus: HIGH +10, MEDIUM +5, LOW +0
//  3. recency penalty: span > 600s -> -10
//  4. severity adjustment: LOW -5, MEDIUM 0, HIGH +5, CRITICAL +10
//  5. clamp to [0, 100]
func fraudScore(corr models.Correlation, submissionSeverity models.Severity) int {
	base := 20 * corr.ParticipantCount
	if base > 80 {
		base = 80
	}

	score := base

	switch corr.Confidence {
	case models.ConfidenceHigh:
		score += 10
	case models.ConfidenceMedium:
		score += 5
	}

	if corr.TimeSpanSeconds > recencyPenaltySpanSeconds {
		score -= 10
	}

	score += severityAdjustment(submissionSeverity)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func severityAdjustment(s models.Severity) int {
	switch s {
	case models.SeverityLow:
		return -5
	case models.SeverityHigh:
		return 5
	case models.SeverityCritical:
		return 10
	default: // MEDIUM, or an already-validated-elsewhere unknown value
		return 0
	}
}

// rationale renders the fixed sentence shape spec.md §4.3 requires.
func rationale(corr models.Correlation) string {
	return fmt.Sprintf(
		"Pattern observed by %d distinct participants within %.0f seconds (confidence %s)",
		corr.ParticipantCount, corr.TimeSpanSeconds, corr.Confidence,
	)
}

// generateAlertID derives a short, unique, time+fingerprint-derived
// identifier, following the teacher's uuid-based handle generation
// (internal/heuristics/llr_engine.go's createEdge).
func generateAlertID(fingerprint string, now time.Time) string {
	prefix := fingerprint
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("alert-%s-%d-%s", prefix, now.Unix(), uuid.New().String()[:8])
}

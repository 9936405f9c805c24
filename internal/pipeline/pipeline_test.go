package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/rawblock/fraudmesh-coordinator/internal/advisory"
	"github.com/rawblock/fraudmesh-coordinator/internal/correlator"
	"github.com/rawblock/fraudmesh-coordinator/internal/escalation"
	"github.com/rawblock/fraudmesh-coordinator/internal/graph"
	"github.com/rawblock/fraudmesh-coordinator/pkg/models"
)

func newTestPipeline(now time.Time) (*Pipeline, *graph.Graph, *advisory.Store) {
	g := graph.New(func() time.Time { return now })
	store := advisory.NewStore(100)
	p := New(g, store, correlator.DefaultConfig(), escalation.DefaultThresholds(), func() time.Time { return now }, nil)
	return p, g, store
}

func TestScenarioS1_SingleParticipantNoCorrelation(t *testing.T) {
	base := time.Now()
	p, g, store := newTestPipeline(base)

	ack := p.Submit(models.Submission{ParticipantID: "A", Fingerprint: "FP1", Severity: models.SeverityHigh, Timestamp: base})

	if ack.CorrelationDetected {
		t.Errorf("expected correlation_detected=false for a single participant")
	}
	if store.Len() != 0 {
		t.Errorf("expected no advisories, got %d", store.Len())
	}
	stats := g.Stats(300 * time.Second)
	if stats.UniquePatterns != 1 || stats.TotalObservations != 1 || stats.ActiveEntities != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestScenarioS2_TwoParticipantsMediumAdvisory(t *testing.T) {
	base := time.Now()
	p, _, store := newTestPipeline(base)

	p.Submit(models.Submission{ParticipantID: "A", Fingerprint: "FP2", Severity: models.SeverityHigh, Timestamp: base})
	ack := p.Submit(models.Submission{ParticipantID: "B", Fingerprint: "FP2", Severity: models.SeverityHigh, Timestamp: base.Add(60 * time.Second)})

	if !ack.CorrelationDetected {
		t.Fatalf("expected the second submission to detect correlation")
	}
	advisories := store.List(0, "")
	if len(advisories) != 1 {
		t.Fatalf("expected exactly 1 advisory, got %d", len(advisories))
	}
	a := advisories[0]
	if a.SeverityTier != models.TierMedium {
		t.Errorf("expected MEDIUM tier, got %s", a.SeverityTier)
	}
	if a.ParticipantCount != 2 {
		t.Errorf("expected participant_count=2, got %d", a.ParticipantCount)
	}
	if a.Confidence != models.ConfidenceMedium {
		t.Errorf("expected MEDIUM confidence, got %s", a.Confidence)
	}
	if a.FraudScore < 40 {
		t.Errorf("expected fraud_score >= 40, got %d", a.FraudScore)
	}
	if len(a.RecommendedActions) != 4 {
		t.Errorf("expected 4 recommended actions for MEDIUM tier, got %d", len(a.RecommendedActions))
	}
}

func TestScenarioS3_ThreeParticipantsHighAdvisory(t *testing.T) {
	base := time.Now()
	p, _, store := newTestPipeline(base)

	p.Submit(models.Submission{ParticipantID: "A", Fingerprint: "FP3", Severity: models.SeverityHigh, Timestamp: base})
	p.Submit(models.Submission{ParticipantID: "B", Fingerprint: "FP3", Severity: models.SeverityHigh, Timestamp: base.Add(30 * time.Second)})
	ack := p.Submit(models.Submission{ParticipantID: "C", Fingerprint: "FP3", Severity: models.SeverityHigh, Timestamp: base.Add(120 * time.Second)})

	if !ack.CorrelationDetected {
		t.Fatalf("expected correlation on the third submission")
	}
	advisories := store.List(0, "")
	if len(advisories) == 0 {
		t.Fatalf("expected at least one advisory")
	}
	latest := advisories[0]
	if latest.SeverityTier != models.TierHigh {
		t.Errorf("expected HIGH tier, got %s", latest.SeverityTier)
	}
	if latest.Confidence != models.ConfidenceHigh {
		t.Errorf("expected HIGH confidence, got %s", latest.Confidence)
	}
	if latest.ParticipantCount != 3 {
		t.Errorf("expected participant_count=3, got %d", latest.ParticipantCount)
	}
	if len(latest.RecommendedActions) != 5 {
		t.Errorf("expected 5 recommended actions for HIGH tier, got %d", len(latest.RecommendedActions))
	}
}

func TestScenarioS4_FourParticipantsCriticalAdvisory(t *testing.T) {
	base := time.Now()
	p, _, store := newTestPipeline(base)

	participants := []string{"A", "B", "C", "D"}
	for i, part := range participants {
		p.Submit(models.Submission{ParticipantID: part, Fingerprint: "FP4", Severity: models.SeverityHigh, Timestamp: base.Add(time.Duration(i*50) * time.Second)})
	}

	advisories := store.List(0, "")
	latest := advisories[0]
	if latest.SeverityTier != models.TierCritical {
		t.Errorf("expected CRITICAL tier, got %s", latest.SeverityTier)
	}
	if len(latest.RecommendedActions) != 6 {
		t.Errorf("expected 6 recommended actions for CRITICAL tier, got %d", len(latest.RecommendedActions))
	}
	if latest.FraudScore < 80 {
		t.Errorf("expected fraud_score >= 80, got %d", latest.FraudScore)
	}
}

func TestAdvisory_DoesNotRefireOnSameOrLowerTier(t *testing.T) {
	base := time.Now()
	p, _, store := newTestPipeline(base)

	// Reach MEDIUM with 2 participants.
	p.Submit(models.Submission{ParticipantID: "A", Fingerprint: "FP5", Severity: models.SeverityHigh, Timestamp: base})
	p.Submit(models.Submission{ParticipantID: "B", Fingerprint: "FP5", Severity: models.SeverityHigh, Timestamp: base.Add(10 * time.Second)})

	if store.Len() != 1 {
		t.Fatalf("expected 1 advisory after reaching MEDIUM, got %d", store.Len())
	}

	// A third submission from an already-seen participant does not
	// raise participant_count, so the tier stays MEDIUM - no new advisory.
	p.Submit(models.Submission{ParticipantID: "A", Fingerprint: "FP5", Severity: models.SeverityHigh, Timestamp: base.Add(20 * time.Second)})

	if store.Len() != 1 {
		t.Errorf("expected no new advisory when the tier does not rise, got %d advisories", store.Len())
	}
}

func TestAdvisory_RefiresWhenTierRises(t *testing.T) {
	base := time.Now()
	p, _, store := newTestPipeline(base)

	p.Submit(models.Submission{ParticipantID: "A", Fingerprint: "FP6", Severity: models.SeverityHigh, Timestamp: base})
	p.Submit(models.Submission{ParticipantID: "B", Fingerprint: "FP6", Severity: models.SeverityHigh, Timestamp: base.Add(10 * time.Second)})
	if store.Len() != 1 {
		t.Fatalf("expected 1 advisory at MEDIUM, got %d", store.Len())
	}

	p.Submit(models.Submission{ParticipantID: "C", Fingerprint: "FP6", Severity: models.SeverityHigh, Timestamp: base.Add(20 * time.Second)})
	if store.Len() != 2 {
		t.Fatalf("expected a second advisory once the tier rises to HIGH, got %d", store.Len())
	}
}

// TestSubmit_ConcurrentSubmissionsForSameFingerprintNeverDoubleFire drives
// the race the unserialized accept sequence would allow: every
// participant crossing a rising tier boundary at once. With Submit
// serialized end to end, exactly one advisory fires per tier actually
// reached (MEDIUM at k=2, HIGH at k=3, CRITICAL at k=4), regardless of
// goroutine scheduling order.
func TestSubmit_ConcurrentSubmissionsForSameFingerprintNeverDoubleFire(t *testing.T) {
	base := time.Now()
	p, _, store := newTestPipeline(base)

	participants := []string{"A", "B", "C", "D"}
	var wg sync.WaitGroup
	for _, part := range participants {
		wg.Add(1)
		go func(participantID string) {
			defer wg.Done()
			p.Submit(models.Submission{
				ParticipantID: participantID,
				Fingerprint:   "FP_CONCURRENT",
				Severity:      models.SeverityHigh,
				Timestamp:     base,
			})
		}(part)
	}
	wg.Wait()

	if got := store.Len(); got != 3 {
		t.Fatalf("expected exactly 3 advisories (one per tier reached: MEDIUM, HIGH, CRITICAL), got %d", got)
	}

	seenTiers := make(map[models.Tier]int)
	for _, a := range store.List(0, "") {
		seenTiers[a.SeverityTier]++
	}
	for _, tier := range []models.Tier{models.TierMedium, models.TierHigh, models.TierCritical} {
		if seenTiers[tier] != 1 {
			t.Errorf("expected exactly 1 advisory at tier %s, got %d", tier, seenTiers[tier])
		}
	}
}

func TestValidate_RejectsEmptyFields(t *testing.T) {
	p, _, _ := newTestPipeline(time.Now())

	sub := models.Submission{ParticipantID: "", Fingerprint: "FP1", Severity: models.SeverityHigh}
	if err := p.Validate(&sub); err == nil {
		t.Errorf("expected validation error for empty participant id")
	}
}

func TestValidate_RejectsUnknownSeverity(t *testing.T) {
	p, _, _ := newTestPipeline(time.Now())
	sub := models.Submission{ParticipantID: "A", Fingerprint: "FP1", Severity: "BOGUS"}
	if err := p.Validate(&sub); err == nil {
		t.Errorf("expected validation error for unknown severity")
	}
}

func TestValidate_SubstitutesServerNowWhenTimestampMissing(t *testing.T) {
	base := time.Now()
	p, _, _ := newTestPipeline(base)
	sub := models.Submission{ParticipantID: "A", Fingerprint: "FP1", Severity: models.SeverityHigh}
	if err := p.Validate(&sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sub.Timestamp.Equal(base) {
		t.Errorf("expected timestamp to be substituted with server now")
	}
}

func TestValidate_RejectsFarFutureTimestamp(t *testing.T) {
	base := time.Now()
	p, _, _ := newTestPipeline(base)
	sub := models.Submission{ParticipantID: "A", Fingerprint: "FP1", Severity: models.SeverityHigh, Timestamp: base.Add(2 * time.Minute)}
	if err := p.Validate(&sub); err == nil {
		t.Errorf("expected rejection of a timestamp more than the allowed skew ahead of now")
	}
}

func TestSubmit_UnrelatedFingerprintsAreIndependent(t *testing.T) {
	base := time.Now()
	p, _, _ := newTestPipeline(base)

	p.Submit(models.Submission{ParticipantID: "A", Fingerprint: "FP1", Severity: models.SeverityHigh, Timestamp: base})
	p.Submit(models.Submission{ParticipantID: "B", Fingerprint: "FP1", Severity: models.SeverityHigh, Timestamp: base.Add(time.Second)})

	ackOther := p.Submit(models.Submission{ParticipantID: "C", Fingerprint: "FP_OTHER", Severity: models.SeverityLow, Timestamp: base.Add(2 * time.Second)})
	if ackOther.CorrelationDetected {
		t.Errorf("an unrelated fingerprint's single submission must not show correlation")
	}
}

// Package pipeline is the single entry point for submissions: it
// validates, updates the graph, runs the correlator and escalator, and
// appends any resulting advisory to the store. Submissions are
// serialized by the pipeline's own mutex; the graph's write lock is
// not held across the sequence — each graph call takes the graph lock
// on its own, so a prune pass or a reader can run between the write
// and the correlation.
//
// Grounded on the teacher's internal/mempool/poller.go orchestration
// (a component holding references to the stores it drives, calling
// through a fixed sequence, emitting on escalation) and
// internal/api/routes.go's handleAnalyzeTx (validate -> analyze ->
// score -> persist-if-escalated).
package pipeline

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/rawblock/fraudmesh-coordinator/internal/advisory"
	"github.com/rawblock/fraudmesh-coordinator/internal/correlator"
	"github.com/rawblock/fraudmesh-coordinator/internal/escalation"
	"github.com/rawblock/fraudmesh-coordinator/internal/graph"
	"github.com/rawblock/fraudmesh-coordinator/pkg/models"
)

// ErrInvalidSubmission is wrapped with a specific reason by Validate.
var ErrInvalidSubmission = errors.New("invalid submission")

// Ack is the acknowledgement returned for an accepted submission,
// per spec.md §4.5 step 7 and the POST /ingest wire shape in §6.
type Ack struct {
	Status               string
	FingerprintTruncated string
	ParticipantID        string
	CorrelationDetected  bool
}

// fingerprintPreviewLen truncates fingerprints for readability in
// acknowledgements and the /ingest wire response, per spec.md §6.
const fingerprintPreviewLen = 16

// MetricsSink receives pipeline observability events. The API's
// internal/metrics.Collector implements this; tests may use a no-op.
type MetricsSink interface {
	ObserveSubmission(correlationDetected bool)
	ObserveAdvisory(tier models.Tier, fraudScore int)
}

type noopSink struct{}

func (noopSink) ObserveSubmission(bool)          {}
func (noopSink) ObserveAdvisory(models.Tier, int) {}

// Pipeline wires the graph, correlator, escalator and advisory store
// together behind a single Submit entry point.
//
// submitMu serializes the whole add-correlate-escalate-dedup sequence
// so it is the unit of atomicity spec.md §5 requires: AddObservation
// and Correlate each take the graph's own lock independently, and
// tryEscalate's HighestTier-then-Append is a check-then-act against
// the advisory store, so without an outer lock two concurrent Submit
// calls for the same fingerprint could both observe "tier not yet
// risen" and both append an advisory for the same rising tier.
type Pipeline struct {
	submitMu sync.Mutex

	graph   *graph.Graph
	store   *advisory.Store
	corrCfg correlator.Config
	escCfg  escalation.Thresholds
	clock   func() time.Time
	metrics MetricsSink
}

// New constructs a Pipeline. Pass nil for metrics to use a no-op sink.
func New(g *graph.Graph, store *advisory.Store, corrCfg correlator.Config, escCfg escalation.Thresholds, clock func() time.Time, metrics MetricsSink) *Pipeline {
	if clock == nil {
		clock = time.Now
	}
	if metrics == nil {
		metrics = noopSink{}
	}
	return &Pipeline{graph: g, store: store, corrCfg: corrCfg, escCfg: escCfg, clock: clock, metrics: metrics}
}

// Validate checks the fields spec.md §3 requires and substitutes the
// server's "now" when Timestamp is zero. It returns a reason string
// wrapped in ErrInvalidSubmission on failure.
func (p *Pipeline) Validate(sub *models.Submission) error {
	if strings.TrimSpace(sub.ParticipantID) == "" {
		return invalid("entity_id is required")
	}
	if strings.TrimSpace(sub.Fingerprint) == "" {
		return invalid("fingerprint is required")
	}
	if !sub.Severity.Valid() {
		return invalid("severity must be one of LOW, MEDIUM, HIGH, CRITICAL")
	}

	now := p.clock()
	if sub.Timestamp.IsZero() {
		sub.Timestamp = now
	} else if sub.Timestamp.Sub(now) > models.MaxClockSkew() {
		return invalid("timestamp is too far in the future")
	}
	return nil
}

func invalid(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrInvalidSubmission)
}

// Submit runs the full accept sequence for a validated submission: add
// the observation, correlate, escalate, and (at most once per rising
// severity tier) append a new advisory. The whole sequence runs while
// the caller is presumed to already hold no external lock — Submit
// itself is the unit of atomicity: the graph write happens first and
// is never rolled back, even if escalation produces nothing, because
// the observation is valid evidence regardless of what the escalator
// decides (spec.md §4.5).
func (p *Pipeline) Submit(sub models.Submission) Ack {
	p.submitMu.Lock()
	defer p.submitMu.Unlock()

	p.graph.AddObservation(sub.ParticipantID, sub.Fingerprint, sub.Severity, sub.Timestamp)

	corr, correlated := correlator.Correlate(p.graph, sub.Fingerprint, p.corrCfg)

	ack := Ack{
		Status:               "accepted",
		FingerprintTruncated: truncateFingerprint(sub.Fingerprint),
		ParticipantID:        sub.ParticipantID,
		CorrelationDetected:  correlated,
	}

	if correlated {
		p.tryEscalate(corr, sub.Severity)
	}

	p.metrics.ObserveSubmission(correlated)
	return ack
}

// tryEscalate runs the escalator and, if the resulting tier is
// strictly higher than any tier previously advised for this
// fingerprint, builds and appends a new advisory. This implements the
// spec.md §9 open-question decision: an advisory fires at most once
// per (fingerprint, rising severity tier).
func (p *Pipeline) tryEscalate(corr models.Correlation, submissionSeverity models.Severity) {
	alert, escalated := escalation.Escalate(corr, submissionSeverity, p.escCfg, p.clock())
	if !escalated {
		return
	}

	if highest, known := p.store.HighestTier(corr.Fingerprint); known && !alert.SeverityTier.HigherThan(highest) {
		return
	}

	adv := advisory.BuildAdvisory(alert)
	p.store.Append(adv)
	p.metrics.ObserveAdvisory(adv.SeverityTier, adv.FraudScore)
	log.Printf("[Pipeline] advisory %s issued for fingerprint %s (tier=%s score=%d participants=%d)",
		adv.AdvisoryID, truncateFingerprint(adv.Fingerprint), adv.SeverityTier, adv.FraudScore, adv.ParticipantCount)
}

func truncateFingerprint(fp string) string {
	if len(fp) <= fingerprintPreviewLen {
		return fp
	}
	return fp[:fingerprintPreviewLen] + "..."
}

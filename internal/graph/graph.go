// Package graph implements the bipartite, time-stamped observation
// graph: participants on one side, fingerprints on the other, with
// observations as the edges between them.
//
// Concurrency model follows the teacher's address-watchlist engine: a
// single sync.RWMutex guards the whole structure, readers take RLock,
// writers take Lock. Edge handles are generated with google/uuid (the
// same library the original repo used for EvidenceEdge.EdgeID), kept
// in a flat map, and indexed by participant and by fingerprint so
// per-fingerprint and per-participant queries never scan the whole
// graph.
package graph

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/fraudmesh-coordinator/pkg/models"
)

// Clock abstracts time.Now so tests can inject a fixed or stepped clock.
type Clock func() time.Time

// fingerprintNode tracks the attributes spec.md §3 requires: first_seen,
// last_seen, and an ordered list of incident observation handles
// (chronological by construction, since submissions append in
// arrival order).
type fingerprintNode struct {
	firstSeen time.Time
	lastSeen  time.Time
	handles   []string
}

// participantNode tracks the incident observation handles for one
// participant, used for degree counting and activity queries.
type participantNode struct {
	handles []string
}

// Graph is the concurrent-safe observation store. Zero value is not
// usable; construct with New.
type Graph struct {
	mu sync.RWMutex

	clock Clock

	observations map[string]models.Observation // handle -> edge
	fingerprints map[string]*fingerprintNode
	participants map[string]*participantNode
}

// New creates an empty graph using the supplied clock for "now"
// comparisons in recency queries and pruning. Pass time.Now in
// production; tests may inject a fixed or stepped function.
func New(clock Clock) *Graph {
	if clock == nil {
		clock = time.Now
	}
	return &Graph{
		clock:        clock,
		observations: make(map[string]models.Observation),
		fingerprints: make(map[string]*fingerprintNode),
		participants: make(map[string]*participantNode),
	}
}

// AddObservation inserts one (participant, fingerprint, severity,
// timestamp) edge, lazily creating both incident nodes. This is a pure
// insert: it never fails on well-typed input.
func (g *Graph) AddObservation(participantID, fingerprint string, severity models.Severity, ts time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	handle := uuid.New().String()
	g.observations[handle] = models.Observation{
		ParticipantID: participantID,
		Fingerprint:   fingerprint,
		Severity:      severity,
		Timestamp:     ts,
	}

	fp, ok := g.fingerprints[fingerprint]
	if !ok {
		fp = &fingerprintNode{firstSeen: ts, lastSeen: ts}
		g.fingerprints[fingerprint] = fp
	}
	fp.handles = append(fp.handles, handle)
	if ts.Before(fp.firstSeen) {
		fp.firstSeen = ts
	}
	if ts.After(fp.lastSeen) {
		fp.lastSeen = ts
	}

	p, ok := g.participants[participantID]
	if !ok {
		p = &participantNode{}
		g.participants[participantID] = p
	}
	p.handles = append(p.handles, handle)
}

// RecentObservations returns the chronological list of observations for
// fingerprint whose timestamp is within window of now. Unknown
// fingerprints yield an empty (non-nil) slice.
func (g *Graph) RecentObservations(fingerprint string, window time.Duration) []models.Observation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.recentObservationsLocked(fingerprint, window)
}

// recentObservationsLocked assumes the caller already holds at least a
// read lock.
func (g *Graph) recentObservationsLocked(fingerprint string, window time.Duration) []models.Observation {
	fp, ok := g.fingerprints[fingerprint]
	if !ok {
		return []models.Observation{}
	}

	cutoff := g.clock().Add(-window)
	out := make([]models.Observation, 0, len(fp.handles))
	for _, h := range fp.handles {
		obs, ok := g.observations[h]
		if !ok {
			continue // pruned concurrently between index read and lookup — impossible under our single lock, kept defensive
		}
		if !obs.Timestamp.Before(cutoff) {
			out = append(out, obs)
		}
	}
	return out
}

// UniqueParticipants returns the count of distinct participant IDs
// among fingerprint's recent observations.
func (g *Graph) UniqueParticipants(fingerprint string, window time.Duration) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	recent := g.recentObservationsLocked(fingerprint, window)
	seen := make(map[string]struct{}, len(recent))
	for _, obs := range recent {
		seen[obs.ParticipantID] = struct{}{}
	}
	return len(seen)
}

// ActiveParticipants returns every participant ID with at least one
// observation within window of now, across all fingerprints.
func (g *Graph) ActiveParticipants(window time.Duration) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.activeParticipantsLocked(window)
}

// activeParticipantsLocked assumes the caller already holds at least a
// read lock.
func (g *Graph) activeParticipantsLocked(window time.Duration) []string {
	cutoff := g.clock().Add(-window)
	out := make([]string, 0, len(g.participants))
	for id, p := range g.participants {
		for _, h := range p.handles {
			obs, ok := g.observations[h]
			if ok && !obs.Timestamp.Before(cutoff) {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// FingerprintInfo is the attribute set spec.md §3 assigns to a
// fingerprint node.
type FingerprintInfo struct {
	FirstSeen        time.Time
	LastSeen         time.Time
	ObservationCount int
}

// FingerprintStats returns a fingerprint node's attributes. The second
// return value is false if the fingerprint is unknown.
func (g *Graph) FingerprintStats(fingerprint string) (FingerprintInfo, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	fp, ok := g.fingerprints[fingerprint]
	if !ok {
		return FingerprintInfo{}, false
	}
	return FingerprintInfo{
		FirstSeen:        fp.firstSeen,
		LastSeen:         fp.lastSeen,
		ObservationCount: len(fp.handles),
	}, true
}

// ParticipantActivity returns a participant's recent fingerprints
// (within window) and the timestamp of its most recent submission of
// any age. The second return value is false if the participant is
// unknown.
func (g *Graph) ParticipantActivity(participantID string, window time.Duration) (fingerprints []string, lastSubmission time.Time, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	p, known := g.participants[participantID]
	if !known || len(p.handles) == 0 {
		return nil, time.Time{}, false
	}

	cutoff := g.clock().Add(-window)
	seen := make(map[string]struct{})
	var last time.Time
	for _, h := range p.handles {
		obs, exists := g.observations[h]
		if !exists {
			continue
		}
		if obs.Timestamp.After(last) {
			last = obs.Timestamp
		}
		if !obs.Timestamp.Before(cutoff) {
			if _, dup := seen[obs.Fingerprint]; !dup {
				seen[obs.Fingerprint] = struct{}{}
				fingerprints = append(fingerprints, obs.Fingerprint)
			}
		}
	}
	if fingerprints == nil {
		fingerprints = []string{}
	}
	return fingerprints, last, true
}

// Prune evicts every observation strictly older than maxAge (now -
// timestamp > maxAge; one with now - timestamp == maxAge survives at
// the boundary, per spec.md §9's inclusive-at-boundary decision) and
// then removes any node left with
// zero incident observations. Returns the number of edges and the
// number of nodes (participants + fingerprints) removed.
func (g *Graph) Prune(maxAge time.Duration) (evictedEdges, evictedNodes int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	for handle, obs := range g.observations {
		if now.Sub(obs.Timestamp) > maxAge {
			delete(g.observations, handle)
			evictedEdges++
		}
	}

	for fingerprint, fp := range g.fingerprints {
		fp.handles = filterSurviving(fp.handles, g.observations)
		if len(fp.handles) == 0 {
			delete(g.fingerprints, fingerprint)
			evictedNodes++
		}
	}

	for participantID, p := range g.participants {
		p.handles = filterSurviving(p.handles, g.observations)
		if len(p.handles) == 0 {
			delete(g.participants, participantID)
			evictedNodes++
		}
	}

	if evictedEdges > 0 {
		log.Printf("[Graph] pruned %d observations and %d orphan nodes (max_age=%s)", evictedEdges, evictedNodes, maxAge)
	}
	return evictedEdges, evictedNodes
}

func filterSurviving(handles []string, observations map[string]models.Observation) []string {
	out := handles[:0]
	for _, h := range handles {
		if _, ok := observations[h]; ok {
			out = append(out, h)
		}
	}
	return out
}

// Stats reports the graph-wide metrics served by GET /stats.
// ActiveEntities counts only participants with at least one observation
// within window of now (spec.md §4.1's active_participants), not every
// resident participant node — a node survives until MAX_GRAPH_AGE_SECONDS
// prunes it, which is normally far longer than the activity window.
func (g *Graph) Stats(window time.Duration) models.GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var coverage float64
	if len(g.observations) > 0 {
		var min time.Time
		first := true
		for _, obs := range g.observations {
			if first || obs.Timestamp.Before(min) {
				min = obs.Timestamp
				first = false
			}
		}
		coverage = g.clock().Sub(min).Seconds()
		if coverage < 0 {
			coverage = 0
		}
	}

	return models.GraphStats{
		UniquePatterns:          len(g.fingerprints),
		TotalObservations:       len(g.observations),
		ActiveEntities:          len(g.activeParticipantsLocked(window)),
		MemorySizeBytesEstimate: models.EstimateMemoryBytes(len(g.observations)),
		TemporalCoverageSeconds: coverage,
	}
}

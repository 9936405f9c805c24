// Package pruner runs the periodic background eviction of aged-out
// observations from the graph.
//
// Grounded on the teacher's internal/api/ratelimit.go cleanupLoop
// (time.NewTicker, acquire-lock-iterate-evict-unlock on a fixed
// interval) and internal/mempool/poller.go's ctx-cancellable Run loop
// (the same shutdown-signal shape spec.md §4.6 and §5 require).
package pruner

import (
	"context"
	"log"
	"time"
)

// Grapher is the write-side slice of the graph the pruner needs.
// Implemented by *graph.Graph.
type Grapher interface {
	Prune(maxAge time.Duration) (evictedEdges, evictedNodes int)
}

// MetricsSink receives prune-tick observability events.
type MetricsSink interface {
	ObservePrune(evictedEdges int)
}

type noopSink struct{}

func (noopSink) ObservePrune(int) {}

// Pruner periodically evicts observations older than MaxAge.
type Pruner struct {
	graph    Grapher
	interval time.Duration
	maxAge   time.Duration
	metrics  MetricsSink
}

// New constructs a Pruner. interval and maxAge must be positive;
// spec.md §6 defaults are PRUNE_INTERVAL_SECONDS=300,
// MAX_GRAPH_AGE_SECONDS=3600. Pass nil for metrics to use a no-op sink.
func New(g Grapher, interval, maxAge time.Duration, metrics MetricsSink) *Pruner {
	if metrics == nil {
		metrics = noopSink{}
	}
	return &Pruner{graph: g, interval: interval, maxAge: maxAge, metrics: metrics}
}

// Run ticks every interval, calling graph.Prune(maxAge), until ctx is
// canceled. It returns within one tick of cancellation (spec.md §4.6,
// §5 "Cancellation and timeouts").
func (p *Pruner) Run(ctx context.Context) {
	log.Printf("[Pruner] starting (interval=%s max_age=%s)", p.interval, p.maxAge)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Pruner] shutting down")
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick runs one prune pass and logs the outcome. A transient fault
// here (there are none by construction — Prune is total) must never
// stop the loop, so this never panics upward.
func (p *Pruner) tick() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Pruner] recovered from unexpected panic during prune: %v", r)
		}
	}()
	edges, nodes := p.graph.Prune(p.maxAge)
	p.metrics.ObservePrune(edges)
	if edges > 0 || nodes > 0 {
		log.Printf("[Pruner] tick complete: evicted %d observations, %d nodes", edges, nodes)
	}
}

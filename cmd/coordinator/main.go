package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rawblock/fraudmesh-coordinator/internal/advisory"
	"github.com/rawblock/fraudmesh-coordinator/internal/api"
	"github.com/rawblock/fraudmesh-coordinator/internal/config"
	"github.com/rawblock/fraudmesh-coordinator/internal/correlator"
	"github.com/rawblock/fraudmesh-coordinator/internal/escalation"
	"github.com/rawblock/fraudmesh-coordinator/internal/graph"
	"github.com/rawblock/fraudmesh-coordinator/internal/metrics"
	"github.com/rawblock/fraudmesh-coordinator/internal/pipeline"
	"github.com/rawblock/fraudmesh-coordinator/internal/pruner"
)

func main() {
	log.Println("Starting FraudMesh Coordinator Hub...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: configuration invalid: %v", err)
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatalf("FATAL: failed to register metrics collectors: %v", err)
	}
	collector := metrics.NewCollector()

	g := graph.New(time.Now)
	store := advisory.NewStore(cfg.MaxAdvisories)

	corrCfg := correlator.Config{
		EntityThreshold:    cfg.EntityThreshold,
		TimeWindow:         cfg.TimeWindow(),
		HighParticipants:   3,
		HighSpan:           180 * time.Second,
		MediumParticipants: 2,
		MediumSpan:         cfg.TimeWindow(),
	}
	escCfg := escalation.Thresholds{
		Critical: cfg.CriticalThreshold,
		High:     cfg.HighThreshold,
		Medium:   cfg.MediumThreshold,
	}

	p := pipeline.New(g, store, corrCfg, escCfg, time.Now, collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prune := pruner.New(g, cfg.PruneInterval(), cfg.MaxGraphAge(), collector)
	go prune.Run(ctx)

	r := api.SetupRouter(cfg, g, store, p)

	addr := cfg.Host + ":" + cfg.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Printf("Coordinator listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutdown signal received, draining connections...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: graceful shutdown did not complete cleanly: %v", err)
	}
}

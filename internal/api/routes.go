package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rawblock/fraudmesh-coordinator/internal/advisory"
	"github.com/rawblock/fraudmesh-coordinator/internal/config"
	"github.com/rawblock/fraudmesh-coordinator/internal/graph"
	"github.com/rawblock/fraudmesh-coordinator/internal/pipeline"
	"github.com/rawblock/fraudmesh-coordinator/pkg/models"
)

// APIHandler holds the component references every handler needs,
// mirroring the teacher's APIHandler struct in internal/api/routes.go.
type APIHandler struct {
	cfg      config.Config
	graph    *graph.Graph
	store    *advisory.Store
	pipeline *pipeline.Pipeline
}

// SetupRouter wires the gin.Engine exactly as spec.md §6 describes:
// an unauthenticated /health and /metrics, an authenticated read
// surface, and a rate-limited, authenticated write endpoint.
func SetupRouter(cfg config.Config, g *graph.Graph, store *advisory.Store, p *pipeline.Pipeline) *gin.Engine {
	r := gin.Default()

	handler := &APIHandler{cfg: cfg, graph: g, store: store, pipeline: p}

	r.GET("/health", handler.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/")
	auth.Use(AuthMiddleware(cfg.APIKey))
	{
		auth.GET("/stats", handler.handleStats)
		auth.GET("/advisories", handler.handleListAdvisories)
		auth.GET("/patterns/:fingerprint", handler.handlePatterns)
		auth.GET("/entities/:participant_id/activity", handler.handleEntityActivity)

		// /ingest is the one write endpoint and the one expensive path
		// (it runs the full correlate+escalate sequence), so it carries
		// its own rate limit, mirroring the teacher's choice to
		// rate-limit only /analyze/:txid.
		auth.POST("/ingest", NewRateLimiter(120, 20).Middleware(), handler.handleIngest)
	}

	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"message":   "fraudmesh coordinator is alive",
	})
}

func (h *APIHandler) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.graph.Stats(h.cfg.TimeWindow()))
}

func (h *APIHandler) handleIngest(c *gin.Context) {
	entityHeaderValue := c.GetHeader(entityHeader)
	if entityHeaderValue == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": entityHeader + " header is required"})
		return
	}

	var req struct {
		Fingerprint string          `json:"fingerprint"`
		EntityID    string          `json:"entity_id"`
		Severity    models.Severity `json:"severity"`
		Timestamp   *time.Time      `json:"timestamp,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if req.EntityID != entityHeaderValue {
		c.JSON(http.StatusBadRequest, gin.H{"error": entityHeader + " header must match entity_id in the payload"})
		return
	}

	sub := models.Submission{
		ParticipantID: req.EntityID,
		Fingerprint:   req.Fingerprint,
		Severity:      req.Severity,
	}
	if req.Timestamp != nil {
		sub.Timestamp = *req.Timestamp
	}

	if err := h.pipeline.Validate(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ack := h.pipeline.Submit(sub)

	c.JSON(http.StatusAccepted, gin.H{
		"status":               ack.Status,
		"fingerprint":          ack.FingerprintTruncated,
		"entity_id":            ack.ParticipantID,
		"correlation_detected": ack.CorrelationDetected,
		"message":              "submission accepted",
	})
}

func (h *APIHandler) handleListAdvisories(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	tier := models.Tier(c.Query("severity"))
	if tier != "" && tier != models.TierMedium && tier != models.TierHigh && tier != models.TierCritical {
		c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be one of MEDIUM, HIGH, CRITICAL"})
		return
	}

	c.JSON(http.StatusOK, h.store.List(limit, tier))
}

func (h *APIHandler) handlePatterns(c *gin.Context) {
	fingerprint := c.Param("fingerprint")

	info, ok := h.graph.FingerprintStats(fingerprint)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown fingerprint"})
		return
	}

	recent := h.graph.RecentObservations(fingerprint, h.cfg.TimeWindow())
	seen := make(map[string]struct{}, len(recent))
	participants := make([]string, 0, len(recent))
	for _, obs := range recent {
		if _, dup := seen[obs.ParticipantID]; dup {
			continue
		}
		seen[obs.ParticipantID] = struct{}{}
		participants = append(participants, obs.ParticipantID)
	}

	c.JSON(http.StatusOK, gin.H{
		"fingerprint":         fingerprint,
		"first_seen":          info.FirstSeen,
		"last_seen":           info.LastSeen,
		"observation_count":   info.ObservationCount,
		"recent_participants": participants,
	})
}

func (h *APIHandler) handleEntityActivity(c *gin.Context) {
	participantID := c.Param("participant_id")

	fingerprints, lastSubmission, ok := h.graph.ParticipantActivity(participantID, h.cfg.TimeWindow())
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown participant"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"participant_id":      participantID,
		"recent_fingerprints": fingerprints,
		"last_submission":     lastSubmission,
	})
}

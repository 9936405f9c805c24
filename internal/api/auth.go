package api

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────
// Shared-Secret Authentication Middleware
//
// Every endpoint except /health and /metrics requires:
//   x-api-key: <configured secret>
//
// This is NOT cryptographic participant authentication (spec.md §1
// Non-goals explicitly excludes that) — it is a single shared secret
// that gates the whole coordinator, adapted from the teacher's
// Authorization: Bearer scheme to the spec's fixed x-api-key header.
// ──────────────────────────────────────────────────────────────────

const apiKeyHeader = "x-api-key"

// entityHeader is the participant-identity header POST /ingest requires
// in addition to the shared secret (spec.md §4.7).
const entityHeader = "X-Entity-ID"

// AuthMiddleware returns a Gin middleware that validates the x-api-key
// header against the configured secret using a constant-time compare
// to prevent timing-based enumeration, mirroring the teacher's
// AuthMiddleware in internal/api/auth.go.
func AuthMiddleware(apiKey string) gin.HandlerFunc {
	if apiKey == "" {
		log.Println("[SECURITY WARNING] API_KEY is not set. All protected endpoints are unauthenticated.")
	}

	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		got := c.GetHeader(apiKeyHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid x-api-key"})
			c.Abort()
			return
		}

		c.Next()
	}
}

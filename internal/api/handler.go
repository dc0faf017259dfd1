package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-trust/heron/internal/domain"
	"github.com/opensource-trust/heron/internal/ingest"
	"github.com/opensource-trust/heron/internal/profile"
	"github.com/opensource-trust/heron/internal/rules"
	"github.com/opensource-trust/heron/internal/scoring"
)

// defaultListLimit caps GET /products/{id}/reviews when the client does not
// ask for a limit.
const defaultListLimit = 50

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	ingest   *ingest.Engine
	scoring  *scoring.Service
	profiles *profile.Provider
	engine   *rules.Engine
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, ingestEngine *ingest.Engine, scoringService *scoring.Service, profiles *profile.Provider, engine *rules.Engine, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		ingest:   ingestEngine,
		scoring:  scoringService,
		profiles: profiles,
		engine:   engine,
		version:  version,
	}
}

// IngestResponse is the response for POST /reviews.
type IngestResponse struct {
	ID string `json:"id"`
}

// IngestReview handles POST /reviews requests.
func (h *Handler) IngestReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input domain.ReviewInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if strings.TrimSpace(input.ProductID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "productId is required",
		})
		return
	}

	id, err := h.ingest.Upsert(ctx, &input)
	if err != nil {
		if errors.Is(err, ingest.ErrNotFingerprintable) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "review has no external id and no content to identify it by",
			})
			return
		}
		slog.Error("review upsert failed",
			"product_id", input.ProductID,
			"trace_id", GetTraceID(ctx),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to store review",
		})
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{ID: id})
}

// ListReviewsResponse is the response for GET /products/{productID}/reviews.
type ListReviewsResponse struct {
	ProductID string           `json:"productId"`
	Source    string           `json:"source"`
	Count     int              `json:"count"`
	Reviews   []*domain.Review `json:"reviews"`
}

// ListReviews returns stored reviews for a product, newest first.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := chi.URLParam(r, "productID")
	source := normalizeSource(r.URL.Query().Get("source"))

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		if n > defaultListLimit {
			n = defaultListLimit
		}
		limit = n
	}

	reviews, err := h.repo.ListRecentReviews(ctx, productID, source, limit)
	if err != nil {
		slog.Error("failed to list reviews",
			"product_id", productID,
			"source", source,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list reviews",
		})
		return
	}
	if reviews == nil {
		reviews = []*domain.Review{}
	}

	writeJSON(w, http.StatusOK, ListReviewsResponse{
		ProductID: productID,
		Source:    source,
		Count:     len(reviews),
		Reviews:   reviews,
	})
}

// ComputeScore handles POST /products/{productID}/score. It recomputes the
// trust score from the stored corpus and persists the result.
func (h *Handler) ComputeScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := chi.URLParam(r, "productID")
	source := r.URL.Query().Get("source")

	result, err := h.scoring.Recompute(ctx, productID, source)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyCorpus) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": "no reviews stored for this product",
			})
			return
		}
		slog.Error("score recompute failed",
			"product_id", productID,
			"source", source,
			"trace_id", GetTraceID(ctx),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute score",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetScore handles GET /products/{productID}/score.
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := chi.URLParam(r, "productID")
	source := r.URL.Query().Get("source")

	result, err := h.scoring.GetScore(ctx, productID, source)
	if err != nil {
		if errors.Is(err, domain.ErrScoreNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "score not computed for this product",
			})
			return
		}
		slog.Error("score lookup failed",
			"product_id", productID,
			"source", source,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load score",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetThresholds returns the active threshold profile.
func (h *Handler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	p := h.profiles.Get()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile":      p,
		"custom_rules": len(p.CustomRules),
	})
}

// ReloadThresholds forces a reload of the thresholds file into the active
// profile. This enables hot-reloading without server restart.
func (h *Handler) ReloadThresholds(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.Reload(); err != nil {
		slog.Error("thresholds reload failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload thresholds: " + err.Error(),
		})
		return
	}

	// The provider's reload callback recompiles custom rules into the engine;
	// report the compiled count, which excludes rules that failed to compile.
	compiled := h.engine.CustomRulesCount()
	slog.Info("thresholds reloaded", "custom_rules", compiled)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "thresholds reloaded successfully",
		"custom_rules": compiled,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func normalizeSource(source string) string {
	source = strings.ToUpper(strings.TrimSpace(source))
	if source == "" {
		return domain.SourceAmazon
	}
	return source
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/archgov-inc/archgov-engine/pkg/cache"
	"github.com/archgov-inc/archgov-engine/pkg/models"
	"github.com/archgov-inc/archgov-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// AssetListResponse for GET /api/assets
type AssetListResponse struct {
	Assets []*models.ArchitectureAsset `json:"assets"`
	Total  int                         `json:"total"`
}

// LinkRequest for POST and DELETE /api/assets/{id}/links
type LinkRequest struct {
	TargetID string `json:"target_id"`
	Relation string `json:"relation"`
}

// HealthScoreResponse for POST /api/assets/{id}/health
type HealthScoreResponse struct {
	AssetID     string `json:"asset_id"`
	HealthScore int    `json:"health_score"`
}

// ============================================================================
// Handler
// ============================================================================

// AssetHandler handles architecture asset HTTP requests.
type AssetHandler struct {
	assets        services.AssetService
	relationships services.RelationshipService
	dependencies  services.DependencyService
	impact        services.ImpactService
	health        services.HealthService
	respCache     *cache.ResponseCache
	logger        *zap.Logger
}

// NewAssetHandler creates a new asset handler.
func NewAssetHandler(
	assets services.AssetService,
	relationships services.RelationshipService,
	dependencies services.DependencyService,
	impact services.ImpactService,
	health services.HealthService,
	respCache *cache.ResponseCache,
	logger *zap.Logger,
) *AssetHandler {
	return &AssetHandler{
		assets:        assets,
		relationships: relationships,
		dependencies:  dependencies,
		impact:        impact,
		health:        health,
		respCache:     respCache,
		logger:        logger,
	}
}

// RegisterRoutes registers the asset handler's routes on the given mux.
func (h *AssetHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/assets", h.Register)
	mux.HandleFunc("GET /api/assets", h.Find)
	mux.HandleFunc("GET /api/assets/{id}", h.Get)
	mux.HandleFunc("PATCH /api/assets/{id}", h.Update)
	mux.HandleFunc("POST /api/assets/{id}/links", h.Link)
	mux.HandleFunc("DELETE /api/assets/{id}/links", h.Unlink)
	mux.HandleFunc("GET /api/assets/{id}/neighbors", h.Neighbors)
	mux.HandleFunc("GET /api/assets/{id}/graph", h.Graph)
	mux.HandleFunc("GET /api/assets/{id}/impact", h.Impact)
	mux.HandleFunc("POST /api/assets/{id}/usage", h.RecordUsage)
	mux.HandleFunc("POST /api/assets/{id}/health", h.CalculateHealth)
	mux.HandleFunc("GET /api/portfolio/health", h.PortfolioHealth)
}

func (h *AssetHandler) writeError(w http.ResponseWriter, err error) {
	status, code := statusForError(err)
	if werr := ErrorResponse(w, status, code, err.Error()); werr != nil {
		h.logger.Error("Failed to write error response", zap.Error(werr))
	}
}

func (h *AssetHandler) writeOK(w http.ResponseWriter, status int, data any) {
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// serveCached writes the cached response for the request if present.
func (h *AssetHandler) serveCached(w http.ResponseWriter, r *http.Request) bool {
	payload, ok := h.respCache.Get(r.Context(), r.URL.RequestURI())
	if !ok {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(payload); err != nil {
		h.logger.Error("Failed to write cached response", zap.Error(err))
	}
	return true
}

// cacheAndWrite stores the envelope for the request path and writes it.
func (h *AssetHandler) cacheAndWrite(w http.ResponseWriter, r *http.Request, data any) {
	payload, err := json.Marshal(ApiResponse{Success: true, Data: data})
	if err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		h.writeError(w, err)
		return
	}
	h.respCache.Set(r.Context(), r.URL.RequestURI(), payload)
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(payload); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Register handles POST /api/assets
func (h *AssetHandler) Register(w http.ResponseWriter, r *http.Request) {
	var asset models.ArchitectureAsset
	if err := json.NewDecoder(r.Body).Decode(&asset); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	created, err := h.assets.Register(r.Context(), &asset)
	if err != nil {
		h.logger.Error("Failed to register asset",
			zap.String("asset_id", asset.ID),
			zap.Error(err))
		h.writeError(w, err)
		return
	}

	h.respCache.Bump(r.Context())
	h.writeOK(w, http.StatusCreated, created)
}

// Get handles GET /api/assets/{id}
func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	asset, err := h.assets.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeOK(w, http.StatusOK, asset)
}

// Update handles PATCH /api/assets/{id}
func (h *AssetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch services.AssetPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	updated, err := h.assets.Update(r.Context(), id, &patch)
	if err != nil {
		h.logger.Error("Failed to update asset",
			zap.String("asset_id", id),
			zap.Error(err))
		h.writeError(w, err)
		return
	}

	h.respCache.Bump(r.Context())
	h.writeOK(w, http.StatusOK, updated)
}

// Find handles GET /api/assets
func (h *AssetHandler) Find(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := services.FindCriteria{
		Domain:    q.Get("domain"),
		Layer:     q.Get("layer"),
		Status:    q.Get("status"),
		AssetType: q.Get("asset_type"),
	}
	if tag := q.Get("tag"); tag != "" {
		criteria.Tags = map[string]string{}
		for _, kv := range q["tag"] {
			k, v, found := cutTag(kv)
			if !found {
				if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "tag filter must be key:value"); err != nil {
					h.logger.Error("Failed to write error response", zap.Error(err))
				}
				return
			}
			criteria.Tags[k] = v
		}
	}

	assets, err := h.assets.Find(r.Context(), criteria)
	if err != nil {
		h.logger.Error("Failed to find assets", zap.Error(err))
		h.writeError(w, err)
		return
	}

	h.writeOK(w, http.StatusOK, AssetListResponse{Assets: assets, Total: len(assets)})
}

// Link handles POST /api/assets/{id}/links
func (h *AssetHandler) Link(w http.ResponseWriter, r *http.Request) {
	h.applyLink(w, r, h.relationships.Link)
}

// Unlink handles DELETE /api/assets/{id}/links
func (h *AssetHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	h.applyLink(w, r, h.relationships.Unlink)
}

func (h *AssetHandler) applyLink(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, sourceID, targetID, relation string) error) {
	id := r.PathValue("id")

	var req LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := op(r.Context(), id, req.TargetID, req.Relation); err != nil {
		h.logger.Error("Failed to change relationship",
			zap.String("source_id", id),
			zap.String("target_id", req.TargetID),
			zap.String("relation", req.Relation),
			zap.Error(err))
		h.writeError(w, err)
		return
	}

	h.respCache.Bump(r.Context())
	h.writeOK(w, http.StatusOK, map[string]string{
		"source_id": id,
		"target_id": req.TargetID,
		"relation":  req.Relation,
	})
}

// cutTag splits a "key:value" tag filter.
func cutTag(kv string) (key, value string, ok bool) {
	return strings.Cut(kv, ":")
}

// Neighbors handles GET /api/assets/{id}/neighbors
func (h *AssetHandler) Neighbors(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	relation := r.URL.Query().Get("relation")
	direction := r.URL.Query().Get("direction")
	if direction == "" {
		direction = services.DirectionForward
	}

	ids, err := h.dependencies.Neighbors(r.Context(), id, relation, direction)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeOK(w, http.StatusOK, map[string]any{
		"asset_id":  id,
		"relation":  relation,
		"direction": direction,
		"neighbors": ids,
	})
}

// Graph handles GET /api/assets/{id}/graph
func (h *AssetHandler) Graph(w http.ResponseWriter, r *http.Request) {
	if h.serveCached(w, r) {
		return
	}

	id := r.PathValue("id")
	depth := 0
	if raw := r.URL.Query().Get("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "depth must be an integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		depth = parsed
	}

	graph, err := h.dependencies.Graph(r.Context(), id, depth)
	if err != nil {
		h.logger.Error("Failed to build dependency graph",
			zap.String("asset_id", id),
			zap.Error(err))
		h.writeError(w, err)
		return
	}

	h.cacheAndWrite(w, r, graph)
}

// Impact handles GET /api/assets/{id}/impact
func (h *AssetHandler) Impact(w http.ResponseWriter, r *http.Request) {
	if h.serveCached(w, r) {
		return
	}

	id := r.PathValue("id")
	changeType := r.URL.Query().Get("change_type")

	analysis, err := h.impact.AnalyzeImpact(r.Context(), id, changeType)
	if err != nil {
		h.logger.Error("Failed to analyze impact",
			zap.String("asset_id", id),
			zap.String("change_type", changeType),
			zap.Error(err))
		h.writeError(w, err)
		return
	}

	h.cacheAndWrite(w, r, analysis)
}

// RecordUsage handles POST /api/assets/{id}/usage
func (h *AssetHandler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	asset, err := h.assets.RecordUsage(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to record usage",
			zap.String("asset_id", id),
			zap.Error(err))
		h.writeError(w, err)
		return
	}

	h.respCache.Bump(r.Context())
	h.writeOK(w, http.StatusOK, asset)
}

// CalculateHealth handles POST /api/assets/{id}/health
func (h *AssetHandler) CalculateHealth(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	score, err := h.health.CalculateHealthScore(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to calculate health score",
			zap.String("asset_id", id),
			zap.Error(err))
		h.writeError(w, err)
		return
	}

	h.respCache.Bump(r.Context())
	h.writeOK(w, http.StatusOK, HealthScoreResponse{AssetID: id, HealthScore: score})
}

// PortfolioHealth handles GET /api/portfolio/health
func (h *AssetHandler) PortfolioHealth(w http.ResponseWriter, r *http.Request) {
	if h.serveCached(w, r) {
		return
	}

	health, err := h.health.AssessPortfolioHealth(r.Context())
	if err != nil {
		h.logger.Error("Failed to assess portfolio health", zap.Error(err))
		h.writeError(w, err)
		return
	}

	h.cacheAndWrite(w, r, health)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bobarin/viralforge/internal/config"
	"github.com/bobarin/viralforge/internal/db"
	"github.com/bobarin/viralforge/internal/models"
	"github.com/bobarin/viralforge/internal/services"
	"github.com/bobarin/viralforge/internal/worker"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	signedURLSeconds = 3600
)

// RunStore is the slice of the database the handlers read and write.
type RunStore interface {
	worker.RunCreator
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, status string, limit, offset int) ([]models.Run, error)
	CountRuns(ctx context.Context, status string) (int, error)
	GetRunAsset(ctx context.Context, runID uuid.UUID, assetType models.AssetType) (*models.RunAsset, error)
	GetRunAssets(ctx context.Context, runID uuid.UUID) ([]models.RunAsset, error)
}

// URLSigner turns storage paths into URLs.
type URLSigner interface {
	GetPublicURL(path string) string
	GetSignedURL(ctx context.Context, path string, expiresIn int) (string, error)
}

type Handler struct {
	store    RunStore
	queue    worker.RunEnqueuer
	storage  URLSigner // nil when bundles are not uploaded
	defaults config.PipelineConfig
}

func NewHandler(store RunStore, q worker.RunEnqueuer, signer URLSigner, defaults config.PipelineConfig) *Handler {
	return &Handler{
		store:    store,
		queue:    q,
		storage:  signer,
		defaults: defaults,
	}
}

// CreateRun handles POST /v1/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	brief := h.briefFrom(req)
	if !services.KnownPlatform(brief.Platform) {
		names := make([]string, 0, 4)
		for _, p := range services.PlatformPresets() {
			names = append(names, p.Name)
		}
		respondError(w, http.StatusBadRequest, "Invalid platform. Allowed: "+strings.Join(names, ", "))
		return
	}

	run, err := worker.SubmitFromAPI(r.Context(), h.store, h.queue, brief)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to queue run")
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateRunResponse{
		RunID:  run.ID,
		Status: run.Status,
	})
}

// briefFrom applies the configured defaults to a request. A request with
// neither topic nor brief gets the default topic.
func (h *Handler) briefFrom(req models.CreateRunRequest) models.Brief {
	brief := models.Brief{
		Topic:        strings.TrimSpace(req.Topic),
		Style:        h.defaults.Style,
		Tone:         h.defaults.Tone,
		Platform:     h.defaults.Platform,
		BurnCaptions: h.defaults.BurnCaptions,
	}
	if req.Brief != nil {
		brief.Custom = strings.TrimSpace(*req.Brief)
	}
	if brief.Topic == "" && brief.Custom == "" {
		brief.Topic = h.defaults.DefaultTopic
		if brief.Topic == "" {
			brief.Topic = config.DefaultTopic
		}
	}
	if req.Style != nil && *req.Style != "" {
		brief.Style = *req.Style
	}
	if req.Tone != nil && *req.Tone != "" {
		brief.Tone = *req.Tone
	}
	if req.Platform != nil && *req.Platform != "" {
		brief.Platform = strings.ToLower(strings.TrimSpace(*req.Platform))
	}
	if brief.Platform == "" {
		brief.Platform = services.DefaultPlatform
	}
	if req.BurnCaptions != nil {
		brief.BurnCaptions = *req.BurnCaptions
	}
	return brief
}

// ListRuns handles GET /v1/runs
// Query params:
//   - status: filter by run status (queued, running, completed, partial, failed)
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" && !models.RunStatus(statusFilter).Valid() {
		respondError(w, http.StatusBadRequest, "Invalid status filter. Allowed: queued, running, completed, partial, failed")
		return
	}

	limit := defaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	total, err := h.store.CountRuns(r.Context(), statusFilter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to count runs")
		return
	}

	runs, err := h.store.ListRuns(r.Context(), statusFilter, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []models.Run{}
	}

	respondJSON(w, http.StatusOK, models.ListRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetRun handles GET /v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	assets, err := h.store.GetRunAssets(r.Context(), run.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get assets")
		return
	}

	respondJSON(w, http.StatusOK, models.RunResponse{
		Run:    *run,
		Assets: h.buildAssetResponses(assets),
	})
}

// GetRunAssets handles GET /v1/runs/{id}/assets
func (h *Handler) GetRunAssets(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	assets, err := h.store.GetRunAssets(r.Context(), run.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get assets")
		return
	}

	respondJSON(w, http.StatusOK, h.buildAssetResponses(assets))
}

// GetRunDownload handles GET /v1/runs/{id}/download
// Redirects to a signed URL of the final video, or of the generation log when
// the run produced no real video.
func (h *Handler) GetRunDownload(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		respondError(w, http.StatusServiceUnavailable, "Bundle storage is not configured")
		return
	}

	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	var asset *models.RunAsset
	for _, t := range []models.AssetType{models.AssetTypeFinalVideo, models.AssetTypeGenerationLog} {
		a, err := h.store.GetRunAsset(r.Context(), run.ID, t)
		if errors.Is(err, db.ErrAssetNotFound) {
			continue
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to get asset")
			return
		}
		asset = a
		break
	}
	if asset == nil {
		respondError(w, http.StatusNotFound, "Run output not ready")
		return
	}

	signedURL, err := h.storage.GetSignedURL(r.Context(), asset.StoragePath, signedURLSeconds)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate download URL")
		return
	}

	http.Redirect(w, r, signedURL, http.StatusTemporaryRedirect)
}

// ListPlatforms handles GET /v1/platforms
func (h *Handler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, services.PlatformPresets())
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper methods
func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*models.Run, bool) {
	runID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid run ID")
		return nil, false
	}

	run, err := h.store.GetRun(r.Context(), runID)
	if errors.Is(err, db.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get run")
		return nil, false
	}
	return run, true
}

func (h *Handler) buildAssetResponses(assets []models.RunAsset) []models.RunAssetResponse {
	responses := make([]models.RunAssetResponse, len(assets))
	for i, asset := range assets {
		responses[i] = models.RunAssetResponse{RunAsset: asset}
		if h.storage != nil {
			url := h.storage.GetPublicURL(asset.StoragePath)
			responses[i].URL = &url
		}
	}
	return responses
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// internal/server/handlers.go

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	apperrors "blueprint-engine/internal/common/errors"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/common/validation"
	"blueprint-engine/internal/models"
	"blueprint-engine/internal/store"

	"github.com/gin-gonic/gin"
)

const maxRequestBody = 1 << 20 // 1 MiB

// Builder runs a full blueprint build; the synthesizer satisfies this.
type Builder interface {
	Build(ctx context.Context, keyword string, opts models.BuildOptions) (*models.Blueprint, error)
}

// CompletionNotifier delivers completion notifications; the notifier
// satisfies this.
type CompletionNotifier interface {
	BlueprintReady(ctx context.Context, bp *models.Blueprint, opts models.BuildOptions)
}

type Handler struct {
	store          *store.Store
	builder        Builder
	notifier       CompletionNotifier
	maxResultCount int
	logger         logger.Logger
}

func NewHandler(st *store.Store, builder Builder, notifier CompletionNotifier, maxResultCount int, log logger.Logger) *Handler {
	if maxResultCount <= 0 {
		maxResultCount = 20
	}
	return &Handler{
		store:          st,
		builder:        builder,
		notifier:       notifier,
		maxResultCount: maxResultCount,
		logger:         log.WithFields(map[string]interface{}{"component": "http-handler"}),
	}
}

// blueprintRequest mirrors the request schema; option keys are snake_case on
// the wire.
type blueprintRequest struct {
	Keyword string `json:"keyword"`
	Options struct {
		ResultCount  int    `json:"result_count"`
		ForceRebuild bool   `json:"force_rebuild"`
		OwnContent   string `json:"own_content"`
		NotifyEmail  string `json:"notify_email"`
		NotifyPhone  string `json:"notify_phone"`
	} `json:"options"`
}

// CreateBlueprint handles POST /blueprints. The call is synchronous: it
// returns the finished blueprint, 201 on a fresh build and 200 when the cache
// answered.
func (h *Handler) CreateBlueprint(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.NewInvalidRequestError("unreadable request body")})
		return
	}

	result, err := validation.ValidateBlueprintRequest(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.NewInvalidRequestError("request body is not valid JSON")})
		return
	}
	if !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.NewInvalidRequestError(result.Summary())})
		return
	}

	var req blueprintRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.NewInvalidRequestError(err.Error())})
		return
	}

	opts := models.BuildOptions{
		ResultCount:  req.Options.ResultCount,
		ForceRebuild: req.Options.ForceRebuild,
		OwnContent:   req.Options.OwnContent,
		NotifyEmail:  req.Options.NotifyEmail,
		NotifyPhone:  req.Options.NotifyPhone,
	}
	if opts.ResultCount > h.maxResultCount {
		opts.ResultCount = h.maxResultCount
	}

	bp, cached, err := h.store.GetOrBuild(c.Request.Context(), req.Keyword, opts, func(ctx context.Context) (*models.Blueprint, error) {
		return h.builder.Build(ctx, req.Keyword, opts)
	})
	if err != nil {
		h.respondBuildError(c, err)
		return
	}

	if !cached && h.notifier != nil {
		// notification runs detached from the request lifecycle
		go h.notifier.BlueprintReady(context.WithoutCancel(c.Request.Context()), bp, opts)
	}

	status := http.StatusCreated
	if cached {
		status = http.StatusOK
	}
	c.JSON(status, bp)
}

func (h *Handler) respondBuildError(c *gin.Context, err error) {
	var npe *apperrors.NoProviderAvailableError
	if errors.As(err, &npe) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": apperrors.NewBuildFailedError(npe.Capability)})
		return
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": apperrors.NewBuildFailedError("search")})
		return
	}
	h.logger.WithError(err).Error("blueprint build failed", nil)
	c.JSON(http.StatusInternalServerError, gin.H{"error": apperrors.NewBlueprintStoreFailedError(err)})
}

// GetBlueprint handles GET /blueprints/:id.
func (h *Handler) GetBlueprint(c *gin.Context) {
	bp, err := h.store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, apperrors.ErrBlueprintNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "blueprint not found"})
			return
		}
		h.logger.WithError(err).Error("blueprint lookup failed", nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "blueprint lookup failed"})
		return
	}
	c.JSON(http.StatusOK, bp)
}

// SearchBlueprints handles GET /blueprints?keyword=...
func (h *Handler) SearchBlueprints(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.NewInvalidRequestError("keyword query parameter is required")})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	results, err := h.store.SearchByKeyword(ctx, keyword, 10)
	if err != nil {
		h.logger.WithError(err).Error("blueprint search failed", nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "blueprint search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/signalweave/signalweave/internal/application/review"
	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// ListCache is the read-side cache for theme listings.  Review decisions
// invalidate the affected keys.
type ListCache interface {
	GetOrLoad(ctx context.Context, key string, dest any, ttl time.Duration,
		loader func(ctx context.Context) (any, error)) error
	Delete(ctx context.Context, keys ...string) error
}

// ThemeHandler serves theme queries and quality-review transitions.
type ThemeHandler struct {
	service review.Service
	cache   ListCache
	logger  logging.Logger
}

// NewThemeHandler wires the handler.  cache may be nil; listings then always
// hit the repository.
func NewThemeHandler(svc review.Service, cache ListCache, log logging.Logger) *ThemeHandler {
	return &ThemeHandler{service: svc, cache: cache, logger: log}
}

const themeListTTL = time.Minute

func themeListKey(filter theme.ListFilter) string {
	return fmt.Sprintf("themes:%s:%s:%d:%d",
		filter.BatchID, filter.Decision, filter.Page, filter.PageSize)
}

// List handles GET /api/v1/themes with batch_id and decision filters.
func (h *ThemeHandler) List(c *gin.Context) {
	filter := theme.ListFilter{
		BatchID:    common.BatchID(c.Query("batch_id")),
		Decision:   insight.QualityDecision(c.Query("decision")),
		Pagination: parsePagination(c),
	}
	if filter.Decision != "" && !filter.Decision.Valid() {
		respondError(c, errors.Validation(
			fmt.Sprintf("unknown quality decision %q", filter.Decision)))
		return
	}

	if h.cache == nil {
		themes, err := h.service.ListThemes(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"themes": themes})
		return
	}

	var themes []*theme.Theme
	err := h.cache.GetOrLoad(c.Request.Context(), themeListKey(filter), &themes, themeListTTL,
		func(ctx context.Context) (any, error) {
			return h.service.ListThemes(ctx, filter)
		})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"themes": themes})
}

// Get handles GET /api/v1/themes/:id.
func (h *ThemeHandler) Get(c *gin.Context) {
	th, err := h.service.GetTheme(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, th)
}

type reviewRequest struct {
	Decision        string `json:"decision" binding:"required"`
	Reviewer        string `json:"reviewer" binding:"required"`
	Note            string `json:"note"`
	ExpectedVersion int    `json:"expected_version"`
}

// Review handles POST /api/v1/themes/:id/review.  A stale expected_version
// returns 409 so the dashboard reloads instead of overwriting a colleague's
// decision.
func (h *ThemeHandler) Review(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "decoding review request"))
		return
	}

	th, err := h.service.ReviewTheme(c.Request.Context(), review.Input{
		ThemeID:         common.ID(c.Param("id")),
		Decision:        insight.QualityDecision(req.Decision),
		Reviewer:        common.ReviewerID(req.Reviewer),
		Note:            req.Note,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if h.cache != nil {
		// Drop the first-page listings this decision could have changed; the
		// short TTL ages out deeper pages.
		page := common.Pagination{Page: 1, PageSize: 20}
		keys := []string{
			themeListKey(theme.ListFilter{BatchID: th.BatchID, Pagination: page}),
			themeListKey(theme.ListFilter{BatchID: th.BatchID, Decision: insight.DecisionPending, Pagination: page}),
			themeListKey(theme.ListFilter{BatchID: th.BatchID, Decision: th.QualityDecision, Pagination: page}),
		}
		if err := h.cache.Delete(c.Request.Context(), keys...); err != nil {
			h.logger.Warn("invalidating theme listings", logging.Err(err))
		}
	}

	c.JSON(http.StatusOK, th)
}

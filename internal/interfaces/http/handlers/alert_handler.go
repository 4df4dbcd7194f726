package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/signalweave/signalweave/internal/domain/alert"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// AlertHandler serves strategic-alert queries.  Alerts are immutable, so the
// handler is read-only.
type AlertHandler struct {
	alerts alert.Repository
}

// NewAlertHandler wires the handler.
func NewAlertHandler(alerts alert.Repository) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// List handles GET /api/v1/alerts with batch_id, company_id, and
// classification filters.
func (h *AlertHandler) List(c *gin.Context) {
	filter := alert.ListFilter{
		BatchID:        common.BatchID(c.Query("batch_id")),
		CompanyID:      common.CompanyID(c.Query("company_id")),
		Classification: insight.AlertClassification(c.Query("classification")),
		Pagination:     parsePagination(c),
	}
	if filter.Classification != "" && !filter.Classification.Valid() {
		respondError(c, errors.Validation(
			fmt.Sprintf("unknown alert classification %q", filter.Classification)))
		return
	}

	alerts, err := h.alerts.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// Get handles GET /api/v1/alerts/:id.
func (h *AlertHandler) Get(c *gin.Context) {
	a, err := h.alerts.GetByID(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Package handlers implements the HTTP API: starting synthesis runs, browsing
// themes and alerts, and applying quality-review decisions.
package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps an application error to its HTTP status.  Errors without
// an AppError in the chain are masked as internal.
func respondError(c *gin.Context, err error) {
	var ae *errors.AppError
	if stderrors.As(err, &ae) {
		c.JSON(errors.HTTPStatusForCode(ae.Code), ErrorResponse{
			Code:    string(ae.Code),
			Message: ae.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Code:    string(errors.ErrCodeInternal),
		Message: "internal server error",
	})
}

// parsePagination reads page/page_size query parameters with sane bounds.
func parsePagination(c *gin.Context) common.Pagination {
	p := common.Pagination{Page: 1, PageSize: 20}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Page = n
		}
	}
	if v := c.Query("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			p.PageSize = n
		}
	}
	return p
}

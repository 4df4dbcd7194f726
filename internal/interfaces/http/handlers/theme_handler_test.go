package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/signalweave/signalweave/internal/application/review"
	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockReviewService struct {
	reviewFn func(ctx context.Context, input review.Input) (*theme.Theme, error)
	getFn    func(ctx context.Context, id common.ID) (*theme.Theme, error)
	listFn   func(ctx context.Context, filter theme.ListFilter) ([]*theme.Theme, error)
}

func (m *mockReviewService) ReviewTheme(ctx context.Context, input review.Input) (*theme.Theme, error) {
	return m.reviewFn(ctx, input)
}

func (m *mockReviewService) GetTheme(ctx context.Context, id common.ID) (*theme.Theme, error) {
	return m.getFn(ctx, id)
}

func (m *mockReviewService) ListThemes(ctx context.Context, filter theme.ListFilter) ([]*theme.Theme, error) {
	return m.listFn(ctx, filter)
}

func themeRouter(svc review.Service) *gin.Engine {
	h := NewThemeHandler(svc, nil, logging.NewNopLogger())
	r := gin.New()
	r.GET("/api/v1/themes", h.List)
	r.GET("/api/v1/themes/:id", h.Get)
	r.POST("/api/v1/themes/:id/review", h.Review)
	return r
}

func pendingTheme(t *testing.T) *theme.Theme {
	t.Helper()
	th, err := theme.New("2026-08-W3",
		"buyers across segments report renewal pricing pressure tied to seat-based licensing costs",
		12, []common.ID{common.NewID(), common.NewID()},
		[]common.CompanyID{"acme", "initech"}, 3.4)
	if err != nil {
		t.Fatalf("building theme: %v", err)
	}
	return th
}

func TestThemeHandler_List(t *testing.T) {
	var gotFilter theme.ListFilter
	svc := &mockReviewService{
		listFn: func(ctx context.Context, filter theme.ListFilter) ([]*theme.Theme, error) {
			gotFilter = filter
			return []*theme.Theme{pendingTheme(t)}, nil
		},
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/themes?batch_id=2026-08-W3&decision=Pending&page=2", nil)
	themeRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotFilter.BatchID != "2026-08-W3" || gotFilter.Decision != insight.DecisionPending {
		t.Errorf("filter not propagated: %+v", gotFilter)
	}
	if gotFilter.Page != 2 || gotFilter.PageSize != 20 {
		t.Errorf("pagination not propagated: %+v", gotFilter.Pagination)
	}
}

func TestThemeHandler_List_UnknownDecision(t *testing.T) {
	svc := &mockReviewService{
		listFn: func(ctx context.Context, filter theme.ListFilter) ([]*theme.Theme, error) {
			t.Fatal("list must not be called for an invalid decision")
			return nil, nil
		},
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/themes?decision=Maybe", nil)
	themeRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestThemeHandler_Review(t *testing.T) {
	th := pendingTheme(t)
	svc := &mockReviewService{
		reviewFn: func(ctx context.Context, input review.Input) (*theme.Theme, error) {
			if input.Reviewer != "maya" || input.ExpectedVersion != 1 {
				t.Errorf("unexpected input: %+v", input)
			}
			if err := th.Review(input.Decision, input.Reviewer, input.Note); err != nil {
				return nil, err
			}
			return th, nil
		},
	}

	body := `{"decision": "Approved", "reviewer": "maya", "expected_version": 1}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/themes/"+string(th.ID)+"/review", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	themeRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got theme.Theme
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.QualityDecision != insight.DecisionApproved {
		t.Errorf("expected Approved, got %s", got.QualityDecision)
	}
}

func TestThemeHandler_Review_StaleVersionConflicts(t *testing.T) {
	svc := &mockReviewService{
		reviewFn: func(ctx context.Context, input review.Input) (*theme.Theme, error) {
			return nil, errors.ConcurrentModification("theme was modified since it was read")
		},
	}

	body := `{"decision": "Approved", "reviewer": "maya", "expected_version": 1}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/themes/abc/review", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	themeRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if resp.Code != string(errors.ErrCodeConcurrentModification) {
		t.Errorf("expected REV_003 in body, got %s", resp.Code)
	}
}

func TestThemeHandler_Review_RejectionNeedsNote(t *testing.T) {
	th := pendingTheme(t)
	svc := &mockReviewService{
		reviewFn: func(ctx context.Context, input review.Input) (*theme.Theme, error) {
			return nil, th.Review(input.Decision, input.Reviewer, input.Note)
		},
	}

	body := `{"decision": "Rejected", "reviewer": "maya"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/themes/"+string(th.ID)+"/review", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	themeRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestThemeHandler_Review_MissingReviewerRejected(t *testing.T) {
	svc := &mockReviewService{
		reviewFn: func(ctx context.Context, input review.Input) (*theme.Theme, error) {
			t.Fatal("binding must reject the request before the service runs")
			return nil, nil
		},
	}

	body := `{"decision": "Approved"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/themes/abc/review", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	themeRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestThemeHandler_Get_NotFound(t *testing.T) {
	svc := &mockReviewService{
		getFn: func(ctx context.Context, id common.ID) (*theme.Theme, error) {
			return nil, errors.New(errors.ErrCodeThemeNotFound, "no such theme")
		},
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/themes/absent", nil)
	themeRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestThemeHandler_List_CacheInvalidationKeys(t *testing.T) {
	// themeListKey must be stable: review invalidation and list reads have to
	// produce identical keys for identical filters.
	filter := theme.ListFilter{
		BatchID:    "2026-08-W3",
		Decision:   insight.DecisionPending,
		Pagination: common.Pagination{Page: 1, PageSize: 20},
	}
	if themeListKey(filter) != themeListKey(filter) {
		t.Fatal("key derivation is not deterministic")
	}
	other := filter
	other.Page = 2
	if themeListKey(filter) == themeListKey(other) {
		t.Fatal("distinct pages must map to distinct keys")
	}
}

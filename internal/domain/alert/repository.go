package alert

import (
	"context"

	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// ListFilter narrows alert queries.  Zero values mean "no constraint".
type ListFilter struct {
	BatchID        common.BatchID
	CompanyID      common.CompanyID
	Classification insight.AlertClassification
	common.Pagination
}

// Repository defines the persistence contract for strategic alerts.  Alerts
// are immutable once written; a later synthesis pass supersedes them with new
// rows rather than editing old ones.
type Repository interface {
	Create(ctx context.Context, a *StrategicAlert) error
	CreateBatch(ctx context.Context, as []*StrategicAlert) error
	GetByID(ctx context.Context, id common.ID) (*StrategicAlert, error)
	List(ctx context.Context, filter ListFilter) ([]*StrategicAlert, error)
}

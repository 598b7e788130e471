// Package views executes stored view configurations: a view persists only
// its configuration, and a fresh logical query plan is regenerated from it
// on every execution. Computed columns are evaluated here, over the rows
// the engine returns, never inside the engine itself.
package views

import (
	"context"

	"github.com/thunder-source/live-tables-backend/internal/engine"
	"github.com/thunder-source/live-tables-backend/internal/formula"
	"github.com/thunder-source/live-tables-backend/internal/logger"
	"github.com/thunder-source/live-tables-backend/internal/lqp"
	"github.com/thunder-source/live-tables-backend/internal/metrics"
)

// Config is the persisted shape of a view over an internal table.
type Config struct {
	ID              string               `json:"id"`
	TableID         string               `json:"tableId"`
	VisibleFields   []string             `json:"visibleFields,omitempty"`
	Filters         []lqp.Filter         `json:"filters,omitempty"`
	Sorts           []lqp.Sort           `json:"sorts,omitempty"`
	ComputedColumns []lqp.ComputedColumn `json:"computedColumns,omitempty"`
	PageSize        int                  `json:"pageSize,omitempty"`
}

// Result is one executed page of a view.
type Result struct {
	Rows    []map[string]any `json:"rows"`
	Total   int              `json:"total"`
	HasMore bool             `json:"hasMore"`
}

// QueryExecutor is the slice of the engine the service uses.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, tableID string, plan lqp.Plan) (*engine.QueryResult, error)
}

// Service executes view configurations.
type Service struct {
	engine    QueryExecutor
	evaluator *formula.Evaluator
}

// NewService creates a view execution service.
func NewService(e QueryExecutor) *Service {
	return &Service{engine: e, evaluator: formula.NewEvaluator()}
}

// Plan regenerates the logical query plan for one page of the view.
func (s *Service) Plan(cfg Config, offset int) lqp.Plan {
	b := lqp.NewBuilder().FromInternalTable(cfg.TableID)
	for _, f := range cfg.Filters {
		b.Filter(f)
	}
	for _, srt := range cfg.Sorts {
		b.Sort(srt)
	}
	if cfg.PageSize > 0 {
		limit := cfg.PageSize
		b.Paginate(lqp.Pagination{Limit: &limit, Offset: &offset})
	} else if offset > 0 {
		b.Paginate(lqp.Pagination{Offset: &offset})
	}
	return b.Build()
}

// Execute runs one page of the view: query the engine, evaluate computed
// columns per row, then project the visible columns. A formula failure
// nulls that cell and is logged; it never fails the page.
func (s *Service) Execute(ctx context.Context, cfg Config, offset int) (*Result, error) {
	qr, err := s.engine.ExecuteQuery(ctx, cfg.TableID, s.Plan(cfg, offset))
	if err != nil {
		return nil, err
	}

	out := &Result{Total: qr.Total, HasMore: qr.HasMore}
	for _, row := range qr.Rows {
		record := make(map[string]any, len(row.Data)+len(cfg.ComputedColumns))
		for k, v := range row.Data {
			record[k] = v
		}

		for _, cc := range cfg.ComputedColumns {
			value, err := s.evaluator.Evaluate(cc.Formula, row.Data)
			if err != nil {
				metrics.FormulaEvaluationsTotal.WithLabelValues("error").Inc()
				logger.Warn("computed column failed",
					"view", cfg.ID, "column", cc.Name, "row", row.ID, "error", err)
				record[cc.Name] = nil
				continue
			}
			metrics.FormulaEvaluationsTotal.WithLabelValues("ok").Inc()
			record[cc.Name] = value
		}

		if len(cfg.VisibleFields) > 0 {
			projected := make(map[string]any, len(cfg.VisibleFields))
			for _, f := range cfg.VisibleFields {
				if v, ok := record[f]; ok {
					projected[f] = v
				}
			}
			record = projected
		}

		record["_id"] = row.ID
		record["_version"] = row.Version
		out.Rows = append(out.Rows, record)
	}

	return out, nil
}

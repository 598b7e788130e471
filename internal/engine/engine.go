package engine

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/thunder-source/live-tables-backend/internal/config"
	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
	"github.com/thunder-source/live-tables-backend/internal/logger"
	"github.com/thunder-source/live-tables-backend/internal/lqp"
	"github.com/thunder-source/live-tables-backend/internal/metrics"
	"github.com/thunder-source/live-tables-backend/internal/store"
)

// Querier is the subset of pgxpool.Pool the engine uses. Narrowed to an
// interface so tests can execute against a fixture.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// QueryResult is the uniform result of an internal-store query.
type QueryResult struct {
	Rows    []store.Row `json:"rows"`
	Total   int         `json:"total"`
	HasMore bool        `json:"hasMore"`
}

// Engine executes logical query plans whose source is the internal store.
type Engine struct {
	db   Querier
	meta store.MetadataProvider
	cfg  config.QueryConfig
}

// New creates an Engine.
func New(db Querier, meta store.MetadataProvider, cfg config.QueryConfig) *Engine {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	return &Engine{db: db, meta: meta, cfg: cfg}
}

// ExecuteQuery runs a plan against the internal store and returns one page
// of rows plus the total matching count.
//
// The count and page statements share filter parameters but run outside a
// shared snapshot, so under concurrent writes the total and the page may
// disagree; callers needing stronger consistency must run both inside a
// read-only transaction themselves.
func (e *Engine) ExecuteQuery(ctx context.Context, tableID string, plan lqp.Plan) (*QueryResult, error) {
	start := time.Now()

	res, err := e.executeQuery(ctx, tableID, plan)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.QueriesTotal.WithLabelValues("internal", status).Inc()
	metrics.QueryDuration.WithLabelValues("internal").Observe(time.Since(start).Seconds())

	return res, err
}

func (e *Engine) executeQuery(ctx context.Context, tableID string, plan lqp.Plan) (*QueryResult, error) {
	if plan.Source.Kind != lqp.SourceInternal {
		return nil, dalerrors.UnsupportedSource(string(plan.Source.Kind))
	}
	if len(plan.ComputedColumns) > 0 {
		// Computed columns belong to the view execution path, which runs the
		// formula evaluator over returned rows.
		return nil, dalerrors.NotImplemented("computed columns are evaluated by the view layer, not the engine")
	}

	table, err := e.meta.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	st, err := buildStatements(table, plan, builderOptions{
		defaultLimit: e.cfg.DefaultLimit,
		strictFields: e.cfg.StrictFilterFields,
	})
	if err != nil {
		return nil, err
	}

	var total int
	if err := e.db.QueryRow(ctx, st.countSQL, st.args...).Scan(&total); err != nil {
		return nil, err
	}

	pageArgs := append(append([]any(nil), st.args...), st.limit, st.offset)
	rows, err := e.db.Query(ctx, st.pageSQL, pageArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &QueryResult{Total: total}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.HasMore = st.offset+len(result.Rows) < total

	logger.Debug("executed internal query",
		"table", tableID,
		"returned", len(result.Rows),
		"total", total,
		"hasMore", result.HasMore)

	return result, nil
}

func scanRow(rows pgx.Rows) (store.Row, error) {
	var (
		r                    store.Row
		createdBy, updatedBy *string
	)
	if err := rows.Scan(&r.ID, &r.Data, &r.Version,
		&r.CreatedAt, &createdBy, &r.UpdatedAt, &updatedBy); err != nil {
		return store.Row{}, err
	}
	if createdBy != nil {
		r.CreatedBy = *createdBy
	}
	if updatedBy != nil {
		r.UpdatedBy = *updatedBy
	}
	return r, nil
}

// Package postgres implements the external adapter contract for PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thunder-source/live-tables-backend/internal/adapter"
	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
	"github.com/thunder-source/live-tables-backend/internal/lqp"
)

// Adapter executes logical queries against a PostgreSQL backend through a
// pgx connection pool.
type Adapter struct {
	pool *pgxpool.Pool
	cfg  adapter.ConnectionConfig
}

// New returns a disconnected Postgres adapter.
func New() *Adapter {
	return &Adapter{}
}

// Factory adapts New to the registry's factory signature.
func Factory() adapter.Adapter {
	return New()
}

// Connect establishes the connection pool and verifies it with a ping.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.ConnectionConfig) error {
	dsn := cfg.ConnectionString
	if dsn == "" {
		sslmode := "disable"
		if cfg.SSL {
			sslmode = "require"
		}
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			url.QueryEscape(cfg.Username), url.QueryEscape(cfg.Password),
			cfg.Host, cfg.Port, cfg.Database, sslmode)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return dalerrors.ConnectionFailed("invalid postgres configuration", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}

	timeout := cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return dalerrors.ConnectionFailed("failed to create postgres pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return dalerrors.ConnectionFailed("failed to ping postgres", err)
	}

	a.pool = pool
	a.cfg = cfg
	return nil
}

// Disconnect releases the pool. Idempotent.
func (a *Adapter) Disconnect(_ context.Context) error {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return nil
}

// TestConnection reports liveness; it never returns an error.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	if a.pool == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.pool.Ping(ctx) == nil
}

// ExecuteLogicalQuery translates the plan to parameterized SQL and runs it.
func (a *Adapter) ExecuteLogicalQuery(ctx context.Context, plan lqp.Plan) (*adapter.Result, error) {
	if a.pool == nil {
		return nil, dalerrors.ConnectionFailed("postgres adapter is not connected", nil)
	}

	sql, args, err := adapter.BuildSelect(plan, adapter.PostgresDialect)
	if err != nil {
		return nil, err
	}
	return a.query(ctx, sql, args...)
}

// ExecuteRawQuery runs an arbitrary SQL statement. Escape hatch; callers
// own authorization.
func (a *Adapter) ExecuteRawQuery(ctx context.Context, query string) (*adapter.Result, error) {
	if a.pool == nil {
		return nil, dalerrors.ConnectionFailed("postgres adapter is not connected", nil)
	}
	return a.query(ctx, query)
}

func (a *Adapter) query(ctx context.Context, sql string, args ...any) (*adapter.Result, error) {
	rows, err := a.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := make([]string, 0, len(rows.FieldDescriptions()))
	for _, fd := range rows.FieldDescriptions() {
		fields = append(fields, string(fd.Name))
	}

	result := &adapter.Result{Fields: fields}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		record := make(map[string]any, len(fields))
		for i, name := range fields {
			record[name] = values[i]
		}
		result.Rows = append(result.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// DiscoverSchema introspects tables, columns, and primary keys from the
// system catalogs, scoped to one schema (default public).
func (a *Adapter) DiscoverSchema(ctx context.Context, scope string) (*adapter.Schema, error) {
	if a.pool == nil {
		return nil, dalerrors.ConnectionFailed("postgres adapter is not connected", nil)
	}
	if scope == "" {
		scope = "public"
	}

	const columnsSQL = `
		SELECT c.table_name, c.column_name, c.data_type, c.is_nullable = 'YES'
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position`

	rows, err := a.pool.Query(ctx, columnsSQL, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byTable := map[string]*adapter.TableSchema{}
	var order []string
	for rows.Next() {
		var table, column, dataType string
		var nullable bool
		if err := rows.Scan(&table, &column, &dataType, &nullable); err != nil {
			return nil, err
		}
		ts, ok := byTable[table]
		if !ok {
			ts = &adapter.TableSchema{Name: table}
			byTable[table] = ts
			order = append(order, table)
		}
		ts.Columns = append(ts.Columns, adapter.ColumnSchema{
			Name:       column,
			Type:       dataType,
			IsNullable: nullable,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const pkSQL = `
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name
		 AND kcu.table_schema = tc.table_schema
		WHERE tc.table_schema = $1 AND tc.constraint_type = 'PRIMARY KEY'`

	pkRows, err := a.pool.Query(ctx, pkSQL, scope)
	if err != nil {
		return nil, err
	}
	defer pkRows.Close()

	for pkRows.Next() {
		var table, column string
		if err := pkRows.Scan(&table, &column); err != nil {
			return nil, err
		}
		ts, ok := byTable[table]
		if !ok {
			continue
		}
		for i := range ts.Columns {
			if ts.Columns[i].Name == column {
				ts.Columns[i].IsPrimaryKey = true
			}
		}
	}
	if err := pkRows.Err(); err != nil {
		return nil, err
	}

	schema := &adapter.Schema{}
	for _, name := range order {
		schema.Tables = append(schema.Tables, *byTable[name])
	}
	return schema, nil
}

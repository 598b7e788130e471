// Package mysql implements the external adapter contract for MySQL.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/thunder-source/live-tables-backend/internal/adapter"
	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
	"github.com/thunder-source/live-tables-backend/internal/lqp"
)

// Adapter executes logical queries against a MySQL backend through
// database/sql's connection pool.
type Adapter struct {
	db  *sql.DB
	cfg adapter.ConnectionConfig
}

// New returns a disconnected MySQL adapter.
func New() *Adapter {
	return &Adapter{}
}

// Factory adapts New to the registry's factory signature.
func Factory() adapter.Adapter {
	return New()
}

// Connect opens the pool and verifies it with a ping.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.ConnectionConfig) error {
	dsn := cfg.ConnectionString
	if dsn == "" {
		tls := "false"
		if cfg.SSL {
			tls = "true"
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=%s",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, tls)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return dalerrors.ConnectionFailed("invalid mysql configuration", err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}

	timeout := cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return dalerrors.ConnectionFailed("failed to ping mysql", err)
	}

	a.db = db
	a.cfg = cfg
	return nil
}

// Disconnect releases the pool. Idempotent.
func (a *Adapter) Disconnect(_ context.Context) error {
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

// TestConnection reports liveness; it never returns an error.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	if a.db == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.db.PingContext(ctx) == nil
}

// ExecuteLogicalQuery translates the plan to parameterized SQL and runs it.
func (a *Adapter) ExecuteLogicalQuery(ctx context.Context, plan lqp.Plan) (*adapter.Result, error) {
	if a.db == nil {
		return nil, dalerrors.ConnectionFailed("mysql adapter is not connected", nil)
	}

	query, args, err := adapter.BuildSelect(plan, adapter.MySQLDialect)
	if err != nil {
		return nil, err
	}
	return a.query(ctx, query, args...)
}

// ExecuteRawQuery runs an arbitrary SQL statement.
func (a *Adapter) ExecuteRawQuery(ctx context.Context, query string) (*adapter.Result, error) {
	if a.db == nil {
		return nil, dalerrors.ConnectionFailed("mysql adapter is not connected", nil)
	}
	return a.query(ctx, query)
}

func (a *Adapter) query(ctx context.Context, query string, args ...any) (*adapter.Result, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &adapter.Result{Fields: fields}
	for rows.Next() {
		values := make([]any, len(fields))
		targets := make([]any, len(fields))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		record := make(map[string]any, len(fields))
		for i, name := range fields {
			// The driver yields []byte for text-ish columns; surface strings.
			if b, ok := values[i].([]byte); ok {
				record[name] = string(b)
			} else {
				record[name] = values[i]
			}
		}
		result.Rows = append(result.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// DiscoverSchema introspects tables, columns, and primary keys from
// information_schema, scoped to one database (default the connection's
// configured database).
func (a *Adapter) DiscoverSchema(ctx context.Context, scope string) (*adapter.Schema, error) {
	if a.db == nil {
		return nil, dalerrors.ConnectionFailed("mysql adapter is not connected", nil)
	}
	if scope == "" {
		scope = a.cfg.Database
	}

	const columnsSQL = `
		SELECT c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE,
		       c.IS_NULLABLE = 'YES', c.COLUMN_KEY = 'PRI'
		FROM information_schema.COLUMNS c
		JOIN information_schema.TABLES t
		  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
		WHERE c.TABLE_SCHEMA = ? AND t.TABLE_TYPE = 'BASE TABLE'
		ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`

	rows, err := a.db.QueryContext(ctx, columnsSQL, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byTable := map[string]*adapter.TableSchema{}
	var order []string
	for rows.Next() {
		var table, column, dataType string
		var nullable, primary bool
		if err := rows.Scan(&table, &column, &dataType, &nullable, &primary); err != nil {
			return nil, err
		}
		ts, ok := byTable[table]
		if !ok {
			ts = &adapter.TableSchema{Name: table}
			byTable[table] = ts
			order = append(order, table)
		}
		ts.Columns = append(ts.Columns, adapter.ColumnSchema{
			Name:         column,
			Type:         dataType,
			IsNullable:   nullable,
			IsPrimaryKey: primary,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	schema := &adapter.Schema{}
	for _, name := range order {
		schema.Tables = append(schema.Tables, *byTable[name])
	}
	return schema, nil
}

package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thunder-source/live-tables-backend/internal/config"
	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
	"github.com/thunder-source/live-tables-backend/internal/lqp"
	"github.com/thunder-source/live-tables-backend/internal/store"
)

// fixtureMeta serves the fixture table for a single id.
type fixtureMeta struct {
	table *store.Table
}

func (m *fixtureMeta) GetTable(_ context.Context, tableID string) (*store.Table, error) {
	if m.table != nil && m.table.ID == tableID {
		return m.table, nil
	}
	return nil, dalerrors.TableNotFound(tableID)
}

// fakeDB satisfies Querier with canned responses.
type fakeDB struct {
	queryFn    func(sql string, args []any) (pgx.Rows, error)
	queryRowFn func(sql string, args []any) pgx.Row
	execFn     func(sql string, args []any) (pgconn.CommandTag, error)
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return f.queryFn(sql, args)
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return f.queryRowFn(sql, args)
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return f.execFn(sql, args)
}

// fakeRow scans a single canned tuple.
type fakeRow struct {
	vals []any
	err  error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanTuple(r.vals, dest)
}

// fakeRows iterates canned tuples.
type fakeRows struct {
	tuples [][]any
	idx    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.tuples) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanTuple(r.tuples[r.idx-1], dest)
}

func scanTuple(vals []any, dest []any) error {
	if len(vals) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(vals), len(dest))
	}
	for i, v := range vals {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *map[string]any:
			*d = v.(map[string]any)
		case *time.Time:
			*d = v.(time.Time)
		case **string:
			if v == nil {
				*d = nil
			} else {
				s := v.(string)
				*d = &s
			}
		default:
			return fmt.Errorf("scan: unsupported target %T", dest[i])
		}
	}
	return nil
}

// rowTuple builds one stored-row tuple in rowColumns order.
func rowTuple(id string, version int) []any {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return []any{id, map[string]any{"col_name": "row-" + id}, version, now, "user-1", now, nil}
}

func newTestEngine(db Querier) *Engine {
	return New(db, &fixtureMeta{table: fixtureTable()}, config.QueryConfig{DefaultLimit: 10})
}

func TestExecuteQueryTableNotFound(t *testing.T) {
	e := newTestEngine(&fakeDB{})

	plan := lqp.NewBuilder().FromInternalTable("nope").Build()
	_, err := e.ExecuteQuery(context.Background(), "nope", plan)
	require.Error(t, err)
	assert.True(t, dalerrors.HasCode(err, dalerrors.CodeTableNotFound))
}

func TestExecuteQueryRejectsExternalSource(t *testing.T) {
	e := newTestEngine(&fakeDB{})

	plan := lqp.NewBuilder().FromExternalConnection("conn-1", "tbl_1").Build()
	_, err := e.ExecuteQuery(context.Background(), "tbl_1", plan)
	require.Error(t, err)
	assert.True(t, dalerrors.HasCode(err, dalerrors.CodeUnsupportedSource))
}

func TestExecuteQueryRejectsComputedColumns(t *testing.T) {
	e := newTestEngine(&fakeDB{})

	plan := lqp.NewBuilder().FromInternalTable("tbl_1").
		Compute(lqp.ComputedColumn{Name: "total", Formula: "{a} + {b}"}).
		Build()
	_, err := e.ExecuteQuery(context.Background(), "tbl_1", plan)
	require.Error(t, err)
	assert.True(t, dalerrors.HasCode(err, dalerrors.CodeNotImplemented))
}

func TestExecuteQueryPagination(t *testing.T) {
	// 25 live rows total; the store returns whatever window the statement
	// asks for.
	total := 25
	pageFor := func(limit, offset int) [][]any {
		var tuples [][]any
		for i := offset; i < total && i < offset+limit; i++ {
			tuples = append(tuples, rowTuple(fmt.Sprintf("r%02d", i), 1))
		}
		return tuples
	}

	var lastLimit, lastOffset int
	db := &fakeDB{
		queryRowFn: func(sql string, args []any) pgx.Row {
			return &fakeRow{vals: []any{total}}
		},
		queryFn: func(sql string, args []any) (pgx.Rows, error) {
			lastLimit = args[len(args)-2].(int)
			lastOffset = args[len(args)-1].(int)
			return &fakeRows{tuples: pageFor(lastLimit, lastOffset)}, nil
		},
	}
	e := New(db, &fixtureMeta{table: fixtureTable()}, config.QueryConfig{DefaultLimit: 10})

	ten, zero, twenty := 10, 0, 20

	plan := lqp.NewBuilder().FromInternalTable("tbl_1").
		Paginate(lqp.Pagination{Limit: &ten, Offset: &zero}).Build()
	res, err := e.ExecuteQuery(context.Background(), "tbl_1", plan)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 10)
	assert.Equal(t, 25, res.Total)
	assert.True(t, res.HasMore)

	plan = lqp.NewBuilder().FromInternalTable("tbl_1").
		Paginate(lqp.Pagination{Limit: &ten, Offset: &twenty}).Build()
	res, err = e.ExecuteQuery(context.Background(), "tbl_1", plan)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 5)
	assert.False(t, res.HasMore)
	assert.Equal(t, 10, lastLimit)
	assert.Equal(t, 20, lastOffset)
}

func TestExecuteQueryScansRows(t *testing.T) {
	db := &fakeDB{
		queryRowFn: func(sql string, args []any) pgx.Row {
			return &fakeRow{vals: []any{1}}
		},
		queryFn: func(sql string, args []any) (pgx.Rows, error) {
			return &fakeRows{tuples: [][]any{rowTuple("r1", 3)}}, nil
		},
	}
	e := newTestEngine(db)

	plan := lqp.NewBuilder().FromInternalTable("tbl_1").Build()
	res, err := e.ExecuteQuery(context.Background(), "tbl_1", plan)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.Equal(t, "r1", row.ID)
	assert.Equal(t, 3, row.Version)
	assert.Equal(t, "row-r1", row.Data["col_name"])
	assert.Equal(t, "user-1", row.CreatedBy)
	assert.Empty(t, row.UpdatedBy)
}

func TestUpdateRowOptimisticConcurrency(t *testing.T) {
	// The store holds one row at version 1. An update with the matching
	// expected version succeeds and returns version 2; a second update with
	// the stale version loses the race and surfaces a conflict.
	storedVersion := 1

	db := &fakeDB{}
	db.queryRowFn = func(sql string, args []any) pgx.Row {
		// Version-guarded UPDATE ... RETURNING.
		if len(args) >= 4 {
			expected := args[3].(int)
			if expected != storedVersion {
				return &fakeRow{err: pgx.ErrNoRows}
			}
			storedVersion++
			return &fakeRow{vals: rowTuple("r1", storedVersion)}
		}
		// GetRow probe used to distinguish conflict from missing row.
		return &fakeRow{vals: rowTuple("r1", storedVersion)}
	}
	e := newTestEngine(db)

	expected := 1
	row, err := e.UpdateRow(context.Background(), "tbl_1", "r1",
		map[string]any{"col_name": "updated"}, &expected, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, row.Version)

	stale := 1
	_, err = e.UpdateRow(context.Background(), "tbl_1", "r1",
		map[string]any{"col_name": "clobber"}, &stale, "user-2")
	require.Error(t, err)
	assert.True(t, dalerrors.HasCode(err, dalerrors.CodeConflict))
}

func TestDeleteRowNotFound(t *testing.T) {
	db := &fakeDB{
		execFn: func(sql string, args []any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	}
	e := newTestEngine(db)

	err := e.DeleteRow(context.Background(), "tbl_1", "ghost", "user-1")
	require.Error(t, err)
	assert.True(t, dalerrors.HasCode(err, dalerrors.CodeRowNotFound))
}

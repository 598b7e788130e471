package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
	"github.com/thunder-source/live-tables-backend/internal/lqp"
)

func TestBuildSelectStar(t *testing.T) {
	plan := lqp.NewBuilder().FromExternalConnection("c1", "users").Build()

	sql, args, err := BuildSelect(plan, PostgresDialect)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users"`, sql)
	assert.Empty(t, args)
}

func TestBuildSelectPostgres(t *testing.T) {
	ten, five := 10, 5
	plan := lqp.NewBuilder().FromExternalConnection("c1", "users").
		Select([]string{"id", "name"}).
		Filter(lqp.Filter{Field: "age", Operator: lqp.OpGte, Value: 21}).
		Filter(lqp.Filter{Field: "name", Operator: lqp.OpLike, Value: "a%"}).
		Sort(lqp.Sort{Field: "name", Direction: lqp.SortAsc}).
		Paginate(lqp.Pagination{Limit: &ten, Offset: &five}).
		Build()

	sql, args, err := BuildSelect(plan, PostgresDialect)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "id", "name" FROM "users" WHERE "age" >= $1 AND "name" LIKE $2 ORDER BY "name" ASC LIMIT $3 OFFSET $4`,
		sql)
	assert.Equal(t, []any{21, "a%", 10, 5}, args)
}

func TestBuildSelectMySQLPlaceholders(t *testing.T) {
	plan := lqp.NewBuilder().FromExternalConnection("c1", "users").
		Filter(lqp.Filter{Field: "status", Operator: lqp.OpIn, Value: []any{"a", "b"}}).
		Build()

	sql, args, err := BuildSelect(plan, MySQLDialect)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `status` IN (?, ?)", sql)
	assert.Equal(t, []any{"a", "b"}, args)
}

func TestBuildSelectGroups(t *testing.T) {
	plan := lqp.NewBuilder().FromExternalConnection("c1", "orders").
		Filter(lqp.Filter{Operator: lqp.OpOr, Conditions: []lqp.Filter{
			{Field: "status", Operator: lqp.OpEq, Value: "open"},
			{Operator: lqp.OpAnd, Conditions: []lqp.Filter{
				{Field: "total", Operator: lqp.OpGt, Value: 100},
				{Field: "region", Operator: lqp.OpNeq, Value: "test"},
			}},
		}}).
		Build()

	sql, args, err := BuildSelect(plan, PostgresDialect)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT * FROM "orders" WHERE ("status" = $1 OR ("total" > $2 AND "region" <> $3))`,
		sql)
	assert.Equal(t, []any{"open", 100, "test"}, args)
}

func TestBuildSelectBetweenAndNull(t *testing.T) {
	plan := lqp.NewBuilder().FromExternalConnection("c1", "orders").
		Filter(lqp.Filter{Field: "total", Operator: lqp.OpBetween, Value: []any{10, 20}}).
		Filter(lqp.Filter{Field: "closed_at", Operator: lqp.OpIsNull}).
		Build()

	sql, args, err := BuildSelect(plan, PostgresDialect)
	require.NoError(t, err)
	assert.Contains(t, sql, `"total" BETWEEN $1 AND $2`)
	assert.Contains(t, sql, `"closed_at" IS NULL`)
	assert.Equal(t, []any{10, 20}, args)
}

func TestBuildSelectJoins(t *testing.T) {
	plan := lqp.NewBuilder().FromExternalConnection("c1", "orders").
		Join(lqp.Join{Type: lqp.JoinLeft, TargetTable: "customers",
			SourceField: "customer_id", TargetField: "id", Alias: "c"}).
		Join(lqp.Join{Type: lqp.JoinInner, TargetTable: "items",
			SourceField: "id", TargetField: "order_id"}).
		Build()

	sql, _, err := BuildSelect(plan, PostgresDialect)
	require.NoError(t, err)
	assert.Contains(t, sql, `LEFT JOIN "customers" AS "c" ON "orders"."customer_id" = "c"."id"`)
	assert.Contains(t, sql, `INNER JOIN "items" ON "orders"."id" = "items"."order_id"`)
}

func TestBuildSelectInvalidFilters(t *testing.T) {
	cases := []lqp.Filter{
		{Operator: lqp.OpEq, Value: 1}, // missing field
		{Operator: lqp.OpOr},           // empty group
	}
	for _, f := range cases {
		plan := lqp.NewBuilder().FromExternalConnection("c1", "t").Filter(f).Build()
		_, _, err := BuildSelect(plan, PostgresDialect)
		require.Error(t, err)
		assert.True(t, dalerrors.HasCode(err, dalerrors.CodeInvalidFilter))
	}
}

func TestQuoteIdentEscaping(t *testing.T) {
	assert.Equal(t, `"wei""rd"`, PostgresDialect.QuoteIdent(`wei"rd`))
	assert.Equal(t, "`wei``rd`", MySQLDialect.QuoteIdent("wei`rd"))
}

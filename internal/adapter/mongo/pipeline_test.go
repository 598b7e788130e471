package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
	"github.com/thunder-source/live-tables-backend/internal/lqp"
)

func stageValue(t *testing.T, pipeline []bson.D, name string) any {
	t.Helper()
	for _, stage := range pipeline {
		if len(stage) == 1 && stage[0].Key == name {
			return stage[0].Value
		}
	}
	t.Fatalf("pipeline has no %s stage", name)
	return nil
}

func TestBuildPipelineMatchOperators(t *testing.T) {
	plan := lqp.NewBuilder().FromExternalConnection("c1", "orders").
		Filter(lqp.Filter{Field: "status", Operator: lqp.OpEq, Value: "open"}).
		Filter(lqp.Filter{Field: "total", Operator: lqp.OpGte, Value: 100}).
		Build()

	pipeline, err := BuildPipeline(plan)
	require.NoError(t, err)

	match := stageValue(t, pipeline, "$match").(bson.M)
	conds := match["$and"].([]bson.M)
	assert.Equal(t, bson.M{"status": "open"}, conds[0])
	assert.Equal(t, bson.M{"total": bson.M{"$gte": 100}}, conds[1])
}

func TestBuildPipelineSingleFilterHasNoAndWrapper(t *testing.T) {
	plan := lqp.NewBuilder().FromExternalConnection("c1", "orders").
		Filter(lqp.Filter{Field: "status", Operator: lqp.OpNeq, Value: "closed"}).
		Build()

	pipeline, err := BuildPipeline(plan)
	require.NoError(t, err)

	match := stageValue(t, pipeline, "$match").(bson.M)
	assert.Equal(t, bson.M{"status": bson.M{"$ne": "closed"}}, match)
}

func TestBuildPipelineLikeBecomesRegex(t *testing.T) {
	plan := lqp.NewBuilder().FromExternalConnection("c1", "users").
		Filter(lqp.Filter{Field: "name", Operator: lqp.OpLike, Value: "a%b_c"}).
		Build()

	pipeline, err := BuildPipeline(plan)
	require.NoError(t, err)

	match := stageValue(t, pipeline, "$match").(bson.M)
	assert.Equal(t, bson.M{"name": bson.M{"$regex": "^a.*b.c$", "$options": "i"}}, match)
}

func TestBuildPipelineNullChecks(t *testing.T) {
	plan := lqp.NewBuilder().FromExternalConnection("c1", "users").
		Filter(lqp.Filter{Field: "archived_at", Operator: lqp.OpIsNull}).
		Filter(lqp.Filter{Field: "email", Operator: lqp.OpIsNotNull}).
		Build()

	pipeline, err := BuildPipeline(plan)
	require.NoError(t, err)

	match := stageValue(t, pipeline, "$match").(bson.M)
	conds := match["$and"].([]bson.M)
	assert.Equal(t, bson.M{"archived_at": nil}, conds[0])
	assert.Equal(t, bson.M{"email": bson.M{"$ne": nil}}, conds[1])
}

func TestBuildPipelineGroups(t *testing.T) {
	plan := lqp.NewBuilder().FromExternalConnection("c1", "orders").
		Filter(lqp.Filter{Operator: lqp.OpOr, Conditions: []lqp.Filter{
			{Field: "status", Operator: lqp.OpEq, Value: "open"},
			{Field: "total", Operator: lqp.OpBetween, Value: []any{10, 20}},
		}}).
		Build()

	pipeline, err := BuildPipeline(plan)
	require.NoError(t, err)

	match := stageValue(t, pipeline, "$match").(bson.M)
	or := match["$or"].([]bson.M)
	assert.Equal(t, bson.M{"status": "open"}, or[0])
	assert.Equal(t, bson.M{"total": bson.M{"$gte": 10, "$lte": 20}}, or[1])
}

func TestBuildPipelineStageOrder(t *testing.T) {
	ten, five := 10, 5
	plan := lqp.NewBuilder().FromExternalConnection("c1", "orders").
		Select([]string{"status", "total"}).
		Filter(lqp.Filter{Field: "status", Operator: lqp.OpEq, Value: "open"}).
		Join(lqp.Join{Type: lqp.JoinLeft, TargetTable: "customers",
			SourceField: "customer_id", TargetField: "_id", Alias: "customer"}).
		Sort(lqp.Sort{Field: "total", Direction: lqp.SortDesc}).
		Paginate(lqp.Pagination{Limit: &ten, Offset: &five}).
		Build()

	pipeline, err := BuildPipeline(plan)
	require.NoError(t, err)
	require.Len(t, pipeline, 6)

	keys := make([]string, len(pipeline))
	for i, stage := range pipeline {
		keys[i] = stage[0].Key
	}
	assert.Equal(t, []string{"$match", "$lookup", "$sort", "$skip", "$limit", "$project"}, keys)

	lookup := stageValue(t, pipeline, "$lookup").(bson.M)
	assert.Equal(t, bson.M{
		"from":         "customers",
		"localField":   "customer_id",
		"foreignField": "_id",
		"as":           "customer",
	}, lookup)

	sortStage := stageValue(t, pipeline, "$sort").(bson.D)
	assert.Equal(t, bson.D{{Key: "total", Value: -1}}, sortStage)

	assert.Equal(t, 5, stageValue(t, pipeline, "$skip"))
	assert.Equal(t, 10, stageValue(t, pipeline, "$limit"))
	assert.Equal(t, bson.M{"status": 1, "total": 1}, stageValue(t, pipeline, "$project"))
}

func TestBuildPipelineInvalidFilter(t *testing.T) {
	plan := lqp.NewBuilder().FromExternalConnection("c1", "orders").
		Filter(lqp.Filter{Operator: lqp.OpAnd}).
		Build()

	_, err := BuildPipeline(plan)
	require.Error(t, err)
	assert.True(t, dalerrors.HasCode(err, dalerrors.CodeInvalidFilter))
}

func TestLikeToRegexEscapesLiterals(t *testing.T) {
	assert.Equal(t, `^10\.5.*$`, likeToRegex("10.5%"))
}

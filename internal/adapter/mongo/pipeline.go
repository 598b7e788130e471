// Package mongo implements the external adapter contract for MongoDB,
// translating logical query plans into aggregation pipelines.
package mongo

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
	"github.com/thunder-source/live-tables-backend/internal/lqp"
)

// BuildPipeline translates a plan into an ordered aggregation pipeline:
// $match, one $lookup per join, $sort, $skip, $limit, $project.
func BuildPipeline(plan lqp.Plan) (mongo.Pipeline, error) {
	var pipeline mongo.Pipeline

	if len(plan.Filters) > 0 {
		match, err := matchStage(plan.Filters)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}

	for _, j := range plan.Joins {
		as := j.Alias
		if as == "" {
			as = j.TargetTable
		}
		// $lookup only expresses equality between local and foreign fields;
		// the join type is advisory here.
		pipeline = append(pipeline, bson.D{{Key: "$lookup", Value: bson.M{
			"from":         j.TargetTable,
			"localField":   j.SourceField,
			"foreignField": j.TargetField,
			"as":           as,
		}}})
	}

	if len(plan.Sorts) > 0 {
		sort := bson.D{}
		for _, s := range plan.Sorts {
			dir := 1
			if s.Direction == lqp.SortDesc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: s.Field, Value: dir})
		}
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sort}})
	}

	if plan.Pagination.Offset != nil && *plan.Pagination.Offset > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: *plan.Pagination.Offset}})
	}
	if plan.Pagination.Limit != nil && *plan.Pagination.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: *plan.Pagination.Limit}})
	}

	if len(plan.Fields) > 0 {
		project := bson.M{}
		for _, f := range plan.Fields {
			project[f] = 1
		}
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: project}})
	}

	return pipeline, nil
}

// matchStage AND-combines the top-level filters.
func matchStage(filters []lqp.Filter) (bson.M, error) {
	conds := make([]bson.M, 0, len(filters))
	for _, f := range filters {
		if err := lqp.ValidateFilter(f); err != nil {
			return nil, err
		}
		c, err := condition(f)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return bson.M{"$and": conds}, nil
}

func condition(f lqp.Filter) (bson.M, error) {
	if f.IsGroup() {
		parts := make([]bson.M, len(f.Conditions))
		for i, c := range f.Conditions {
			p, err := condition(c)
			if err != nil {
				return nil, err
			}
			parts[i] = p
		}
		op := "$and"
		if f.Operator == lqp.OpOr {
			op = "$or"
		}
		return bson.M{op: parts}, nil
	}

	switch lqp.NormalizeOperator(f.Operator) {
	case lqp.OpEq:
		return bson.M{f.Field: f.Value}, nil
	case lqp.OpNeq:
		return bson.M{f.Field: bson.M{"$ne": f.Value}}, nil
	case lqp.OpGt:
		return bson.M{f.Field: bson.M{"$gt": f.Value}}, nil
	case lqp.OpGte:
		return bson.M{f.Field: bson.M{"$gte": f.Value}}, nil
	case lqp.OpLt:
		return bson.M{f.Field: bson.M{"$lt": f.Value}}, nil
	case lqp.OpLte:
		return bson.M{f.Field: bson.M{"$lte": f.Value}}, nil
	case lqp.OpLike:
		return bson.M{f.Field: bson.M{"$regex": likeToRegex(f.Value), "$options": "i"}}, nil
	case lqp.OpIn:
		vals, _ := lqp.ValueSlice(f.Value)
		return bson.M{f.Field: bson.M{"$in": vals}}, nil
	case lqp.OpNin:
		vals, _ := lqp.ValueSlice(f.Value)
		return bson.M{f.Field: bson.M{"$nin": vals}}, nil
	case lqp.OpBetween:
		vals, _ := lqp.ValueSlice(f.Value)
		return bson.M{f.Field: bson.M{"$gte": vals[0], "$lte": vals[1]}}, nil
	case lqp.OpIsNull:
		return bson.M{f.Field: nil}, nil
	case lqp.OpIsNotNull:
		return bson.M{f.Field: bson.M{"$ne": nil}}, nil
	default:
		return nil, dalerrors.Newf(dalerrors.CategoryValidation, dalerrors.CodeInvalidFilter,
			"unsupported operator %q", f.Operator)
	}
}

// likeToRegex converts a SQL LIKE pattern to an anchored regular
// expression: % matches any run, _ matches one character, everything else
// is literal.
func likeToRegex(v any) string {
	pattern, _ := v.(string)
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, "%", ".*")
	escaped = strings.ReplaceAll(escaped, "_", ".")
	return "^" + escaped + "$"
}

package mongo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/thunder-source/live-tables-backend/internal/adapter"
	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
	"github.com/thunder-source/live-tables-backend/internal/logger"
	"github.com/thunder-source/live-tables-backend/internal/lqp"
)

const (
	defaultMaxRetries = 5
	initialBackoff    = time.Second
	// sampleSize bounds how many documents per collection schema discovery
	// inspects.
	sampleSize = 100
)

// Adapter executes logical queries against a MongoDB backend.
type Adapter struct {
	client   *mongo.Client
	database string
}

// New returns a disconnected MongoDB adapter.
func New() *Adapter {
	return &Adapter{}
}

// Factory adapts New to the registry's factory signature.
func Factory() adapter.Adapter {
	return New()
}

// Connect establishes the client, retrying with exponential backoff
// (doubling from one second) up to the configured maximum before giving up.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.ConnectionConfig) error {
	uri := cfg.ConnectionString
	if uri == "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%d/%s",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	}

	opts := options.Client().ApplyURI(uri)
	if cfg.MaxConnections > 0 {
		opts.SetMaxPoolSize(uint64(cfg.MaxConnections))
	}
	if cfg.ConnectionTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectionTimeout)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxRetries; attempt++ {
		client, err := mongo.Connect(ctx, opts)
		if err == nil {
			if err = client.Ping(ctx, nil); err == nil {
				a.client = client
				a.database = cfg.Database
				return nil
			}
			_ = client.Disconnect(ctx)
		}
		lastErr = err
		logger.Warn("mongodb connect attempt failed",
			"attempt", attempt, "maxRetries", maxRetries, "error", err)

		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return dalerrors.ConnectionFailed("mongodb connect canceled", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return dalerrors.ConnectionFailed(
		fmt.Sprintf("failed to connect to mongodb after %d attempts", maxRetries), lastErr)
}

// Disconnect releases the client. Idempotent.
func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	err := a.client.Disconnect(ctx)
	a.client = nil
	return err
}

// TestConnection reports liveness; it never returns an error.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	if a.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.client.Ping(ctx, nil) == nil
}

// ExecuteLogicalQuery translates the plan into an aggregation pipeline and
// runs it against the collection named by the plan's table id.
func (a *Adapter) ExecuteLogicalQuery(ctx context.Context, plan lqp.Plan) (*adapter.Result, error) {
	if a.client == nil {
		return nil, dalerrors.ConnectionFailed("mongodb adapter is not connected", nil)
	}

	pipeline, err := BuildPipeline(plan)
	if err != nil {
		return nil, err
	}

	coll := a.client.Database(a.database).Collection(plan.Source.TableID)
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := &adapter.Result{}
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, map[string]any(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// ExecuteRawQuery is not supported: there is no safe, uniform raw-query
// surface for the aggregation API.
func (a *Adapter) ExecuteRawQuery(_ context.Context, _ string) (*adapter.Result, error) {
	return nil, dalerrors.UnsupportedOperation("raw queries are not supported by the mongodb adapter")
}

// DiscoverSchema samples up to 100 documents per collection and unions the
// observed field names and types. A field observed with several types
// reports them pipe-joined; nested documents are inspected one level deep
// with dotted names.
func (a *Adapter) DiscoverSchema(ctx context.Context, scope string) (*adapter.Schema, error) {
	if a.client == nil {
		return nil, dalerrors.ConnectionFailed("mongodb adapter is not connected", nil)
	}
	dbName := scope
	if dbName == "" {
		dbName = a.database
	}
	db := a.client.Database(dbName)

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	schema := &adapter.Schema{}
	for _, name := range names {
		ts, err := a.sampleCollection(ctx, db.Collection(name))
		if err != nil {
			return nil, err
		}
		schema.Tables = append(schema.Tables, *ts)
	}
	return schema, nil
}

func (a *Adapter) sampleCollection(ctx context.Context, coll *mongo.Collection) (*adapter.TableSchema, error) {
	findOpts := options.Find().SetLimit(sampleSize)
	cursor, err := coll.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	fieldTypes := map[string]map[string]bool{}
	observed := 0
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		observed++
		collectFieldTypes(fieldTypes, "", doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	ts := &adapter.TableSchema{Name: coll.Name()}
	names := make([]string, 0, len(fieldTypes))
	for f := range fieldTypes {
		names = append(names, f)
	}
	sort.Strings(names)

	for _, f := range names {
		types := make([]string, 0, len(fieldTypes[f]))
		for t := range fieldTypes[f] {
			types = append(types, t)
		}
		sort.Strings(types)
		ts.Columns = append(ts.Columns, adapter.ColumnSchema{
			Name:         f,
			Type:         strings.Join(types, "|"),
			IsNullable:   true, // sampling cannot prove a field is required
			IsPrimaryKey: f == "_id",
		})
	}
	return ts, nil
}

// collectFieldTypes records the BSON-level type of every field, descending
// one level into embedded documents using dotted names.
func collectFieldTypes(acc map[string]map[string]bool, prefix string, doc bson.M) {
	for key, value := range doc {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		if prefix == "" {
			// The driver decodes embedded documents as bson.M or bson.D
			// depending on the target; handle both.
			if nested, ok := value.(bson.M); ok {
				collectFieldTypes(acc, name, nested)
				continue
			}
			if nested, ok := value.(bson.D); ok {
				collectFieldTypes(acc, name, nested.Map())
				continue
			}
		}
		if acc[name] == nil {
			acc[name] = map[string]bool{}
		}
		acc[name][bsonTypeName(value)] = true
	}
}

func bsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int32, int64, int:
		return "int"
	case float64:
		return "double"
	case time.Time:
		return "date"
	case bson.A:
		return "array"
	case bson.M, bson.D:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

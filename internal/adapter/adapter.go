// Package adapter defines the uniform contract every external database
// backend implements, a factory registry over the closed set of supported
// backend types, and a process-wide manager that caches one connected
// adapter per stored connection.
package adapter

import (
	"context"
	"time"

	"github.com/thunder-source/live-tables-backend/internal/lqp"
)

// Type identifies a backend technology. The set is closed; factories for
// each type are registered at process start.
type Type string

const (
	TypePostgres Type = "postgres"
	TypeMySQL    Type = "mysql"
	TypeMongoDB  Type = "mongodb"
)

// ConnectionConfig is the decrypted configuration handed to Connect. The
// encryption service decrypts stored credentials immediately before the
// adapter connects; plaintext never persists outside this value.
type ConnectionConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	Username          string        `json:"username"`
	Password          string        `json:"password"`
	Database          string        `json:"database"`
	SSL               bool          `json:"ssl,omitempty"`
	ConnectionString  string        `json:"connectionString,omitempty"`
	MaxConnections    int           `json:"maxConnections,omitempty"`
	ConnectionTimeout time.Duration `json:"connectionTimeout,omitempty"`
	MaxRetries        int           `json:"maxRetries,omitempty"`
}

// Result is the uniform shape of an executed logical query.
type Result struct {
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"rowCount"`
	Fields   []string         `json:"fields,omitempty"`
}

// ColumnSchema describes one discovered column.
type ColumnSchema struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	IsNullable   bool   `json:"isNullable"`
	IsPrimaryKey bool   `json:"isPrimaryKey"`
}

// TableSchema describes one discovered table or collection.
type TableSchema struct {
	Name    string         `json:"name"`
	Columns []ColumnSchema `json:"columns"`
}

// Schema is the result of discovery against a backend.
type Schema struct {
	Tables []TableSchema `json:"tables"`
}

// Adapter is the capability contract for one backend technology.
//
// Connect owns its own retry policy; Disconnect is idempotent;
// TestConnection never returns an error, only false. ExecuteRawQuery is an
// escape hatch some backends refuse with an unsupported-operation error.
type Adapter interface {
	Connect(ctx context.Context, cfg ConnectionConfig) error
	Disconnect(ctx context.Context) error
	TestConnection(ctx context.Context) bool
	DiscoverSchema(ctx context.Context, scope string) (*Schema, error)
	ExecuteLogicalQuery(ctx context.Context, plan lqp.Plan) (*Result, error)
	ExecuteRawQuery(ctx context.Context, query string) (*Result, error)
}

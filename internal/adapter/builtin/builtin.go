// Package builtin assembles the registry of all supported backend
// adapters. Keeping registration here, rather than scattered init calls,
// makes the supported set explicit and checkable at compile time.
package builtin

import (
	"github.com/thunder-source/live-tables-backend/internal/adapter"
	"github.com/thunder-source/live-tables-backend/internal/adapter/mongo"
	"github.com/thunder-source/live-tables-backend/internal/adapter/mysql"
	"github.com/thunder-source/live-tables-backend/internal/adapter/postgres"
)

// Registry returns a registry with every built-in adapter installed.
func Registry() *adapter.Registry {
	r := adapter.NewRegistry()
	r.Register(adapter.TypePostgres, postgres.Factory)
	r.Register(adapter.TypeMySQL, mysql.Factory)
	r.Register(adapter.TypeMongoDB, mongo.Factory)
	return r
}

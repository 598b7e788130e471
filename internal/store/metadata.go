package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
)

// ColumnType enumerates the declared types of internal-store columns. The
// engine uses the declared type to pick comparison casts when translating
// filters and sorts.
type ColumnType string

const (
	TypeTextShort     ColumnType = "TEXT_SHORT"
	TypeTextLong      ColumnType = "TEXT_LONG"
	TypeNumberInt     ColumnType = "NUMBER_INT"
	TypeNumberDecimal ColumnType = "NUMBER_DECIMAL"
	TypeBoolean       ColumnType = "BOOLEAN"
	TypeDate          ColumnType = "DATE"
	TypeDatetime      ColumnType = "DATETIME"
)

// IsNumeric reports whether values of the type compare numerically.
func (t ColumnType) IsNumeric() bool {
	return t == TypeNumberInt || t == TypeNumberDecimal
}

// IsTemporal reports whether values of the type compare as timestamps.
func (t ColumnType) IsTemporal() bool {
	return t == TypeDate || t == TypeDatetime
}

// Table is the metadata record for one internal-store table.
// PhysicalTableName is globally unique and immutable once rows exist;
// SchemaVersion increments on every column change.
type Table struct {
	ID                string
	BaseID            string
	PhysicalTableName string
	SchemaVersion     int
	Columns           []Column
}

// Column describes one logical column. PhysicalName is the key under which
// values live in each row's attribute map.
type Column struct {
	ID           string
	TableID      string
	Name         string
	PhysicalName string
	Type         ColumnType
	IsRequired   bool
	DefaultValue any
	Position     int
}

// ColumnByName resolves a logical column name. The second return reports
// whether the column exists.
func (t *Table) ColumnByName(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Row is one internal-store record: an attribute map plus bookkeeping.
// Version is the optimistic-concurrency token. DeletedAt marks tombstones.
type Row struct {
	ID        string         `json:"id"`
	Data      map[string]any `json:"data"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	CreatedBy string         `json:"createdBy,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
	UpdatedBy string         `json:"updatedBy,omitempty"`
}

// MetadataProvider resolves table metadata. The engine consumes it
// read-only; table/column mutation belongs to the surrounding CRUD layer.
type MetadataProvider interface {
	GetTable(ctx context.Context, tableID string) (*Table, error)
}

// Metadata reads the lt_tables / lt_columns catalog.
type Metadata struct {
	db *DB
}

// NewMetadata creates a catalog-backed MetadataProvider.
func NewMetadata(db *DB) *Metadata {
	return &Metadata{db: db}
}

// GetTable loads a table and its ordered column definitions.
func (m *Metadata) GetTable(ctx context.Context, tableID string) (*Table, error) {
	const tableSQL = `
		SELECT id, base_id, physical_table_name, schema_version
		FROM lt_tables
		WHERE id = $1`

	var t Table
	err := m.db.Pool.QueryRow(ctx, tableSQL, tableID).
		Scan(&t.ID, &t.BaseID, &t.PhysicalTableName, &t.SchemaVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dalerrors.TableNotFound(tableID)
		}
		return nil, err
	}

	const columnSQL = `
		SELECT id, table_id, name, physical_name, type, is_required, default_value, position
		FROM lt_columns
		WHERE table_id = $1
		ORDER BY position`

	rows, err := m.db.Pool.Query(ctx, columnSQL, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.ID, &c.TableID, &c.Name, &c.PhysicalName,
			&c.Type, &c.IsRequired, &c.DefaultValue, &c.Position); err != nil {
			return nil, err
		}
		t.Columns = append(t.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &t, nil
}

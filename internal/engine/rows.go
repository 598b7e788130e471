package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
	"github.com/thunder-source/live-tables-backend/internal/store"
)

// InsertRow stores a new row in the table's physical storage at version 1.
func (e *Engine) InsertRow(ctx context.Context, tableID string, data map[string]any, userID string) (*store.Row, error) {
	table, err := e.meta.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (id, data, version, created_at, created_by, updated_at, updated_by)
		VALUES ($1, $2, 1, now(), $3, now(), $3)
		RETURNING %s`, quoteIdent(table.PhysicalTableName), rowColumns)

	row := e.db.QueryRow(ctx, sql, uuid.NewString(), data, nullable(userID))
	return scanSingle(row)
}

// GetRow fetches one live row by id.
func (e *Engine) GetRow(ctx context.Context, tableID, rowID string) (*store.Row, error) {
	table, err := e.meta.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND deleted_at IS NULL`,
		rowColumns, quoteIdent(table.PhysicalTableName))

	r, err := scanSingle(e.db.QueryRow(ctx, sql, rowID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dalerrors.RowNotFound(tableID, rowID)
		}
		return nil, err
	}
	return r, nil
}

// UpdateRow merges data into a row's attribute map and bumps its version.
// When expectedVersion is non-nil the update only applies if the stored
// version still matches; a lost race surfaces as a conflict and is never
// retried here, since a blind retry could clobber the concurrent edit.
func (e *Engine) UpdateRow(ctx context.Context, tableID, rowID string, data map[string]any, expectedVersion *int, userID string) (*store.Row, error) {
	table, err := e.meta.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	physical := quoteIdent(table.PhysicalTableName)
	sql := fmt.Sprintf(`
		UPDATE %s
		SET data = data || $2, version = version + 1, updated_at = now(), updated_by = $3
		WHERE id = $1 AND deleted_at IS NULL`, physical)
	args := []any{rowID, data, nullable(userID)}

	if expectedVersion != nil {
		sql += fmt.Sprintf(" AND version = $%d", len(args)+1)
		args = append(args, *expectedVersion)
	}
	sql += " RETURNING " + rowColumns

	r, err := scanSingle(e.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Zero affected rows with a version predicate is the race-loss
			// signal; without one the row simply does not exist.
			if expectedVersion != nil {
				if _, getErr := e.GetRow(ctx, tableID, rowID); getErr == nil {
					return nil, dalerrors.Conflict(rowID)
				}
			}
			return nil, dalerrors.RowNotFound(tableID, rowID)
		}
		return nil, err
	}
	return r, nil
}

// DeleteRow tombstones a row. Reads exclude tombstoned rows; nothing is
// hard-deleted.
func (e *Engine) DeleteRow(ctx context.Context, tableID, rowID string, userID string) error {
	table, err := e.meta.GetTable(ctx, tableID)
	if err != nil {
		return err
	}

	sql := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = now(), updated_at = now(), updated_by = $2
		WHERE id = $1 AND deleted_at IS NULL`, quoteIdent(table.PhysicalTableName))

	tag, err := e.db.Exec(ctx, sql, rowID, nullable(userID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return dalerrors.RowNotFound(tableID, rowID)
	}
	return nil
}

func scanSingle(row pgx.Row) (*store.Row, error) {
	var (
		r                    store.Row
		createdBy, updatedBy *string
	)
	if err := row.Scan(&r.ID, &r.Data, &r.Version,
		&r.CreatedAt, &createdBy, &r.UpdatedAt, &updatedBy); err != nil {
		return nil, err
	}
	if createdBy != nil {
		r.CreatedBy = *createdBy
	}
	if updatedBy != nil {
		r.UpdatedBy = *updatedBy
	}
	return &r, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

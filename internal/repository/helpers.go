package repository

import (
	"context"
	"database/sql"
	"errors"
)

// sqlxDB is the subset of *sqlx.DB and *sqlx.Tx the repositories use.
type sqlxDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// getOne scans a single row into a new T. No matching row yields (nil, nil);
// services decide whether absence is an error.
func getOne[T any](ctx context.Context, db sqlxDB, query string, args ...interface{}) (*T, error) {
	row := new(T)
	if err := db.GetContext(ctx, row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

// rowsAffected adapts an ExecContext result to a row count.
func rowsAffected(result sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trpi/scheduling-server-go/internal/model"
)

// rowDB answers GetContext with a canned error, or fills the destination
// with row when err is nil.
type rowDB struct {
	row   model.AuthSession
	err   error
	query string
}

func (d *rowDB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	d.query = query
	if d.err != nil {
		return d.err
	}
	*dest.(*model.AuthSession) = d.row
	return nil
}

func (d *rowDB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return errors.New("not used")
}

func (d *rowDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errors.New("not used")
}

func TestGetOne(t *testing.T) {
	ctx := context.Background()

	t.Run("missing row is nil without error", func(t *testing.T) {
		repo := &authSessionRepo{db: &rowDB{err: sql.ErrNoRows}}

		got, err := repo.FindByTokenHash(ctx, "unknown")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("lost conditional update is nil without error", func(t *testing.T) {
		repo := &sessionRepo{db: &rowDB{err: fmt.Errorf("scan: %w", sql.ErrNoRows)}}

		got, err := repo.Transition(ctx, "s-1", model.SessionStatusScheduled, model.SessionStatusInProgress, nil)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		repo := &magicLinkRepo{db: &rowDB{err: assert.AnError}}

		got, err := repo.FindByTokenHash(ctx, "hash")
		assert.ErrorIs(t, err, assert.AnError)
		assert.Nil(t, got)
	})

	t.Run("found row is returned", func(t *testing.T) {
		db := &rowDB{row: model.AuthSession{ID: "as-1", Role: model.UserTypeTherapist}}
		repo := &authSessionRepo{db: db}

		got, err := repo.FindByTokenHash(ctx, "hash")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "as-1", got.ID)
		assert.Contains(t, db.query, "expires_at > NOW()")
	})
}

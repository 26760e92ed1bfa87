package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trpi/scheduling-server-go/internal/model"
)

type AuthSessionRepository interface {
	Create(ctx context.Context, params model.CreateAuthSessionParams) (*model.AuthSession, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) AuthSessionRepository
}

type authSessionRepo struct {
	db sqlxDB
}

func NewAuthSessionRepository(db *sqlx.DB) AuthSessionRepository {
	return &authSessionRepo{db: db}
}

func (r *authSessionRepo) WithTx(tx *sqlx.Tx) AuthSessionRepository {
	return &authSessionRepo{db: tx}
}

func (r *authSessionRepo) Create(ctx context.Context, params model.CreateAuthSessionParams) (*model.AuthSession, error) {
	return getOne[model.AuthSession](ctx, r.db, `
		INSERT INTO auth_sessions (token_hash, user_id, role, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.TokenHash, params.UserID, params.Role, params.ExpiresAt)
}

func (r *authSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error) {
	return getOne[model.AuthSession](ctx, r.db, `
		SELECT * FROM auth_sessions
		WHERE token_hash = $1 AND expires_at > NOW()
	`, tokenHash)
}

func (r *authSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE token_hash = $1`, tokenHash)
	return err
}

func (r *authSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at < NOW()`))
}

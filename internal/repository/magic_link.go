package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trpi/scheduling-server-go/internal/model"
)

type MagicLinkRepository interface {
	Create(ctx context.Context, params model.CreateMagicLinkParams) (*model.MagicLink, error)
	// InvalidatePending expires every unused link for the email and role.
	InvalidatePending(ctx context.Context, email string, authType model.UserType) (int64, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.MagicLink, error)
	// MarkUsed consumes the link. It reports false when another request
	// consumed it first.
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
	DeleteStale(ctx context.Context, olderThan time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) MagicLinkRepository
}

type magicLinkRepo struct {
	db sqlxDB
}

func NewMagicLinkRepository(db *sqlx.DB) MagicLinkRepository {
	return &magicLinkRepo{db: db}
}

func (r *magicLinkRepo) WithTx(tx *sqlx.Tx) MagicLinkRepository {
	return &magicLinkRepo{db: tx}
}

func (r *magicLinkRepo) Create(ctx context.Context, params model.CreateMagicLinkParams) (*model.MagicLink, error) {
	return getOne[model.MagicLink](ctx, r.db, `
		INSERT INTO magic_links (email, token_hash, link_type, auth_type, full_name, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.Email, params.TokenHash, params.LinkType, params.AuthType, params.FullName, params.ExpiresAt)
}

func (r *magicLinkRepo) InvalidatePending(ctx context.Context, email string, authType model.UserType) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
		UPDATE magic_links SET expires_at = NOW()
		WHERE email = $1 AND auth_type = $2
		AND used_at IS NULL AND expires_at > NOW()
	`, email, authType))
}

func (r *magicLinkRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.MagicLink, error) {
	return getOne[model.MagicLink](ctx, r.db, `
		SELECT * FROM magic_links WHERE token_hash = $1
	`, tokenHash)
}

func (r *magicLinkRepo) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	n, err := rowsAffected(r.db.ExecContext(ctx, `
		UPDATE magic_links SET used_at = $2
		WHERE id = $1 AND used_at IS NULL
	`, id, at))
	return n == 1, err
}

func (r *magicLinkRepo) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
		DELETE FROM magic_links
		WHERE expires_at < $1 OR used_at < $1
	`, olderThan))
}

package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trpi/scheduling-server-go/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, params model.CreateUserParams) (*model.User, error)
	// MarkLogin records a successful sign-in and marks the email verified.
	MarkLogin(ctx context.Context, id string, at time.Time) error
	ListByType(ctx context.Context, userType model.UserType, limit, offset int) ([]model.User, error)
	// CountActiveByType is the total behind ListByType's pages.
	CountActiveByType(ctx context.Context, userType model.UserType) (int, error)
	ListByPartner(ctx context.Context, partnerID string, limit, offset int) ([]model.User, error)
	CountByType(ctx context.Context) (map[model.UserType]int, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) UserRepository
}

type userRepo struct {
	db sqlxDB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepo{db: tx}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return getOne[model.User](ctx, r.db, `
		SELECT * FROM users WHERE id = $1
	`, id)
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return getOne[model.User](ctx, r.db, `
		SELECT * FROM users WHERE email = $1
	`, email)
}

func (r *userRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	return getOne[model.User](ctx, r.db, `
		INSERT INTO users (email, full_name, user_type, partner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.Email, params.FullName, params.UserType, params.PartnerID)
}

func (r *userRepo) MarkLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			is_verified = TRUE,
			last_login_at = $2,
			updated_at = $2
		WHERE id = $1
	`, id, at)
	return err
}

func (r *userRepo) ListByType(ctx context.Context, userType model.UserType, limit, offset int) ([]model.User, error) {
	var users []model.User
	err := r.db.SelectContext(ctx, &users, `
		SELECT * FROM users
		WHERE user_type = $1 AND is_active
		ORDER BY full_name, id
		LIMIT $2 OFFSET $3
	`, userType, limit, offset)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) CountActiveByType(ctx context.Context, userType model.UserType) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM users WHERE user_type = $1 AND is_active
	`, userType)
	return count, err
}

func (r *userRepo) ListByPartner(ctx context.Context, partnerID string, limit, offset int) ([]model.User, error) {
	var users []model.User
	err := r.db.SelectContext(ctx, &users, `
		SELECT * FROM users
		WHERE partner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, partnerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) CountByType(ctx context.Context) (map[model.UserType]int, error) {
	var rows []struct {
		UserType model.UserType `db:"user_type"`
		Count    int            `db:"count"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT user_type, COUNT(*) AS count FROM users GROUP BY user_type
	`)
	if err != nil {
		return nil, err
	}

	counts := make(map[model.UserType]int, len(rows))
	for _, row := range rows {
		counts[row.UserType] = row.Count
	}
	return counts, nil
}

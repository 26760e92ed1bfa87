package model

import (
	"time"
)

// AuthSession is a logged-in browser session. UserID is nil for the
// bootstrap admin that signs in with the configured password.
type AuthSession struct {
	ID        string    `db:"id" json:"id"`
	TokenHash string    `db:"token_hash" json:"-"`
	UserID    *string   `db:"user_id" json:"userId,omitempty"`
	Role      UserType  `db:"role" json:"role"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type CreateAuthSessionParams struct {
	TokenHash string
	UserID    *string
	Role      UserType
	ExpiresAt time.Time
}

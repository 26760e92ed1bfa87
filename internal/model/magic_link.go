package model

import (
	"time"
)

type MagicLink struct {
	ID        string        `db:"id" json:"id"`
	Email     string        `db:"email" json:"email"`
	TokenHash string        `db:"token_hash" json:"-"`
	LinkType  MagicLinkType `db:"link_type" json:"type"`
	AuthType  UserType      `db:"auth_type" json:"authType"`
	FullName  *string       `db:"full_name" json:"fullName,omitempty"`
	ExpiresAt time.Time     `db:"expires_at" json:"expiresAt"`
	UsedAt    *time.Time    `db:"used_at" json:"usedAt,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
}

// IsExpired checks if the link has expired
func (m *MagicLink) IsExpired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

func (m *MagicLink) IsUsed() bool {
	return m.UsedAt != nil
}

type CreateMagicLinkParams struct {
	Email     string
	TokenHash string
	LinkType  MagicLinkType
	AuthType  UserType
	FullName  *string
	ExpiresAt time.Time
}

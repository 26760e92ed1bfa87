package model

import (
	"time"
)

type User struct {
	ID          string     `db:"id" json:"id"`
	Email       string     `db:"email" json:"email"`
	FullName    string     `db:"full_name" json:"fullName"`
	UserType    UserType   `db:"user_type" json:"userType"`
	PartnerID   *string    `db:"partner_id" json:"partnerId,omitempty"`
	IsVerified  bool       `db:"is_verified" json:"isVerified"`
	IsActive    bool       `db:"is_active" json:"isActive"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
	LastLoginAt *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
}

type CreateUserParams struct {
	Email     string
	FullName  string
	UserType  UserType
	PartnerID *string
}

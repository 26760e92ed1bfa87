package service

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trpi/scheduling-server-go/internal/audit"
	"github.com/trpi/scheduling-server-go/internal/config"
	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/repository"
	"github.com/trpi/scheduling-server-go/internal/util"
)

type AuthOptions struct {
	SessionSecret     string
	AdminPasswordHash string
	AppBaseURL        string
	MagicLinkTTL      time.Duration
	AdminMagicLinkTTL time.Duration
	SessionTTL        time.Duration
}

type RequestLinkParams struct {
	Email    string
	LinkType model.MagicLinkType
	AuthType model.UserType
	FullName string
}

// LoginResult carries the raw session token that goes into the cookie. Only
// its hash is stored.
type LoginResult struct {
	Token     string
	Role      model.UserType
	User      *model.User
	ExpiresAt time.Time
}

// AuthService implements passwordless sign-in with single-use magic links,
// plus the bootstrap admin password login.
type AuthService struct {
	db              TxRunner
	userRepo        repository.UserRepository
	magicLinkRepo   repository.MagicLinkRepository
	authSessionRepo repository.AuthSessionRepository
	limiter         Limiter
	mailer          Mailer
	opts            AuthOptions
	now             func() time.Time
}

func NewAuthService(
	db TxRunner,
	userRepo repository.UserRepository,
	magicLinkRepo repository.MagicLinkRepository,
	authSessionRepo repository.AuthSessionRepository,
	limiter Limiter,
	mailer Mailer,
	opts AuthOptions,
) *AuthService {
	return &AuthService{
		db:              db,
		userRepo:        userRepo,
		magicLinkRepo:   magicLinkRepo,
		authSessionRepo: authSessionRepo,
		limiter:         limiter,
		mailer:          mailer,
		opts:            opts,
		now:             time.Now,
	}
}

// LinkTTL is the magic link lifetime for a role. Admin links are short-lived.
func (s *AuthService) LinkTTL(role model.UserType) time.Duration {
	if role == model.UserTypeAdmin {
		return s.opts.AdminMagicLinkTTL
	}
	return s.opts.MagicLinkTTL
}

func (s *AuthService) SessionTTL() time.Duration {
	return s.opts.SessionTTL
}

// RequestLink issues a magic link and emails it. It returns the link expiry.
func (s *AuthService) RequestLink(ctx context.Context, params RequestLinkParams) (time.Time, error) {
	email := util.NormalizeEmail(params.Email)
	if email == "" {
		return time.Time{}, apperrors.MissingRequired("email")
	}
	if !util.IsValidEmail(email) {
		return time.Time{}, apperrors.InvalidInput("email", "must be a valid email address")
	}
	if !params.LinkType.Valid() {
		return time.Time{}, apperrors.InvalidInput("type", "must be login or signup")
	}
	if !params.AuthType.Valid() {
		return time.Time{}, apperrors.InvalidInput("authType", "must be individual, therapist, partner or admin")
	}
	if params.LinkType == model.MagicLinkSignup && params.AuthType == model.UserTypeAdmin {
		return time.Time{}, apperrors.Forbidden("Admin accounts cannot be created by signup")
	}

	allowed, resetAt := s.limiter.CheckLimit(ctx, "magic-link:"+email, config.MagicLinkRequestLimit, config.MagicLinkRequestWindow)
	if !allowed {
		audit.Log(ctx, audit.Event{
			Type: audit.EventRateLimitExceed,
			Details: map[string]interface{}{
				"scope": "magic_link",
				"email": util.MaskEmail(email),
			},
		})
		return time.Time{}, apperrors.RateLimitExceeded().WithDetails(map[string]any{
			"retryAfter": resetAt.UTC().Format(time.RFC3339),
		})
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return time.Time{}, apperrors.Database(err)
	}

	name := strings.TrimSpace(params.FullName)
	switch params.LinkType {
	case model.MagicLinkLogin:
		if user == nil || user.UserType != params.AuthType {
			return time.Time{}, apperrors.NotFound("Account")
		}
		if !user.IsActive {
			return time.Time{}, apperrors.Forbidden("Account is disabled")
		}
		name = user.FullName
	case model.MagicLinkSignup:
		if user != nil {
			return time.Time{}, apperrors.AlreadyExists("Account")
		}
	}

	token, err := util.GenerateToken()
	if err != nil {
		return time.Time{}, apperrors.Internal("Failed to generate token").WithCause(err)
	}

	ttl := s.LinkTTL(params.AuthType)
	expiresAt := s.now().Add(ttl)

	var fullName *string
	if params.LinkType == model.MagicLinkSignup && name != "" {
		fullName = &name
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.magicLinkRepo.WithTx(tx)
		if _, err := repo.InvalidatePending(ctx, email, params.AuthType); err != nil {
			return err
		}
		_, err := repo.Create(ctx, model.CreateMagicLinkParams{
			Email:     email,
			TokenHash: util.HashToken(token),
			LinkType:  params.LinkType,
			AuthType:  params.AuthType,
			FullName:  fullName,
			ExpiresAt: expiresAt,
		})
		return err
	})
	if err != nil {
		return time.Time{}, apperrors.Database(err)
	}

	if err := s.mailer.SendMagicLink(ctx, email, name, s.verifyURL(token), ttl); err != nil {
		return time.Time{}, apperrors.External("email provider", err)
	}

	audit.Log(ctx, audit.Event{
		Type: audit.EventMagicLinkRequest,
		Role: string(params.AuthType),
		Details: map[string]interface{}{
			"email":     util.MaskEmail(email),
			"link_type": string(params.LinkType),
		},
	})

	return expiresAt, nil
}

func (s *AuthService) verifyURL(token string) string {
	return fmt.Sprintf("%s/auth/verify?token=%s", strings.TrimRight(s.opts.AppBaseURL, "/"), url.QueryEscape(token))
}

// Verify consumes a magic link and opens a session. A link is accepted once.
func (s *AuthService) Verify(ctx context.Context, token string) (*LoginResult, error) {
	if token == "" {
		return nil, apperrors.MagicLinkNotFound()
	}

	link, err := s.magicLinkRepo.FindByTokenHash(ctx, util.HashToken(token))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if link == nil {
		return nil, apperrors.MagicLinkNotFound()
	}

	now := s.now()
	if link.IsExpired(now) {
		s.logRejected(ctx, link, "expired")
		return nil, apperrors.MagicLinkExpired()
	}
	if link.IsUsed() {
		s.logRejected(ctx, link, "used")
		return nil, apperrors.MagicLinkUsed()
	}

	sessionToken, err := util.GenerateToken()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate token").WithCause(err)
	}
	result := &LoginResult{
		Token:     sessionToken,
		Role:      link.AuthType,
		ExpiresAt: now.Add(s.opts.SessionTTL),
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		consumed, err := s.magicLinkRepo.WithTx(tx).MarkUsed(ctx, link.ID, now)
		if err != nil {
			return err
		}
		if !consumed {
			return apperrors.MagicLinkUsed()
		}

		users := s.userRepo.WithTx(tx)
		user, err := users.FindByEmail(ctx, link.Email)
		if err != nil {
			return err
		}

		switch {
		case user == nil && link.LinkType == model.MagicLinkSignup:
			var name string
			if link.FullName != nil {
				name = *link.FullName
			}
			user, err = users.Create(ctx, model.CreateUserParams{
				Email:    link.Email,
				FullName: name,
				UserType: link.AuthType,
			})
			if err != nil {
				return err
			}
			audit.Log(ctx, audit.Event{Type: audit.EventUserCreate, UserID: user.ID, Role: string(user.UserType)})
		case user == nil:
			return apperrors.NotFound("Account")
		case user.UserType != link.AuthType:
			return apperrors.AlreadyExists("Account")
		case !user.IsActive:
			return apperrors.Forbidden("Account is disabled")
		}

		if err := users.MarkLogin(ctx, user.ID, now); err != nil {
			return err
		}
		user.IsVerified = true
		user.LastLoginAt = &now

		_, err = s.authSessionRepo.WithTx(tx).Create(ctx, model.CreateAuthSessionParams{
			TokenHash: util.HmacSHA256(s.opts.SessionSecret, sessionToken),
			UserID:    &user.ID,
			Role:      link.AuthType,
			ExpiresAt: result.ExpiresAt,
		})
		if err != nil {
			return err
		}

		result.User = user
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:   audit.EventMagicLinkVerify,
		UserID: result.User.ID,
		Role:   string(result.Role),
	})
	return result, nil
}

func (s *AuthService) logRejected(ctx context.Context, link *model.MagicLink, reason string) {
	audit.Log(ctx, audit.Event{
		Type: audit.EventMagicLinkRejected,
		Role: string(link.AuthType),
		Details: map[string]interface{}{
			"email":  util.MaskEmail(link.Email),
			"reason": reason,
		},
	})
}

// AdminLogin signs in the bootstrap admin with the configured bcrypt hash.
func (s *AuthService) AdminLogin(ctx context.Context, password string) (*LoginResult, error) {
	if s.opts.AdminPasswordHash == "" {
		return nil, apperrors.Unauthorized("Password login is disabled")
	}
	if !util.CheckPasswordHash(password, s.opts.AdminPasswordHash) {
		return nil, apperrors.Unauthorized("Invalid password")
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate token").WithCause(err)
	}

	expiresAt := s.now().Add(s.opts.SessionTTL)
	_, err = s.authSessionRepo.Create(ctx, model.CreateAuthSessionParams{
		TokenHash: util.HmacSHA256(s.opts.SessionSecret, token),
		Role:      model.UserTypeAdmin,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	return &LoginResult{Token: token, Role: model.UserTypeAdmin, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a session token to its principal. It returns nil
// when the token is unknown or expired, when it was issued for a role outside
// roles, or when it belongs to a disabled user.
func (s *AuthService) Authenticate(ctx context.Context, token string, roles ...model.UserType) (*model.Principal, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.authSessionRepo.FindByTokenHash(ctx, util.HmacSHA256(s.opts.SessionSecret, token))
	if err != nil {
		return nil, err
	}
	if session == nil || !slices.Contains(roles, session.Role) {
		return nil, nil
	}

	principal := &model.Principal{Role: session.Role, SessionID: session.ID}
	if session.UserID == nil {
		if session.Role != model.UserTypeAdmin {
			return nil, nil
		}
		return principal, nil
	}

	user, err := s.userRepo.FindByID(ctx, *session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive || user.UserType != session.Role {
		return nil, nil
	}

	principal.UserID = user.ID
	return principal, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.authSessionRepo.DeleteByTokenHash(ctx, util.HmacSHA256(s.opts.SessionSecret, token)); err != nil {
		return apperrors.Database(err)
	}
	return nil
}

// CurrentUser returns the user behind a principal, or nil for the bootstrap
// admin.
func (s *AuthService) CurrentUser(ctx context.Context, p *model.Principal) (*model.User, error) {
	if p == nil {
		return nil, apperrors.Unauthorized("Not signed in")
	}
	if p.UserID == "" {
		return nil, nil
	}
	user, err := s.userRepo.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

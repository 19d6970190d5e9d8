package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/store"
)

// AdminStore is the credential store the auth service depends on.
// *store.Store satisfies it.
type AdminStore interface {
	GetAdmin(ctx context.Context, id string) (*model.Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	CreateAdmin(ctx context.Context, admin *model.Admin) error
	UpdateAdmin(ctx context.Context, id string, upd model.AdminUpdate) error
	UpdateAdminLastLogin(ctx context.Context, id string) error
	HasAnyAdmin(ctx context.Context) (bool, error)
	ListAdmins(ctx context.Context) ([]model.Admin, error)
	CountAdmins(ctx context.Context) (int, error)
}

// Session is the result of any operation that issues a token.
type Session struct {
	Admin     *model.Admin
	Token     string
	ExpiresAt time.Time
}

// LoginInput is the login request body.
type LoginInput struct {
	Email    string `json:"email" label:"Email" validate:"required,email"`
	Password string `json:"password" label:"Password" validate:"required"`
}

// RegisterInput is used by HTTP registration and offline provisioning.
type RegisterInput struct {
	Name     string `json:"name" label:"Name" validate:"required,min=2,max=50"`
	Email    string `json:"email" label:"Email" validate:"required,email"`
	Password string `json:"password" label:"Password" validate:"required,min=6,maxbytes=72,password"`
}

// ProfileInput is a partial profile update. Absent (nil) fields are not
// changed; present ones are validated even when empty.
type ProfileInput struct {
	Name  *string `json:"name,omitempty" label:"Name" validate:"omitnil,min=2,max=50"`
	Email *string `json:"email,omitempty" label:"Email" validate:"omitnil,email"`
}

// PasswordInput is the password change request body.
type PasswordInput struct {
	CurrentPassword string `json:"currentPassword" label:"Current password" validate:"required"`
	NewPassword     string `json:"newPassword" label:"New password" validate:"required,min=6,maxbytes=72,password"`
}

type resetInput struct {
	Email       string `label:"Email" validate:"required,email"`
	NewPassword string `label:"New password" validate:"required,min=6,maxbytes=72,password"`
}

// AuthService orchestrates admin login, registration and self-service
// account changes.
type AuthService struct {
	store  AdminStore
	hasher *Hasher
	tokens *TokenManager
	logger *slog.Logger
}

// NewAuthService wires the auth service. A nil logger discards output.
func NewAuthService(s AdminStore, hasher *Hasher, tokens *TokenManager, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AuthService{store: s, hasher: hasher, tokens: tokens, logger: logger}
}

// Tokens exposes the token manager for callers that need the TTL.
func (s *AuthService) Tokens() *TokenManager {
	return s.tokens
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks credentials and issues a token. Unknown email and wrong
// password both return ErrInvalidCredentials after the same bcrypt work.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = NormalizeEmail(in.Email)
	if err := validate(&in); err != nil {
		return nil, err
	}

	admin, err := s.store.GetAdminByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.hasher.burn(in.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup admin: %w", err)
	}
	if !s.hasher.Verify(in.Password, admin.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.store.UpdateAdminLastLogin(ctx, admin.ID); err != nil {
		s.logger.Warn("failed to record last login", "admin_id", admin.ID, "error", err)
	}
	return s.session(admin)
}

// Register creates another admin and returns a session for it. The HTTP
// route is gated; there is no public self-registration.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	admin, err := s.CreateAdmin(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.session(admin)
}

// CreateAdmin validates and stores a new admin without issuing a token.
func (s *AuthService) CreateAdmin(ctx context.Context, in RegisterInput) (*model.Admin, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	if err := validate(&in); err != nil {
		return nil, err
	}

	if _, err := s.store.GetAdminByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailInUse
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	admin := &model.Admin{Name: in.Name, Email: in.Email, PasswordHash: hash}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return admin.Public(), nil
}

// GetSelf reloads the caller's identity.
func (s *AuthService) GetSelf(ctx context.Context, adminID string) (*model.Admin, error) {
	admin, err := s.load(ctx, adminID)
	if err != nil {
		return nil, err
	}
	return admin.Public(), nil
}

// ListAdmins returns every admin with hashes cleared.
func (s *AuthService) ListAdmins(ctx context.Context) ([]*model.Admin, error) {
	admins, err := s.store.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Admin, len(admins))
	for i := range admins {
		out[i] = admins[i].Public()
	}
	return out, nil
}

// HasAnyAdmin reports whether provisioning has happened.
func (s *AuthService) HasAnyAdmin(ctx context.Context) (bool, error) {
	return s.store.HasAnyAdmin(ctx)
}

// UpdateProfile changes name and/or email. An email already held by another
// admin yields ErrEmailInUse.
func (s *AuthService) UpdateProfile(ctx context.Context, adminID string, in ProfileInput) (*model.Admin, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		in.Email = &email
	}
	if err := validate(&in); err != nil {
		return nil, err
	}

	current, err := s.load(ctx, adminID)
	if err != nil {
		return nil, err
	}

	var upd model.AdminUpdate
	if in.Name != nil && *in.Name != current.Name {
		upd.Name = in.Name
	}
	if in.Email != nil && *in.Email != current.Email {
		other, err := s.store.GetAdminByEmail(ctx, *in.Email)
		switch {
		case err == nil && other.ID != adminID:
			return nil, ErrEmailInUse
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("lookup admin: %w", err)
		}
		upd.Email = in.Email
	}
	if upd.IsEmpty() {
		return current.Public(), nil
	}

	if err := s.store.UpdateAdmin(ctx, adminID, upd); err != nil {
		return nil, mapUpdateError(err)
	}
	return s.GetSelf(ctx, adminID)
}

// UpdatePassword replaces the caller's password and issues a fresh token.
// Previously issued tokens stay valid until they expire.
func (s *AuthService) UpdatePassword(ctx context.Context, adminID string, in PasswordInput) (*Session, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}

	admin, err := s.load(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(in.CurrentPassword, admin.PasswordHash) {
		return nil, ErrIncorrectPassword
	}

	if err := s.setPassword(ctx, admin.ID, in.NewPassword); err != nil {
		return nil, err
	}
	return s.session(admin)
}

// ResetPassword sets a new password for the admin with email. It is the
// offline recovery path and does not issue a token.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword string) error {
	in := resetInput{Email: NormalizeEmail(email), NewPassword: newPassword}
	if err := validate(&in); err != nil {
		return err
	}

	admin, err := s.store.GetAdminByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("lookup admin: %w", err)
	}
	return s.setPassword(ctx, admin.ID, in.NewPassword)
}

// Authenticate resolves a raw token to the admin it was issued for.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.Admin, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	return s.GetSelf(ctx, claims.AdminID)
}

func (s *AuthService) setPassword(ctx context.Context, adminID, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateAdmin(ctx, adminID, model.AdminUpdate{PasswordHash: &hash}); err != nil {
		return mapUpdateError(err)
	}
	return nil
}

func (s *AuthService) load(ctx context.Context, adminID string) (*model.Admin, error) {
	admin, err := s.store.GetAdmin(ctx, adminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("load admin: %w", err)
	}
	return admin, nil
}

func (s *AuthService) session(admin *model.Admin) (*Session, error) {
	token, claims, err := s.tokens.Issue(admin.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Admin: admin.Public(), Token: token, ExpiresAt: claims.ExpiresAt}, nil
}

func mapUpdateError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrIdentityNotFound
	case errors.Is(err, store.ErrDuplicate):
		return ErrEmailInUse
	default:
		return fmt.Errorf("update admin: %w", err)
	}
}

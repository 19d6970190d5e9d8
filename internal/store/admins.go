package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foliohq/folio/internal/model"
)

// CreateAdmin inserts a new admin account. ID, CreatedAt and UpdatedAt are
// populated on success. Email must already be normalized by the caller.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	now := time.Now().UTC()
	if admin.ID == "" {
		admin.ID = uuid.Must(uuid.NewV7()).String()
	}
	admin.CreatedAt = now
	admin.UpdatedAt = now

	const q = `INSERT INTO admins
		(id, name, email, password_hash, created_at, updated_at)
		VALUES
		(:id, :name, :email, :password_hash, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, q, admin); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// GetAdmin returns an admin by ID.
func (s *Store) GetAdmin(ctx context.Context, id string) (*model.Admin, error) {
	var admin model.Admin
	if err := s.db.GetContext(ctx, &admin, s.db.Rebind("SELECT * FROM admins WHERE id = ?"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &admin, nil
}

// GetAdminByEmail returns an admin by (normalized) email address.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	if err := s.db.GetContext(ctx, &admin, s.db.Rebind("SELECT * FROM admins WHERE email = ?"), email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns all admin accounts ordered by creation time.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.db.SelectContext(ctx, &admins, "SELECT * FROM admins ORDER BY created_at, email"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// CountAdmins returns the number of admin accounts.
func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

// HasAnyAdmin reports whether at least one admin account exists. Used for
// first-run detection by serve and the provisioning command.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	n, err := s.CountAdmins(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateAdmin applies a partial update. Only name, email and password_hash
// can change; id and created_at are immutable.
func (s *Store) UpdateAdmin(ctx context.Context, id string, upd model.AdminUpdate) error {
	if upd.IsEmpty() {
		return nil
	}

	var (
		sets []string
		args []interface{}
	)
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *upd.Email)
	}
	if upd.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *upd.PasswordHash)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	q := s.db.Rebind("UPDATE admins SET " + strings.Join(sets, ", ") + " WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update admin: %w", err)
	}
	return s.checkAdminAffected(ctx, result, id)
}

// UpdateAdminLastLogin sets the last_login_at timestamp for an admin.
func (s *Store) UpdateAdminLastLogin(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE admins SET last_login_at = ? WHERE id = ?"), now, id)
	if err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	return s.checkAdminAffected(ctx, result, id)
}

// checkAdminAffected maps zero affected rows to ErrNotFound. MySQL reports
// zero when the new values equal the old ones, so existence is re-checked.
func (s *Store) checkAdminAffected(ctx context.Context, result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("admin rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	_, err = s.GetAdmin(ctx, id)
	return err
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/foliohq/folio/internal/store"
)

func newTestAuth(t *testing.T) (*AuthService, *store.Store) {
	t.Helper()
	st, err := store.New(store.Options{}) // in-memory
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	auth := NewAuthService(st, NewHasher(bcrypt.MinCost), NewTokenManager(testSecret, 0), nil)
	return auth, st
}

func seedAlice(t *testing.T, auth *AuthService) string {
	t.Helper()
	admin, err := auth.CreateAdmin(context.Background(), RegisterInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "Secret123",
	})
	if err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	return admin.ID
}

func TestLoginSucceedsAndTokenVerifies(t *testing.T) {
	auth, _ := newTestAuth(t)
	id := seedAlice(t, auth)
	ctx := context.Background()

	sess, err := auth.Login(ctx, LoginInput{Email: "  Alice@Example.com ", Password: "Secret123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Admin.ID != id {
		t.Errorf("admin id = %q, want %q", sess.Admin.ID, id)
	}
	if sess.Admin.PasswordHash != "" {
		t.Error("session admin must not carry the password hash")
	}

	claims, err := auth.Tokens().Verify(sess.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.AdminID != id {
		t.Errorf("token subject = %q, want %q", claims.AdminID, id)
	}

	self, _ := auth.GetSelf(ctx, id)
	if self.LastLoginAt == nil {
		t.Error("expected last login to be recorded")
	}
}

func TestLoginInvalidCredentialsIsGeneric(t *testing.T) {
	auth, _ := newTestAuth(t)
	seedAlice(t, auth)
	ctx := context.Background()

	_, wrongPass := auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "WrongPass"})
	_, unknown := auth.Login(ctx, LoginInput{Email: "bob@example.com", Password: "WrongPass"})

	if !errors.Is(wrongPass, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", wrongPass)
	}
	if !errors.Is(unknown, ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v, want ErrInvalidCredentials", unknown)
	}
	if wrongPass.Error() != unknown.Error() {
		t.Errorf("messages differ: %q vs %q", wrongPass, unknown)
	}
}

func TestLoginValidation(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    LoginInput
		field string
	}{
		{"missing email", LoginInput{Password: "x"}, "Email"},
		{"bad email", LoginInput{Email: "nope", Password: "x"}, "Email"},
		{"missing password", LoginInput{Email: "a@b.co"}, "Password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Login(ctx, tt.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("got %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestRegisterConflict(t *testing.T) {
	auth, _ := newTestAuth(t)
	seedAlice(t, auth)
	ctx := context.Background()

	_, err := auth.Register(ctx, RegisterInput{Name: "Other", Email: "ALICE@example.com", Password: "Secret123"})
	if !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("got %v, want ErrEmailInUse", err)
	}

	sess, err := auth.Register(ctx, RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "Secret123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	claims, err := auth.Tokens().Verify(sess.Token)
	if err != nil || claims.AdminID != sess.Admin.ID {
		t.Errorf("registered token did not verify to new admin: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"short name", RegisterInput{Name: " A ", Email: "a@example.com", Password: "Secret123"}},
		{"weak password", RegisterInput{Name: "Alice", Email: "a@example.com", Password: "secret"}},
		{"short password", RegisterInput{Name: "Alice", Email: "a@example.com", Password: "Se1"}},
		{"bad email", RegisterInput{Name: "Alice", Email: "a@", Password: "Secret123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Register(ctx, tt.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestGetSelfIdempotent(t *testing.T) {
	auth, _ := newTestAuth(t)
	id := seedAlice(t, auth)
	ctx := context.Background()

	a, err := auth.GetSelf(ctx, id)
	if err != nil {
		t.Fatalf("GetSelf: %v", err)
	}
	b, err := auth.GetSelf(ctx, id)
	if err != nil {
		t.Fatalf("GetSelf: %v", err)
	}
	if a.ID != b.ID || a.Name != b.Name || a.Email != b.Email ||
		!a.CreatedAt.Equal(b.CreatedAt) || !a.UpdatedAt.Equal(b.UpdatedAt) {
		t.Errorf("GetSelf not idempotent: %+v vs %+v", a, b)
	}

	if _, err := auth.GetSelf(ctx, "vanished"); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("got %v, want ErrIdentityNotFound", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	auth, _ := newTestAuth(t)
	id := seedAlice(t, auth)
	ctx := context.Background()

	bob, err := auth.CreateAdmin(ctx, RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "Secret123"})
	if err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}

	if _, err := auth.UpdateProfile(ctx, id, ProfileInput{Email: ptr("BOB@example.com")}); !errors.Is(err, ErrEmailInUse) {
		t.Errorf("taken email: got %v, want ErrEmailInUse", err)
	}

	got, err := auth.UpdateProfile(ctx, id, ProfileInput{Email: ptr("alice@example.com"), Name: ptr("Alice L.")})
	if err != nil {
		t.Fatalf("own email: %v", err)
	}
	if got.Name != "Alice L." || got.Email != "alice@example.com" {
		t.Errorf("unexpected profile %+v", got)
	}

	got, err = auth.UpdateProfile(ctx, id, ProfileInput{Email: ptr("alice@new.example.com")})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.Email != "alice@new.example.com" || got.Name != "Alice L." {
		t.Errorf("partial update clobbered fields: %+v", got)
	}

	if _, err := auth.UpdateProfile(ctx, bob.ID, ProfileInput{Name: ptr("B")}); err == nil {
		t.Error("expected validation error for short name")
	}

	for _, in := range []ProfileInput{{Email: ptr("")}, {Name: ptr("")}, {Name: ptr("   ")}} {
		var verr *ValidationError
		if _, err := auth.UpdateProfile(ctx, bob.ID, in); !errors.As(err, &verr) {
			t.Errorf("UpdateProfile(%+v): got %v, want ValidationError", in, err)
		}
	}

	unchanged, err := auth.UpdateProfile(ctx, bob.ID, ProfileInput{})
	if err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if unchanged.Name != "Bob" {
		t.Errorf("empty update changed name to %q", unchanged.Name)
	}
}

func TestUpdatePasswordFlow(t *testing.T) {
	auth, _ := newTestAuth(t)
	id := seedAlice(t, auth)
	ctx := context.Background()

	_, err := auth.UpdatePassword(ctx, id, PasswordInput{CurrentPassword: "Wrong123", NewPassword: "NewSecret456"})
	if !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("wrong current: got %v, want ErrIncorrectPassword", err)
	}

	sess, err := auth.UpdatePassword(ctx, id, PasswordInput{CurrentPassword: "Secret123", NewPassword: "NewSecret456"})
	if err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("expected a fresh token")
	}

	if _, err := auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "NewSecret456"}); err != nil {
		t.Errorf("login with new password: %v", err)
	}
	if _, err := auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "Secret123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("login with old password: got %v, want ErrInvalidCredentials", err)
	}
}

func TestResetPassword(t *testing.T) {
	auth, _ := newTestAuth(t)
	seedAlice(t, auth)
	ctx := context.Background()

	if err := auth.ResetPassword(ctx, "nobody@example.com", "Reset1234"); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("unknown email: got %v, want ErrIdentityNotFound", err)
	}
	if err := auth.ResetPassword(ctx, "alice@example.com", "weak"); err == nil {
		t.Error("expected validation error for weak password")
	}
	if err := auth.ResetPassword(ctx, "Alice@Example.com", "Reset1234"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "Reset1234"}); err != nil {
		t.Errorf("login after reset: %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	auth, _ := newTestAuth(t)
	id := seedAlice(t, auth)
	ctx := context.Background()

	if _, err := auth.Authenticate(ctx, ""); !errors.Is(err, ErrTokenMissing) {
		t.Errorf("empty: got %v, want ErrTokenMissing", err)
	}
	if _, err := auth.Authenticate(ctx, "garbage"); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("garbage: got %v, want ErrTokenMalformed", err)
	}

	token, _, _ := auth.Tokens().Issue(id)
	admin, err := auth.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if admin.ID != id || admin.PasswordHash != "" {
		t.Errorf("unexpected admin %+v", admin)
	}

	ghost, _, _ := auth.Tokens().Issue("deleted-admin")
	if _, err := auth.Authenticate(ctx, ghost); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("vanished identity: got %v, want ErrIdentityNotFound", err)
	}

	expired := NewTokenManager(testSecret, time.Hour).WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	})
	old, _, _ := expired.Issue(id)
	if _, err := auth.Authenticate(ctx, old); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expired: got %v, want ErrTokenExpired", err)
	}
}

func ptr(s string) *string { return &s }

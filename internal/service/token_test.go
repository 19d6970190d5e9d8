package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt"

// fixedClock returns a settable clock starting on a whole second.
func fixedClock() (*time.Time, func() time.Time) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &now, func() time.Time { return now }
}

func TestTokenRoundTrip(t *testing.T) {
	_, clock := fixedClock()
	m := NewTokenManager(testSecret, 0).WithClock(clock)

	token, issued, err := m.Issue("admin-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.ExpiresAt.Sub(issued.IssuedAt) != DefaultTokenTTL {
		t.Errorf("lifetime = %v, want %v", issued.ExpiresAt.Sub(issued.IssuedAt), DefaultTokenTTL)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.AdminID != "admin-1" {
		t.Errorf("AdminID = %q, want admin-1", claims.AdminID)
	}
	if !claims.ExpiresAt.Equal(issued.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, issued.ExpiresAt)
	}
}

func TestTokenExpiryBoundary(t *testing.T) {
	now, clock := fixedClock()
	m := NewTokenManager(testSecret, 0).WithClock(clock)

	token, issued, err := m.Issue("admin-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	*now = issued.ExpiresAt.Add(-time.Millisecond)
	if _, err := m.Verify(token); err != nil {
		t.Errorf("1ms before expiry: got %v, want nil", err)
	}

	*now = issued.ExpiresAt
	if _, err := m.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("at expiry: got %v, want ErrTokenExpired", err)
	}

	*now = issued.ExpiresAt.Add(time.Millisecond)
	if _, err := m.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("1ms after expiry: got %v, want ErrTokenExpired", err)
	}
}

func TestTokenRejections(t *testing.T) {
	_, clock := fixedClock()
	m := NewTokenManager(testSecret, time.Hour).WithClock(clock)
	now := clock()

	sign := func(method jwt.SigningMethod, key interface{}, claims jwt.RegisteredClaims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	valid := jwt.RegisteredClaims{
		Subject:   "admin-1",
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	noSubject := valid
	noSubject.Subject = ""
	noExpiry := valid
	noExpiry.ExpiresAt = nil
	otherIssuer := valid
	otherIssuer.Issuer = "someone-else"

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-token", ErrTokenMalformed},
		{"bad segments", "a.b.c", ErrTokenMalformed},
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("other-secret"), valid), ErrTokenInvalid},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, []byte(testSecret), valid), ErrTokenInvalid},
		{"alg none", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid), ErrTokenInvalid},
		{"wrong issuer", sign(jwt.SigningMethodHS256, []byte(testSecret), otherIssuer), ErrTokenInvalid},
		{"missing expiry", sign(jwt.SigningMethodHS256, []byte(testSecret), noExpiry), ErrTokenInvalid},
		{"missing subject", sign(jwt.SigningMethodHS256, []byte(testSecret), noSubject), ErrTokenMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

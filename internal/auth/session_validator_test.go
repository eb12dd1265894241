package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSessionSigningSecret = "secret"
	testSessionCookieName    = "year_session"
	testSessionUserID        = "user-123"
)

func signSessionToken(t *testing.T, secret string, claims SessionClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func newTestSessionValidator(t *testing.T, clockNow time.Time) *SessionValidator {
	t.Helper()
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		CookieName:    testSessionCookieName,
		Clock: func() time.Time {
			return clockNow
		},
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return validator
}

func TestSessionValidatorValidateToken(t *testing.T) {
	clockNow := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestSessionValidator(t, clockNow)

	validClaims := func() SessionClaims {
		return SessionClaims{
			UserID: testSessionUserID,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    DefaultSessionIssuer,
				Subject:   testSessionUserID,
				IssuedAt:  jwt.NewNumericDate(clockNow.Add(-time.Minute)),
				ExpiresAt: jwt.NewNumericDate(clockNow.Add(time.Hour)),
			},
		}
	}

	testCases := []struct {
		name        string
		token       func() string
		expectedErr error
	}{
		{
			name:  "valid",
			token: func() string { return signSessionToken(t, testSessionSigningSecret, validClaims()) },
		},
		{
			name: "expired",
			token: func() string {
				claims := validClaims()
				claims.ExpiresAt = jwt.NewNumericDate(clockNow.Add(-time.Hour))
				return signSessionToken(t, testSessionSigningSecret, claims)
			},
			expectedErr: ErrExpiredSessionToken,
		},
		{
			name: "expired within clock leeway",
			token: func() string {
				claims := validClaims()
				claims.ExpiresAt = jwt.NewNumericDate(clockNow.Add(-10 * time.Second))
				return signSessionToken(t, testSessionSigningSecret, claims)
			},
		},
		{
			name: "no expiry",
			token: func() string {
				claims := validClaims()
				claims.ExpiresAt = nil
				return signSessionToken(t, testSessionSigningSecret, claims)
			},
			expectedErr: ErrInvalidSessionToken,
		},
		{
			name: "user id claim without subject",
			token: func() string {
				claims := validClaims()
				claims.Subject = ""
				return signSessionToken(t, testSessionSigningSecret, claims)
			},
		},
		{
			name: "wrong issuer",
			token: func() string {
				claims := validClaims()
				claims.Issuer = "someone-else"
				return signSessionToken(t, testSessionSigningSecret, claims)
			},
			expectedErr: ErrInvalidSessionToken,
		},
		{
			name:        "wrong secret",
			token:       func() string { return signSessionToken(t, "other", validClaims()) },
			expectedErr: ErrInvalidSessionToken,
		},
		{
			name: "no subject",
			token: func() string {
				claims := validClaims()
				claims.Subject = ""
				claims.UserID = ""
				return signSessionToken(t, testSessionSigningSecret, claims)
			},
			expectedErr: ErrMissingSessionSubject,
		},
		{
			name:        "empty",
			token:       func() string { return "  " },
			expectedErr: ErrMissingSessionToken,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			session, err := validator.ValidateToken(testCase.token())
			if testCase.expectedErr != nil {
				if !errors.Is(err, testCase.expectedErr) {
					t.Fatalf("expected %v, got %v", testCase.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected validation failure: %v", err)
			}
			if session.UserID != testSessionUserID {
				t.Fatalf("unexpected user id: %s", session.UserID)
			}
		})
	}
}

func TestSessionValidatorValidateRequestUsesCookie(t *testing.T) {
	clockNow := time.Now()
	validator := newTestSessionValidator(t, clockNow)
	signed := signSessionToken(t, testSessionSigningSecret, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultSessionIssuer,
			Subject:   testSessionUserID,
			ExpiresAt: jwt.NewNumericDate(clockNow.Add(time.Hour)),
		},
	})

	request := httptest.NewRequest(http.MethodGet, "/sync/status", http.NoBody)
	if _, err := validator.ValidateRequest(request); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected missing token without cookie, got %v", err)
	}

	request.AddCookie(&http.Cookie{Name: testSessionCookieName, Value: signed})
	session, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if session.UserID != testSessionUserID {
		t.Fatalf("expected subject to fill user id, got %s", session.UserID)
	}
	if !session.ExpiresAt.Equal(clockNow.Add(time.Hour).Truncate(time.Second)) {
		t.Fatalf("expected expiry from the cookie, got %s", session.ExpiresAt)
	}
}

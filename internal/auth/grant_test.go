package auth

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

var _ oauth2.TokenSource = (*GrantStore)(nil)

func TestGrantStorePermission(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewGrantStore(GrantStoreConfig{Clock: func() time.Time { return now }})

	if store.HasRemoteStoragePermission() {
		t.Fatalf("expected no permission before a grant")
	}

	testCases := []struct {
		name     string
		grant    Grant
		expected bool
	}{
		{
			name:     "scope granted",
			grant:    Grant{AccessToken: "a", Scopes: []string{"openid " + DriveAppDataScope}, ExpiresAt: now.Add(time.Hour)},
			expected: true,
		},
		{
			name:     "scope missing",
			grant:    Grant{AccessToken: "a", Scopes: []string{"openid", "email"}, ExpiresAt: now.Add(time.Hour)},
			expected: false,
		},
		{
			name:     "expired",
			grant:    Grant{AccessToken: "a", Scopes: []string{DriveAppDataScope}, ExpiresAt: now.Add(10 * time.Second)},
			expected: false,
		},
		{
			name:     "no expiry",
			grant:    Grant{AccessToken: "a", Scopes: []string{DriveAppDataScope}},
			expected: true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if err := store.Set(testCase.grant); err != nil {
				t.Fatalf("unexpected set error: %v", err)
			}
			if store.HasRemoteStoragePermission() != testCase.expected {
				t.Fatalf("expected permission %v", testCase.expected)
			}
		})
	}
}

func TestGrantStoreTokenSource(t *testing.T) {
	store := NewGrantStore(GrantStoreConfig{})

	_, err := store.Token()
	var grantErr *GrantError
	if !errors.As(err, &grantErr) || grantErr.StatusCode() != http.StatusUnauthorized {
		t.Fatalf("expected grant error, got %v", err)
	}
	if !errors.Is(err, ErrGrantUnavailable) {
		t.Fatalf("expected ErrGrantUnavailable, got %v", err)
	}

	if err := store.Set(Grant{AccessToken: " token-1 ", Scopes: []string{DriveAppDataScope}}); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	token, err := store.Token()
	if err != nil {
		t.Fatalf("unexpected token error: %v", err)
	}
	if token.AccessToken != "token-1" || token.TokenType != "Bearer" {
		t.Fatalf("unexpected token %#v", token)
	}

	store.Revoke()
	if store.HasRemoteStoragePermission() {
		t.Fatalf("expected permission to be revoked")
	}
	if _, err := store.Token(); err == nil {
		t.Fatalf("expected error after revoke")
	}
}

func TestGrantStoreRejectsEmptyToken(t *testing.T) {
	store := NewGrantStore(GrantStoreConfig{})
	if err := store.Set(Grant{AccessToken: "  "}); !errors.Is(err, ErrMissingAccessToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

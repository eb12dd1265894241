package auth

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DriveAppDataScope grants access to the Drive application data folder.
const DriveAppDataScope = "https://www.googleapis.com/auth/drive.appdata"

// expiryLeeway treats tokens about to expire as already expired.
const expiryLeeway = 30 * time.Second

var (
	ErrMissingAccessToken = errors.New("grant store: access token required")
	ErrGrantUnavailable   = errors.New("grant store: no usable grant")
)

// GrantError reports a missing or expired grant. It maps to HTTP 401 for remote error classification.
type GrantError struct {
	err error
}

func (e *GrantError) Error() string   { return e.err.Error() }
func (e *GrantError) Unwrap() error   { return e.err }
func (e *GrantError) StatusCode() int { return http.StatusUnauthorized }

// Grant is the result of the frontend's OAuth flow, handed to the service.
type Grant struct {
	AccessToken string
	TokenType   string
	Scopes      []string
	ExpiresAt   time.Time
}

// GrantStoreConfig configures the in-memory grant holder.
type GrantStoreConfig struct {
	RequiredScope string
	Clock         func() time.Time
	Logger        *zap.Logger
}

// GrantStore holds the current remote-storage grant and serves it as an oauth2.TokenSource.
type GrantStore struct {
	mu            sync.RWMutex
	token         *oauth2.Token
	scopes        []string
	requiredScope string
	clock         func() time.Time
	logger        *zap.Logger
}

func NewGrantStore(cfg GrantStoreConfig) *GrantStore {
	requiredScope := strings.TrimSpace(cfg.RequiredScope)
	if requiredScope == "" {
		requiredScope = DriveAppDataScope
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrantStore{
		requiredScope: requiredScope,
		clock:         clock,
		logger:        logger,
	}
}

// Set replaces the current grant.
func (s *GrantStore) Set(grant Grant) error {
	accessToken := strings.TrimSpace(grant.AccessToken)
	if accessToken == "" {
		return ErrMissingAccessToken
	}
	tokenType := strings.TrimSpace(grant.TokenType)
	if tokenType == "" {
		tokenType = "Bearer"
	}
	scopes := make([]string, 0, len(grant.Scopes))
	for _, scope := range grant.Scopes {
		for _, field := range strings.Fields(scope) {
			if !slices.Contains(scopes, field) {
				scopes = append(scopes, field)
			}
		}
	}

	s.mu.Lock()
	s.token = &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   tokenType,
		Expiry:      grant.ExpiresAt,
	}
	s.scopes = scopes
	s.mu.Unlock()

	s.logger.Info("remote storage grant updated",
		zap.Strings("scopes", scopes),
		zap.Time("expires_at", grant.ExpiresAt),
	)
	return nil
}

// Revoke forgets the grant. Later remote calls fail with a GrantError.
func (s *GrantStore) Revoke() {
	s.mu.Lock()
	s.token = nil
	s.scopes = nil
	s.mu.Unlock()
	s.logger.Info("remote storage grant revoked")
}

// Token implements oauth2.TokenSource.
func (s *GrantStore) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.usableLocked() {
		return nil, &GrantError{err: ErrGrantUnavailable}
	}
	copied := *s.token
	return &copied, nil
}

// HasRemoteStoragePermission reports an unexpired grant that includes the required scope.
func (s *GrantStore) HasRemoteStoragePermission() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usableLocked() && slices.Contains(s.scopes, s.requiredScope)
}

// Scopes returns the scopes of the current grant.
func (s *GrantStore) Scopes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.scopes)
}

func (s *GrantStore) usableLocked() bool {
	if s.token == nil {
		return false
	}
	if s.token.Expiry.IsZero() {
		return true
	}
	return s.clock().Add(expiryLeeway).Before(s.token.Expiry)
}

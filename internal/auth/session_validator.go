package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionIssuer is the issuer expected when none is configured.
const DefaultSessionIssuer = "tauth"

// sessionLeeway absorbs clock drift between the machine that minted the cookie and this one.
const sessionLeeway = 30 * time.Second

var (
	ErrMissingSessionSigningKey = errors.New("session: signing secret required")
	ErrMissingSessionCookieName = errors.New("session: cookie name required")
	ErrMissingSessionToken      = errors.New("session: no cookie")
	ErrInvalidSessionToken      = errors.New("session: rejected")
	ErrExpiredSessionToken      = errors.New("session: expired")
	ErrMissingSessionSubject    = errors.New("session: no user")
)

// SessionClaims is the JWT body of the session cookie. The user id falls back to sub.
type SessionClaims struct {
	UserID    string `json:"user_id,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
	jwt.RegisteredClaims
}

// Session is the signed-in user behind one API call.
type Session struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

type SessionValidatorConfig struct {
	SigningSecret []byte
	Issuer        string
	CookieName    string
	Clock         func() time.Time
}

// SessionValidator checks the cookie on every call to the preference API.
// The frontend's identity service mints the cookie; this process only verifies it.
type SessionValidator struct {
	parser     *jwt.Parser
	secret     []byte
	cookieName string
}

func NewSessionValidator(cfg SessionValidatorConfig) (*SessionValidator, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSessionSigningKey
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingSessionCookieName
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = DefaultSessionIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(sessionLeeway),
		jwt.WithTimeFunc(clock),
	)
	return &SessionValidator{
		parser:     parser,
		secret:     append([]byte(nil), cfg.SigningSecret...),
		cookieName: cookieName,
	}, nil
}

func (v *SessionValidator) CookieName() string {
	return v.cookieName
}

// ValidateToken verifies a raw cookie value and resolves the session it names.
func (v *SessionValidator) ValidateToken(raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, ErrMissingSessionToken
	}

	var claims SessionClaims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Session{}, ErrExpiredSessionToken
	case err != nil:
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return Session{}, ErrMissingSessionSubject
	}
	session := Session{UserID: userID, Email: claims.UserEmail}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// ValidateRequest validates the session cookie carried by r.
func (v *SessionValidator) ValidateRequest(r *http.Request) (Session, error) {
	if r == nil {
		return Session{}, ErrMissingSessionToken
	}
	cookie, err := r.Cookie(v.cookieName)
	if err != nil {
		return Session{}, ErrMissingSessionToken
	}
	return v.ValidateToken(cookie.Value)
}

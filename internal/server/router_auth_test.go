package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MarcoPoloResearchLab/yearsync/internal/auth"
)

type stubSessionValidator struct {
	session auth.Session
	err     error
}

func (s stubSessionValidator) ValidateRequest(*http.Request) (auth.Session, error) {
	return s.session, s.err
}

func TestAuthorizeRequestLogLevels(t *testing.T) {
	testCases := []struct {
		name          string
		validateErr   error
		expectedLevel zapcore.Level
	}{
		{name: "expired session", validateErr: auth.ErrExpiredSessionToken, expectedLevel: zapcore.InfoLevel},
		{name: "missing cookie", validateErr: auth.ErrMissingSessionToken, expectedLevel: zapcore.InfoLevel},
		{name: "tampered session", validateErr: errors.New("signature mismatch"), expectedLevel: zapcore.WarnLevel},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			recorder := httptest.NewRecorder()
			ctx, _ := gin.CreateTestContext(recorder)
			ctx.Request = httptest.NewRequest(http.MethodGet, "/sync/status", http.NoBody)

			core, logs := observer.New(zapcore.DebugLevel)
			handler := &httpHandler{
				sessions: stubSessionValidator{err: testCase.validateErr},
				logger:   zap.New(core),
			}

			handler.authorizeRequest(ctx)

			if recorder.Code != http.StatusUnauthorized {
				t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
			}
			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("expected exactly one log entry, got %d", len(entries))
			}
			if entries[0].Level != testCase.expectedLevel {
				t.Fatalf("expected %s level, got %s", testCase.expectedLevel, entries[0].Level)
			}
			if entries[0].Message != "session validation failed" {
				t.Fatalf("unexpected log message: %q", entries[0].Message)
			}
		})
	}
}

func TestAuthorizeRequestStoresUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/sync/status", http.NoBody)

	handler := &httpHandler{
		sessions: stubSessionValidator{session: auth.Session{UserID: testUserID}},
		logger:   zap.NewNop(),
	}
	handler.authorizeRequest(ctx)

	if ctx.IsAborted() {
		t.Fatalf("expected request to continue")
	}
	if ctx.GetString(userIDContextKey) != testUserID {
		t.Fatalf("expected user id in context, got %q", ctx.GetString(userIDContextKey))
	}
}

func TestProtectedRoutesRejectMissingAndExpiredSessions(t *testing.T) {
	server := newTestServer(t)

	health := httptest.NewRecorder()
	server.handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	if health.Code != http.StatusOK {
		t.Fatalf("expected public health check, got %d", health.Code)
	}

	missing := httptest.NewRecorder()
	server.handler.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/sync/status", http.NoBody))
	if missing.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", missing.Code)
	}

	expiredRequest := httptest.NewRequest(http.MethodGet, "/sync/status", http.NoBody)
	expiredRequest.AddCookie(&http.Cookie{Name: testCookieName, Value: signTestSession(t, time.Now().Add(-time.Minute))})
	expired := httptest.NewRecorder()
	server.handler.ServeHTTP(expired, expiredRequest)
	if expired.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an expired session, got %d", expired.Code)
	}

	validRequest := httptest.NewRequest(http.MethodGet, "/sync/status", http.NoBody)
	validRequest.AddCookie(server.cookie)
	valid := httptest.NewRecorder()
	server.handler.ServeHTTP(valid, validRequest)
	if valid.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid session, got %d", valid.Code)
	}
}

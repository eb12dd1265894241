package server

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/MarcoPoloResearchLab/yearsync/internal/auth"
	"github.com/MarcoPoloResearchLab/yearsync/internal/cloudsync"
	"github.com/MarcoPoloResearchLab/yearsync/internal/database"
	"github.com/MarcoPoloResearchLab/yearsync/internal/preferences"
)

const (
	testSigningSecret = "test-signing-secret"
	testCookieName    = "year_session"
	testUserID        = "user-123"
)

type stubSyncEngine struct {
	mu                sync.Mutex
	state             cloudsync.State
	outcome           cloudsync.Outcome
	calls             []string
	permissionChanges int
}

func (s *stubSyncEngine) record(name string) cloudsync.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	if s.outcome.Status == "" {
		return cloudsync.Outcome{Status: cloudsync.OutcomeCompleted}
	}
	return s.outcome
}

func (s *stubSyncEngine) State() cloudsync.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stubSyncEngine) LoadFromCloud(context.Context) cloudsync.Outcome {
	return s.record("load")
}

func (s *stubSyncEngine) SyncNow(context.Context) cloudsync.Outcome {
	return s.record("sync_now")
}

func (s *stubSyncEngine) EnableSync(context.Context) cloudsync.Outcome {
	return s.record("enable")
}

func (s *stubSyncEngine) DisableSync(context.Context) cloudsync.Outcome {
	return s.record("disable")
}

func (s *stubSyncEngine) DeleteCloudData(context.Context) cloudsync.Outcome {
	return s.record("delete")
}

func (s *stubSyncEngine) PermissionChanged() {
	s.mu.Lock()
	s.permissionChanges++
	s.mu.Unlock()
}

func (s *stubSyncEngine) recordedCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type testServer struct {
	handler      http.Handler
	engine       *stubSyncEngine
	grants       *auth.GrantStore
	stores       *preferences.Stores
	connectivity *cloudsync.ConnectivityMonitor
	status       *StatusBroadcaster
	cookie       *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "prefs.db"), nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	stores, err := preferences.NewStores(preferences.StoresConfig{
		Database:   db,
		IDProvider: preferences.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to build stores: %v", err)
	}
	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    testCookieName,
	})
	if err != nil {
		t.Fatalf("failed to build session validator: %v", err)
	}

	server := &testServer{
		engine:       &stubSyncEngine{state: cloudsync.State{Status: cloudsync.StatusSynced, DeviceID: "device-1"}},
		grants:       auth.NewGrantStore(auth.GrantStoreConfig{}),
		stores:       stores,
		connectivity: cloudsync.NewConnectivityMonitor(true),
		status:       NewStatusBroadcaster(),
		cookie:       &http.Cookie{Name: testCookieName, Value: signTestSession(t, time.Now().Add(time.Hour))},
	}
	handler, err := NewHTTPHandler(Dependencies{
		Sessions:     validator,
		Grants:       server.grants,
		Sync:         server.engine,
		Stores:       stores,
		Connectivity: server.connectivity,
		Status:       server.status,
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	server.handler = handler
	return server
}

func signTestSession(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := auth.SessionClaims{
		UserID: testUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.DefaultSessionIssuer,
			Subject:   testUserID,
			IssuedAt:  jwt.NewNumericDate(expiresAt.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign session: %v", err)
	}
	return signed
}

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err != errMissingSessionValidator {
		t.Fatalf("expected missing session validator error, got %v", err)
	}
}

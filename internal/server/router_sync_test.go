package server

import (
	"net/http"
	"slices"
	"testing"

	"github.com/MarcoPoloResearchLab/yearsync/internal/auth"
	"github.com/MarcoPoloResearchLab/yearsync/internal/cloudsync"
)

func TestSyncActionEndpointsDelegateToEngine(t *testing.T) {
	server := newTestServer(t)

	requests := []struct {
		method string
		path   string
	}{
		{method: http.MethodPost, path: "/sync/enable"},
		{method: http.MethodPost, path: "/sync/disable"},
		{method: http.MethodPost, path: "/sync/load"},
		{method: http.MethodPost, path: "/sync/retry"},
		{method: http.MethodDelete, path: "/sync/cloud-data"},
	}
	for _, request := range requests {
		recorder := server.do(t, request.method, request.path, "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("%s %s: expected 200, got %d", request.method, request.path, recorder.Code)
		}
		response := decodeBody[outcomeResponsePayload](t, recorder)
		if response.Outcome.Status != cloudsync.OutcomeCompleted || response.State.DeviceID != "device-1" {
			t.Fatalf("%s %s: unexpected response %#v", request.method, request.path, response)
		}
	}

	expected := []string{"enable", "disable", "load", "sync_now", "delete"}
	if calls := server.engine.recordedCalls(); !slices.Equal(calls, expected) {
		t.Fatalf("expected calls %v, got %v", expected, calls)
	}
}

func TestFailedOutcomeMapsToStatusCode(t *testing.T) {
	server := newTestServer(t)
	server.engine.outcome = cloudsync.Outcome{
		Status: cloudsync.OutcomeFailed,
		Reason: cloudsync.ReasonOffline,
		Code:   "cloudsync.delete_cloud_data.offline",
		Error:  "cannot reach cloud storage while offline",
	}

	recorder := server.do(t, http.MethodDelete, "/sync/cloud-data", "")
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", recorder.Code)
	}
	response := decodeBody[outcomeResponsePayload](t, recorder)
	if response.Outcome.Error == "" {
		t.Fatalf("expected the failure message to reach the caller")
	}
}

func TestOutcomeStatusCode(t *testing.T) {
	testCases := []struct {
		outcome  cloudsync.Outcome
		expected int
	}{
		{outcome: cloudsync.Outcome{Status: cloudsync.OutcomeCompleted}, expected: http.StatusOK},
		{outcome: cloudsync.Outcome{Status: cloudsync.OutcomeSkipped, Reason: cloudsync.ReasonOffline}, expected: http.StatusOK},
		{outcome: cloudsync.Outcome{Status: cloudsync.OutcomeFailed, Reason: cloudsync.ReasonNeedsConsent}, expected: http.StatusForbidden},
		{outcome: cloudsync.Outcome{Status: cloudsync.OutcomeFailed, Reason: cloudsync.ReasonBusy}, expected: http.StatusConflict},
		{outcome: cloudsync.Outcome{Status: cloudsync.OutcomeFailed, Reason: cloudsync.ReasonRemoteError}, expected: http.StatusBadGateway},
		{outcome: cloudsync.Outcome{Status: cloudsync.OutcomeFailed, Reason: cloudsync.ReasonLocalError}, expected: http.StatusInternalServerError},
	}
	for _, testCase := range testCases {
		if actual := outcomeStatusCode(testCase.outcome); actual != testCase.expected {
			t.Fatalf("%#v: expected %d, got %d", testCase.outcome, testCase.expected, actual)
		}
	}
}

func TestGrantEndpointsUpdatePermission(t *testing.T) {
	server := newTestServer(t)

	rejected := server.do(t, http.MethodPost, "/auth/grant", `{"access_token":"  "}`)
	if rejected.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty token, got %d", rejected.Code)
	}

	granted := server.do(t, http.MethodPost, "/auth/grant",
		`{"access_token":"ya29.token","token_type":"Bearer","scope":"openid `+auth.DriveAppDataScope+`","expires_in":3600}`)
	if granted.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", granted.Code, granted.Body.String())
	}
	response := decodeBody[grantResponsePayload](t, granted)
	if !response.HasRemoteStoragePermission || len(response.Scopes) != 2 {
		t.Fatalf("unexpected grant response %#v", response)
	}
	if !server.grants.HasRemoteStoragePermission() {
		t.Fatalf("expected grant store to hold the permission")
	}

	revoked := server.do(t, http.MethodDelete, "/auth/grant", "")
	if revoked.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", revoked.Code)
	}
	if server.grants.HasRemoteStoragePermission() {
		t.Fatalf("expected revoke to drop the permission")
	}

	server.engine.mu.Lock()
	changes := server.engine.permissionChanges
	server.engine.mu.Unlock()
	if changes != 2 {
		t.Fatalf("expected the engine to hear about both changes, got %d", changes)
	}
}

func TestConnectivityEndpointDrivesMonitor(t *testing.T) {
	server := newTestServer(t)

	if invalid := server.do(t, http.MethodPost, "/connectivity", `{}`); invalid.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without an online flag, got %d", invalid.Code)
	}
	if offline := server.do(t, http.MethodPost, "/connectivity", `{"online":false}`); offline.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", offline.Code)
	}
	if server.connectivity.Online() {
		t.Fatalf("expected monitor to be offline")
	}
	server.do(t, http.MethodPost, "/connectivity", `{"online":true}`)
	if !server.connectivity.Online() {
		t.Fatalf("expected monitor to be online again")
	}
}

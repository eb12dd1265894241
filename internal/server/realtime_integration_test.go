package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/yearsync/internal/cloudsync"
)

func TestStatusStreamEmitsSnapshotThenTransitions(t *testing.T) {
	server := newTestServer(t)
	httpServer := httptest.NewServer(server.handler)
	t.Cleanup(httpServer.Close)

	streamRequest, err := http.NewRequest(http.MethodGet, httpServer.URL+"/sync/events", http.NoBody)
	if err != nil {
		t.Fatalf("failed to construct stream request: %v", err)
	}
	streamRequest.AddCookie(server.cookie)
	streamResp, err := http.DefaultClient.Do(streamRequest)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() {
		_ = streamResp.Body.Close()
	})
	if streamResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status: %d", streamResp.StatusCode)
	}
	if contentType := streamResp.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "text/event-stream") {
		t.Fatalf("unexpected content type %q", contentType)
	}

	events := make(chan cloudsync.State, 4)
	go func() {
		reader := bufio.NewReader(streamResp.Body)
		currentEventType := ""
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				close(events)
				return
			}
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "event:"):
				currentEventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:") && currentEventType == StatusEventName:
				var state cloudsync.State
				if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &state); err == nil {
					events <- state
				}
			}
		}
	}()

	nextState := func() cloudsync.State {
		t.Helper()
		select {
		case state, ok := <-events:
			if !ok {
				t.Fatal("stream closed unexpectedly")
			}
			return state
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for status event")
		}
		return cloudsync.State{}
	}

	if initial := nextState(); initial.Status != cloudsync.StatusSynced || initial.DeviceID != "device-1" {
		t.Fatalf("unexpected initial snapshot %#v", initial)
	}

	server.status.Publish(cloudsync.State{Status: cloudsync.StatusError, LastError: "quota exceeded"})
	if transition := nextState(); transition.Status != cloudsync.StatusError || transition.LastError != "quota exceeded" {
		t.Fatalf("unexpected transition %#v", transition)
	}
}

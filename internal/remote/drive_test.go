package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/oauth2"

	"github.com/MarcoPoloResearchLab/yearsync/internal/preferences"
	"github.com/MarcoPoloResearchLab/yearsync/internal/syncdoc"
)

type fakeDrive struct {
	mu            sync.Mutex
	files         map[string][]byte
	names         map[string]string
	nextID        int
	authorization []string
	writes        int
	failNext      []int
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{files: map[string][]byte{}, names: map[string]string{}}
}

func (d *fakeDrive) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("spaces") != "appDataFolder" {
			t.Errorf("expected appDataFolder space, got %q", r.URL.Query().Get("spaces"))
		}
		query := r.URL.Query().Get("q")
		listing := driveFileList{Files: []driveFile{}}
		for id, name := range d.names {
			if strings.Contains(query, fmt.Sprintf("name = '%s'", name)) {
				listing.Files = append(listing.Files, driveFile{ID: id, Name: name})
			}
		}
		_ = json.NewEncoder(w).Encode(listing)
	})
	mux.HandleFunc("GET /drive/v3/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		payload, ok := d.files[r.PathValue("id")]
		if !ok {
			writeDriveError(w, http.StatusNotFound, "File not found")
			return
		}
		_, _ = w.Write(payload)
	})
	mux.HandleFunc("POST /upload/drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("uploadType") != "multipart" {
			t.Errorf("expected multipart upload")
		}
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/related" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
			return
		}
		reader := multipart.NewReader(r.Body, params["boundary"])
		metadataPart, err := reader.NextPart()
		if err != nil {
			t.Errorf("missing metadata part: %v", err)
			return
		}
		var metadata driveFileMetadata
		if err := json.NewDecoder(metadataPart).Decode(&metadata); err != nil {
			t.Errorf("bad metadata: %v", err)
			return
		}
		mediaPart, err := reader.NextPart()
		if err != nil {
			t.Errorf("missing media part: %v", err)
			return
		}
		media, _ := io.ReadAll(mediaPart)

		d.nextID++
		id := fmt.Sprintf("file-%d", d.nextID)
		d.files[id] = media
		d.names[id] = metadata.Name
		d.writes++
		_ = json.NewEncoder(w).Encode(driveFile{ID: id})
	})
	mux.HandleFunc("PATCH /upload/drive/v3/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, ok := d.files[id]; !ok {
			writeDriveError(w, http.StatusNotFound, "File not found")
			return
		}
		media, _ := io.ReadAll(r.Body)
		d.files[id] = media
		d.writes++
		_ = json.NewEncoder(w).Encode(driveFile{ID: id})
	})
	mux.HandleFunc("DELETE /drive/v3/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, ok := d.files[id]; !ok {
			writeDriveError(w, http.StatusNotFound, "File not found")
			return
		}
		delete(d.files, id)
		delete(d.names, id)
		w.WriteHeader(http.StatusNoContent)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.authorization = append(d.authorization, r.Header.Get("Authorization"))
		if len(d.failNext) > 0 {
			status := d.failNext[0]
			d.failNext = d.failNext[1:]
			writeDriveError(w, status, http.StatusText(status))
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func writeDriveError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": message}})
}

func newTestDriveClient(t *testing.T, drive *fakeDrive) *DriveClient {
	t.Helper()
	server := httptest.NewServer(drive.handler(t))
	t.Cleanup(server.Close)
	client, err := NewDriveClient(DriveConfig{
		TokenSource:  oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token-123", TokenType: "Bearer"}),
		BaseURL:      server.URL,
		DocumentName: "config.json",
		Retry:        fastRetryConfig(3),
	})
	if err != nil {
		t.Fatalf("failed to build drive client: %v", err)
	}
	return client
}

func sampleDocument(updatedAt int64) syncdoc.DocumentV2 {
	return syncdoc.DocumentV2{
		Version:           syncdoc.VersionCurrent,
		UpdatedAt:         updatedAt,
		DeviceID:          "device-1",
		Filters:           []preferences.Filter{{ID: "f1", Pattern: "lunch", CreatedAt: 1}},
		DisabledCalendars: []string{"cal-1"},
		Categories:        preferences.DefaultCategories(1),
	}
}

func TestDriveClientLifecycle(t *testing.T) {
	drive := newFakeDrive()
	client := newTestDriveClient(t, drive)
	ctx := context.Background()

	if _, found, err := client.Find(ctx); err != nil || found {
		t.Fatalf("expected no document, got found=%v err=%v", found, err)
	}

	fileID, err := client.Write(ctx, "", sampleDocument(100))
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	foundID, found, err := client.Find(ctx)
	if err != nil || !found || foundID != fileID {
		t.Fatalf("expected to find %s, got %s found=%v err=%v", fileID, foundID, found, err)
	}

	replacedID, err := client.Write(ctx, fileID, sampleDocument(200))
	if err != nil || replacedID != fileID {
		t.Fatalf("unexpected replace result %s, %v", replacedID, err)
	}

	doc, err := client.Read(ctx, fileID)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	current, ok := doc.(syncdoc.DocumentV2)
	if !ok || current.UpdatedAt != 200 || len(current.Filters) != 1 {
		t.Fatalf("unexpected document %#v", doc)
	}

	if err := client.Delete(ctx, fileID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if err := client.Delete(ctx, fileID); err != nil {
		t.Fatalf("deleting an absent document must succeed, got %v", err)
	}
	if drive.writes != 2 {
		t.Fatalf("expected two writes, got %d", drive.writes)
	}
	for _, header := range drive.authorization {
		if header != "Bearer token-123" {
			t.Fatalf("expected bearer token on every request, got %q", header)
		}
	}
}

func TestDriveClientRetriesServerErrors(t *testing.T) {
	drive := newFakeDrive()
	drive.failNext = []int{http.StatusServiceUnavailable, http.StatusTooManyRequests}
	client := newTestDriveClient(t, drive)

	if _, _, err := client.Find(context.Background()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(drive.authorization) != 3 {
		t.Fatalf("expected three requests, got %d", len(drive.authorization))
	}
}

func TestDriveClientDoesNotRetryForbidden(t *testing.T) {
	drive := newFakeDrive()
	drive.failNext = []int{http.StatusForbidden}
	client := newTestDriveClient(t, drive)

	_, _, err := client.Find(context.Background())
	if StatusOf(err) != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
	var remoteErr *Error
	if !errors.As(err, &remoteErr) || remoteErr.Message != "Forbidden" {
		t.Fatalf("expected provider message, got %v", err)
	}
	if len(drive.authorization) != 1 {
		t.Fatalf("expected one request, got %d", len(drive.authorization))
	}
}

func TestDriveClientReadRejectsCorruptDocument(t *testing.T) {
	drive := newFakeDrive()
	drive.files["broken"] = []byte(`{"version":7}`)
	client := newTestDriveClient(t, drive)

	_, err := client.Read(context.Background(), "broken")
	if StatusOf(err) != CodeInvalidDocument {
		t.Fatalf("expected invalid document code, got %v", err)
	}
	if IsRetryable(err) {
		t.Fatalf("corrupt documents must not be retried")
	}
}

func TestNewDriveClientRequiresCredentials(t *testing.T) {
	if _, err := NewDriveClient(DriveConfig{}); err == nil {
		t.Fatalf("expected error without token source")
	}
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNewClient(t *testing.T) {
	t.Run("creates client with api base URL", func(t *testing.T) {
		client := NewClient("http://localhost:8080/", "test-token")
		if client.BaseURL != "http://localhost:8080/api" {
			t.Errorf("expected BaseURL 'http://localhost:8080/api', got %s", client.BaseURL)
		}
		if client.Token != "test-token" {
			t.Errorf("expected Token 'test-token', got %s", client.Token)
		}
	})

	t.Run("removes trailing slashes", func(t *testing.T) {
		client := NewClient("http://example.com///", "")
		if client.BaseURL != "http://example.com/api" {
			t.Errorf("expected BaseURL 'http://example.com/api', got %s", client.BaseURL)
		}
	})

	t.Run("sets a timeout", func(t *testing.T) {
		client := NewClient("http://localhost:8080", "")
		if client.HTTPClient == nil || client.HTTPClient.Timeout == 0 {
			t.Error("expected HTTPClient with a timeout")
		}
	})
}

func TestAPIError(t *testing.T) {
	withCode := &APIError{Status: 409, Code: "TERMINAL_STATE_VIOLATION", Message: "appointment is already completed"}
	if got := withCode.Error(); got != "api: 409 TERMINAL_STATE_VIOLATION: appointment is already completed" {
		t.Errorf("unexpected message %q", got)
	}

	plain := &APIError{Status: 404, Message: "not found"}
	if got := plain.Error(); got != "api: 404: not found" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestClient_Get(t *testing.T) {
	t.Run("sends auth headers and query", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("expected GET, got %s", r.Method)
			}
			if r.URL.Path != "/api/appointments" {
				t.Errorf("expected path /api/appointments, got %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer test-token" {
				t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
			}
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("expected Accept application/json, got %q", r.Header.Get("Accept"))
			}
			if r.URL.Query().Get("status") != "pending" {
				t.Errorf("expected status=pending, got %q", r.URL.Query().Get("status"))
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"data":    []map[string]string{{"id": "a1", "status": "PENDING"}},
			})
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-token")
		var resp Response[[]Appointment]
		if err := client.Get("/appointments", map[string][]string{"status": {"pending"}}, &resp); err != nil {
			t.Fatalf("Get() returned error: %v", err)
		}
		if !resp.Success || len(resp.Data) != 1 || resp.Data[0].ID != "a1" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("omits authorization without token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				t.Errorf("expected no Authorization header, got %q", r.Header.Get("Authorization"))
			}
			_, _ = w.Write([]byte(`{"success":true,"data":{"version":"1.0.0","apiVersion":"v1"}}`))
		}))
		defer server.Close()

		var resp Response[VersionInfo]
		if err := NewClient(server.URL, "").Get("/version", nil, &resp); err != nil {
			t.Fatalf("Get() returned error: %v", err)
		}
		if resp.Data.APIVersion != "v1" {
			t.Errorf("expected apiVersion v1, got %q", resp.Data.APIVersion)
		}
	})

	t.Run("decodes error envelope", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"success":false,"error":"user is not assigned to this project","code":"USER_NOT_ASSIGNED","field":"projectId"}`))
		}))
		defer server.Close()

		err := NewClient(server.URL, "t").Get("/projects/for-selection", nil, nil)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %v", err)
		}
		if apiErr.Status != http.StatusForbidden || apiErr.Code != "USER_NOT_ASSIGNED" || apiErr.Field != "projectId" {
			t.Errorf("unexpected error: %+v", apiErr)
		}
	})

	t.Run("falls back to raw body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream unavailable\n"))
		}))
		defer server.Close()

		err := NewClient(server.URL, "").Get("/health", nil, nil)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %v", err)
		}
		if apiErr.Message != "upstream unavailable" {
			t.Errorf("expected trimmed body, got %q", apiErr.Message)
		}
	})
}

func TestClient_Patch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["status"] != "confirmed" {
			t.Errorf("expected status confirmed, got %q", body["status"])
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"a1","status":"CONFIRMED"}}`))
	}))
	defer server.Close()

	var resp Response[Appointment]
	if err := NewClient(server.URL, "t").Patch("/appointments/admin/a1/status", map[string]string{"status": "confirmed"}, &resp); err != nil {
		t.Fatalf("Patch() returned error: %v", err)
	}
	if resp.Data.Status != "CONFIRMED" {
		t.Errorf("expected CONFIRMED, got %q", resp.Data.Status)
	}
}

func TestClient_PostMultipart(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "site.JPG")
	invite := filepath.Join(dir, "invite.pdf")
	if err := os.WriteFile(photo, []byte("jpeg-bytes"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(invite, []byte("%PDF-1.4"), 0600); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("visitReason"); got != "workshop" {
			t.Errorf("expected visitReason workshop, got %q", got)
		}
		if got := r.FormValue("workshopDetail"); got != "soil" {
			t.Errorf("expected workshopDetail soil, got %q", got)
		}

		checkFile := func(field, name, contentType, content string) {
			headers := r.MultipartForm.File[field]
			if len(headers) != 1 {
				t.Fatalf("expected one file for %s, got %d", field, len(headers))
			}
			h := headers[0]
			if h.Filename != name {
				t.Errorf("%s: expected filename %s, got %s", field, name, h.Filename)
			}
			if h.Header.Get("Content-Type") != contentType {
				t.Errorf("%s: expected content type %s, got %s", field, contentType, h.Header.Get("Content-Type"))
			}
			f, err := h.Open()
			if err != nil {
				t.Fatalf("open %s: %v", field, err)
			}
			defer f.Close()
			data, _ := io.ReadAll(f)
			if string(data) != content {
				t.Errorf("%s: expected content %q, got %q", field, content, data)
			}
		}
		checkFile("sitePhotoTemporary", "site.JPG", "image/jpeg", "jpeg-bytes")
		checkFile("ownerInvitationTemporary", "invite.pdf", "application/pdf", "%PDF-1.4")

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"a9","status":"PENDING"}}`))
	}))
	defer server.Close()

	var resp Response[Appointment]
	err := NewClient(server.URL, "t").PostMultipart("/appointments",
		map[string]string{"visitReason": "workshop", "workshopDetail": "soil"},
		[]FormFile{
			{Field: "sitePhotoTemporary", Path: photo},
			{Field: "ownerInvitationTemporary", Path: invite},
		}, &resp)
	if err != nil {
		t.Fatalf("PostMultipart() returned error: %v", err)
	}
	if resp.Data.ID != "a9" {
		t.Errorf("expected id a9, got %q", resp.Data.ID)
	}
}

func TestClient_PostMultipartMissingFile(t *testing.T) {
	err := NewClient("http://127.0.0.1:1", "").PostMultipart("/appointments", nil,
		[]FormFile{{Field: "files", Path: filepath.Join(t.TempDir(), "missing.pdf")}}, nil)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"plan.pdf":   "application/pdf",
		"photo.PNG":  "image/png",
		"photo.jpeg": "image/jpeg",
		"notes.txt":  "application/octet-stream",
	}
	for path, want := range tests {
		if got := contentTypeFor(path); got != want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", path, got, want)
		}
	}
}

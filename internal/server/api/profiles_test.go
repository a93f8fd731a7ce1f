package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/formrep/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "formrep-api-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func createProfile(t *testing.T, s *store.Store, id, name string) *store.Profile {
	t.Helper()
	p := &store.Profile{
		ID:            id,
		Name:          name,
		ElbowDownMax:  90,
		ElbowUpMin:    160,
		HipTolerance:  15,
		Side:          "left",
		MinConfidence: 0.3,
	}
	if err := s.Profiles().Create(p); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	return p
}

func doRequest(h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type fakeActivator struct {
	used []string
	err  error
}

func (f *fakeActivator) UseProfile(p *store.Profile) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.used = append(f.used, p.ID)
	return "session-" + p.ID, nil
}

func TestProfileHandler_List(t *testing.T) {
	s := newTestStore(t)
	createProfile(t, s, "p-1", "strict")
	createProfile(t, s, "p-2", "easy")
	if err := s.SetActiveProfile("p-1"); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(NewProfileHandler(s, nil), http.MethodGet, "/api/profiles", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response listProfilesResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(response.Profiles))
	}
	// Listed by name.
	if response.Profiles[0].Name != "easy" || response.Profiles[1].Name != "strict" {
		t.Errorf("profiles = %s, %s", response.Profiles[0].Name, response.Profiles[1].Name)
	}
	if response.Profiles[0].Active || !response.Profiles[1].Active {
		t.Error("expected only strict to be active")
	}
}

func TestProfileHandler_Create(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
	}{
		{
			name:       "defaults",
			body:       map[string]interface{}{"name": "standard"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "custom",
			body:       map[string]interface{}{"name": "deep", "elbow_down_max": 75, "side": "right"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing name",
			body:       map[string]interface{}{"elbow_down_max": 75},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "inverted thresholds",
			body:       map[string]interface{}{"name": "bad", "elbow_down_max": 170, "elbow_up_min": 100},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown side",
			body:       map[string]interface{}{"name": "bad", "side": "middle"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "confidence above one",
			body:       map[string]interface{}{"name": "bad", "min_confidence": 2},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "duplicate name",
			body:       map[string]interface{}{"name": "existing"},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			createProfile(t, s, "p-0", "existing")

			rec := doRequest(NewProfileHandler(s, nil), http.MethodPost, "/api/profiles", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusCreated {
				var errResp errorResponse
				if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil || errResp.Error == "" {
					t.Errorf("expected error body, got %q", rec.Body.String())
				}
				return
			}

			var response profileResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.ID == "" {
				t.Error("expected generated ID")
			}
			stored, err := s.Profiles().GetByID(response.ID)
			if err != nil {
				t.Fatalf("profile not stored: %v", err)
			}
			if stored.ElbowUpMin != 160 || stored.HipTolerance != 15 {
				t.Errorf("stored defaults = %+v", stored)
			}
		})
	}
}

func TestProfileHandler_GetUpdateDelete(t *testing.T) {
	s := newTestStore(t)
	createProfile(t, s, "p-1", "strict")
	h := NewProfileHandler(s, nil)

	rec := doRequest(h, http.MethodGet, "/api/profiles/p-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET expected status %d, got %d", http.StatusOK, rec.Code)
	}

	rec = doRequest(h, http.MethodPut, "/api/profiles/p-1", map[string]interface{}{"hip_tolerance": 8})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT expected status %d, got %d", http.StatusOK, rec.Code)
	}
	stored, _ := s.Profiles().GetByID("p-1")
	if stored.HipTolerance != 8 || stored.ElbowDownMax != 90 {
		t.Errorf("after update = %+v", stored)
	}

	rec = doRequest(h, http.MethodPut, "/api/profiles/p-1", map[string]interface{}{"hip_tolerance": 200})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("PUT invalid expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = doRequest(h, http.MethodDelete, "/api/profiles/p-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec = doRequest(h, method, "/api/profiles/p-1", map[string]interface{}{})
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s after delete: expected status %d, got %d", method, http.StatusNotFound, rec.Code)
		}
	}
}

func TestProfileHandler_Activate(t *testing.T) {
	s := newTestStore(t)
	createProfile(t, s, "p-1", "strict")
	activator := &fakeActivator{}
	h := NewProfileHandler(s, activator)

	rec := doRequest(h, http.MethodPost, "/api/profiles/p-1/activate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response activateResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.SessionID != "session-p-1" || !response.Profile.Active {
		t.Errorf("response = %+v", response)
	}
	if len(activator.used) != 1 {
		t.Errorf("activator called %d times, want 1", len(activator.used))
	}

	active, err := s.ActiveProfile()
	if err != nil || active.ID != "p-1" {
		t.Errorf("ActiveProfile() = %v, %v", active, err)
	}

	if rec := doRequest(h, http.MethodPost, "/api/profiles/nope/activate", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown profile: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	if rec := doRequest(h, http.MethodGet, "/api/profiles/p-1/activate", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET activate: expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}

	activator.err = errors.New("profile rejected")
	if rec := doRequest(h, http.MethodPost, "/api/profiles/p-1/activate", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("rejected profile: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestProfileHandler_Routing(t *testing.T) {
	h := NewProfileHandler(newTestStore(t), nil)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPatch, "/api/profiles", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/profiles/p-1", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/profiles/p-1/rename", http.StatusNotFound},
		{http.MethodGet, "/api/profiles/a/b/c", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if rec := doRequest(h, tt.method, tt.path, nil); rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

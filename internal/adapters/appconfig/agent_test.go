package appconfig

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sales-collector/internal/config"
)

func TestProfileServer_FeedsLoader(t *testing.T) {
	dir := t.TempDir()
	profile := "session:\n  connect_cooldown: 45s\n"
	if err := os.WriteFile(filepath.Join(dir, "notifier.yaml"), []byte(profile), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(NewProfileServer(dir, newTestLogger()))
	defer srv.Close()

	l := NewLoader(config.AppConfigSettings{Endpoint: srv.URL, Profile: "notifier"}, config.NotifierSettings{}, newTestLogger())
	p, err := l.LoadNotifierPolicy(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Session.ConnectCooldown.ToDuration(); got != 45*time.Second {
		t.Errorf("cooldown mismatch: got %s, want 45s", got)
	}
}

func TestProfileServer_Rejections(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("dispatch:\n  max_attempts: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := NewProfileServer(dir, newTestLogger())

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"missing", http.MethodGet, "/notifier.yaml", http.StatusNotFound},
		{"traversal", http.MethodGet, "/..%2Fsecret.yaml", http.StatusBadRequest},
		{"not yaml", http.MethodGet, "/notifier.json", http.StatusNotFound},
		{"invalid profile", http.MethodGet, "/broken.yaml", http.StatusUnprocessableEntity},
		{"wrong method", http.MethodPost, "/notifier.yaml", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status mismatch: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

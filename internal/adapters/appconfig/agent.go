package appconfig

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sales-collector/internal/config"
)

// ProfileServer serves notifier profiles from a directory the way the
// AppConfig agent does, at "/<profile>.yaml". Profiles are validated before
// they are served.
type ProfileServer struct {
	dir    string
	logger *slog.Logger
}

// NewProfileServer creates a ProfileServer over dir.
func NewProfileServer(dir string, logger *slog.Logger) *ProfileServer {
	return &ProfileServer{dir: dir, logger: logger}
}

func (s *ProfileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.URL.Path == "/health" {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
		return
	}

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" || strings.Contains(name, "..") || strings.ContainsRune(name, '/') {
		s.logger.Warn("invalid profile name", "path", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if ext := filepath.Ext(name); ext != ".yaml" && ext != ".yml" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("profile not found", "profile", name)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.logger.Error("failed to read profile", "profile", name, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if _, err := config.ParseNotifierPolicy(data); err != nil {
		s.logger.Error("refusing to serve invalid profile", "profile", name, "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.Write(data)

	s.logger.Info("profile served",
		"profile", name,
		"size", len(data),
		"duration", time.Since(start),
	)
}

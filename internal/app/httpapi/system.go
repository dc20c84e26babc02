package httpapi

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/R3E-Network/recordstore/internal/errors"
	internalhttputil "github.com/R3E-Network/recordstore/internal/httputil"
)

type healthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks,omitempty"`
	Services []string          `json:"services,omitempty"`
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Services: h.app.Services()}
	status := http.StatusOK

	if len(h.health) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		// Checks run concurrently; each records its own outcome.
		var (
			mu sync.Mutex
			g  errgroup.Group
		)
		resp.Checks = make(map[string]string, len(h.health))
		for name, check := range h.health {
			name, check := name, check
			g.Go(func() error {
				result := "ok"
				if err := check(ctx); err != nil {
					result = err.Error()
				}
				mu.Lock()
				resp.Checks[name] = result
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		for _, result := range resp.Checks {
			if result != "ok" {
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
	}
	internalhttputil.WriteJSON(w, status, resp)
}

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := internalhttputil.QueryInt(r, "limit", 100)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.audit.List(r.Context(), limit)
	if err != nil {
		h.fail(w, r, errors.Internal("read audit log", err))
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, entries)
}

// serveUpload serves a stored image by its generated name. Directory paths
// and names with separators never reach the filesystem.
func (h *handler) serveUpload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		internalhttputil.WriteError(w, r, errors.NotFound("upload", ""))
		return
	}
	path := filepath.Join(h.uploads.Dir(), name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		internalhttputil.WriteError(w, r, errors.NotFound("upload", name))
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}

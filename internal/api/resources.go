package api

import (
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/tatool/internal/model"
	"github.com/seantiz/tatool/internal/store"
)

// handleResource serves a project resource file to a trial holding a
// valid session token. Files live under
// {projectsDir}/{access}/{project}/{type}/{name}.
func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	access := chi.URLParam(r, "access")
	reject := func(status int, outcome, message string) {
		countResource(access, outcome)
		s.writeError(w, status, message)
	}

	if chi.URLParam(r, "mode") != s.engine.Mode() {
		reject(http.StatusBadRequest, resourceRejected, "mode mismatch")
		return
	}

	segments, ok := resourceSegments(r, "access", "project", "type", "name")
	if !ok {
		reject(http.StatusBadRequest, resourceRejected, "invalid resource path")
		return
	}
	access = segments[0]

	switch access {
	case model.AccessExternal:
		reject(http.StatusNotFound, resourceNotFound, "external resources are not served")
		return
	case model.AccessInternal, model.AccessPrivate, model.AccessPublic:
	default:
		reject(http.StatusBadRequest, resourceRejected, "unknown project access")
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		reject(http.StatusUnauthorized, resourceUnauthorized, "token is required")
		return
	}
	if _, err := s.store.GetSessionByToken(r.Context(), token); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			reject(http.StatusUnauthorized, resourceUnauthorized, "invalid token")
			return
		}
		s.logger.Error("look up resource token", "error", err)
		reject(http.StatusInternalServerError, resourceError, "failed to check token")
		return
	}

	path := filepath.Join(append([]string{s.projectsDir}, segments...)...)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		reject(http.StatusNotFound, resourceNotFound, "resource not found")
		return
	}
	if err != nil {
		s.logger.Error("open resource", "path", path, "error", err)
		reject(http.StatusInternalServerError, resourceError, "failed to open resource")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.logger.Error("stat resource", "path", path, "error", err)
		reject(http.StatusInternalServerError, resourceError, "failed to open resource")
		return
	}
	if info.IsDir() {
		reject(http.StatusNotFound, resourceNotFound, "resource not found")
		return
	}

	countResource(access, resourceServed)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// resourceSegments returns the named URL params, decoded, provided each is
// a single safe path component.
func resourceSegments(r *http.Request, names ...string) ([]string, bool) {
	segments := make([]string, len(names))
	for i, name := range names {
		seg := chi.URLParam(r, name)
		// chi routes on the raw path when one is set, leaving params escaped.
		if r.URL.RawPath != "" {
			decoded, err := url.PathUnescape(seg)
			if err != nil {
				return nil, false
			}
			seg = decoded
		}
		if !safeSegment(seg) {
			return nil, false
		}
		segments[i] = seg
	}
	return segments, true
}

func safeSegment(seg string) bool {
	if seg == "" || seg == "." || seg == ".." {
		return false
	}
	return !strings.ContainsAny(seg, "/\\\x00")
}

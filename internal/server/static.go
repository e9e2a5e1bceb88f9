package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var errOutsidePrefix = errors.New("path escapes static prefix")

// handleIndex serves the index document as text/html.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(filepath.Join(s.cfg.StaticRoot, s.cfg.IndexPath))
	if err != nil {
		Debug("index_unavailable", map[string]any{"index": s.cfg.IndexPath, "error": err.Error()})
		writeText(w, http.StatusNotFound, "404 Not Found")
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// staticHandler serves files below one allow-listed prefix. The router only
// sends it paths that already start with "/"+prefix.
func (s *Server) staticHandler(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Path, "/")

		target, err := resolveStaticPath(s.cfg.StaticRoot, prefix, rel)
		if err == nil {
			err = checkStaticLinks(s.cfg.StaticRoot, prefix, target)
		}
		if err != nil {
			s.metrics.RecordStaticMiss()
			writeText(w, http.StatusNotFound, "404")
			return
		}

		info, err := os.Stat(target)
		if err != nil || info.IsDir() {
			s.metrics.RecordStaticMiss()
			writeText(w, http.StatusNotFound, "404")
			return
		}

		data, err := os.ReadFile(target)
		if err != nil {
			s.metrics.RecordStaticMiss()
			writeText(w, http.StatusNotFound, "404")
			return
		}

		s.metrics.RecordStaticServed(int64(len(data)))
		w.Header().Set("Content-Type", ContentTypeForExt(filepath.Ext(target)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// resolveStaticPath joins rel onto root and checks that the cleaned result is
// still strictly inside root/prefix, so "assets/../secret" is rejected.
func resolveStaticPath(root, prefix, rel string) (string, error) {
	base := filepath.Clean(filepath.Join(root, filepath.FromSlash(prefix)))
	target := filepath.Join(root, filepath.FromSlash(rel))

	if !strings.HasPrefix(target, base+string(filepath.Separator)) {
		return "", errOutsidePrefix
	}
	return target, nil
}

// checkStaticLinks resolves symlinks in target and requires the real path to
// stay inside the real root/prefix. A link that leaves the prefix is rejected
// the same way as "..".
func checkStaticLinks(root, prefix, target string) error {
	base, err := filepath.EvalSymlinks(filepath.Join(root, filepath.FromSlash(prefix)))
	if err != nil {
		return err
	}
	real, err := filepath.EvalSymlinks(target)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(real, base+string(filepath.Separator)) {
		return errOutsidePrefix
	}
	return nil
}

// Package server exposes a collected per-database output directory over
// read-only HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/dbmeta/internal/codec"
	"github.com/koustreak/dbmeta/internal/errs"
	"github.com/koustreak/dbmeta/internal/logger"
	"github.com/koustreak/dbmeta/internal/model"
	"github.com/koustreak/dbmeta/internal/orchestrator"
)

type Server struct {
	files  fs.FS
	codec  *codec.Codec
	log    *logger.Logger
	router *chi.Mux
}

// New serves files, typically os.DirFS of an output directory. The codec
// only needs a passphrase when the files are encrypted.
func New(files fs.FS, c *codec.Codec, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware)

	s := &Server{files: files, codec: c, log: log, router: r}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/manifest", s.handleManifest)
	s.router.Get("/databases", s.handleList)
	s.router.Get("/databases/{file}", s.handleDatabase)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled or the listener
// fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.WarnWith("server shutdown", err, nil)
		}
	}()

	s.log.With().Str("addr", addr).Logger().Info("serving collected metadata")
	err := srv.ListenAndServe()
	stop()
	<-done
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleManifest(w http.ResponseWriter, _ *http.Request) {
	m, err := s.manifest()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	m, err := s.manifest()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.Databases)
}

// handleDatabase accepts either the file stem or the database name.
func (s *Server) handleDatabase(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "file")
	m, err := s.manifest()
	if err != nil {
		s.fail(w, err)
		return
	}

	var entry *orchestrator.ManifestEntry
	for i := range m.Databases {
		if m.Databases[i].File == key || m.Databases[i].Name == key {
			entry = &m.Databases[i]
			break
		}
	}
	if entry == nil {
		s.fail(w, errs.New(errs.NotFound, "no database "+key+" in manifest"))
		return
	}

	var schema model.DatabaseSchema
	if err := s.read(entry.File+m.Extension, &schema); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// manifest is re-read on every request so a rerun into the same directory
// shows up without a restart.
func (s *Server) manifest() (*orchestrator.Manifest, error) {
	for _, ext := range codec.Extensions() {
		var m orchestrator.Manifest
		err := s.read(orchestrator.ManifestFile+ext, &m)
		if errs.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if m.Extension == "" {
			m.Extension = ext
		}
		return &m, nil
	}
	return nil, errs.New(errs.NotFound, "no manifest in output directory")
}

func (s *Server) read(name string, v any) error {
	data, err := fs.ReadFile(s.files, name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errs.Wrap(errs.NotFound, name+" not found", err)
	case errors.Is(err, fs.ErrPermission):
		return errs.Wrap(errs.Permission, "reading "+name, err)
	case err != nil:
		return errs.Wrap(errs.Other, "reading "+name, err)
	}
	return s.codec.Decode(data, v)
}

var statusByCategory = map[errs.Category]int{
	errs.NotFound:    http.StatusNotFound,
	errs.Permission:  http.StatusForbidden,
	errs.InvalidData: http.StatusUnprocessableEntity,
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status, ok := statusByCategory[errs.Classify(err)]
	if !ok {
		status = http.StatusInternalServerError
		s.log.ErrorWith("request failed", err, nil)
	}
	writeJSON(w, status, map[string]string{"error": errs.Message(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

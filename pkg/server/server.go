// Package server exposes the viewers of a slicer.App over HTTP, so that a
// browser front-end can render figures and drive slider, view and position
// inputs, and so that full-resolution tiles can be fetched remotely.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/twinj/uuid"
	"github.com/zenazn/goji/web"

	"volslicer/pkg/config"
	"volslicer/pkg/logging"
	"volslicer/pkg/slicer"
	"volslicer/pkg/visualization"
)

// RequestIDHeader carries the id used to correlate client and server logs.
const RequestIDHeader = "X-Request-Id"

// requestTimeout bounds how long a handler waits for the event loop.
const requestTimeout = 10 * time.Second

// Server routes HTTP requests to the viewers of an App.
type Server struct {
	app   *slicer.App
	tiles slicer.TileSource
	cfg   *config.Config
	mux   *web.Mux
}

// New creates a server for app. Tiles are served from tiles, typically a
// LocalSource wrapping the App.
func New(app *slicer.App, tiles slicer.TileSource) *Server {
	s := &Server{
		app:   app,
		tiles: tiles,
		cfg:   app.Config(),
		mux:   web.New(),
	}
	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	s.mux.Use(requestID)

	s.mux.Get("/api/viewers", s.viewersHandler)
	s.mux.Get("/api/viewer/:ctx/tile/:index", s.tileHandler)
	s.mux.Get("/api/viewer/:ctx/thumbnails", s.thumbnailsHandler)
	s.mux.Get("/api/viewer/:ctx/figure", s.figureHandler)
	s.mux.Post("/api/viewer/:ctx/index", s.indexHandler)
	s.mux.Post("/api/viewer/:ctx/view", s.viewHandler)
	s.mux.Post("/api/viewer/:ctx/clim", s.climHandler)
	s.mux.Post("/api/viewer/:ctx/click", s.clickHandler)
	s.mux.Get("/api/scene/:scene/state", s.stateHandler)
	s.mux.Post("/api/scene/:scene/setpos", s.setposHandler)
	s.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		BadRequest(w, r, http.StatusNotFound, "no handler for %s %s", r.Method, r.URL.Path)
	})
}

// Handler returns the routes wrapped in CORS and, if configured, gzip
// compression.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.cfg.Server.Gzip {
		h = gzhttp.GzipHandler(h)
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})
	return c.Handler(h)
}

// ListenAndServe serves on the configured address until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logging.Infof("Web server listening at %s ...\n", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// requestID tags each request with an id, reusing the client's when given,
// and logs the time taken to serve it.
func requestID(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewV4().String()
		}
		if c.Env == nil {
			c.Env = make(map[interface{}]interface{})
		}
		c.Env[RequestIDHeader] = id
		w.Header().Set(RequestIDHeader, id)

		tlog := logging.NewTimeLog()
		h.ServeHTTP(w, r)
		tlog.Debugf("HTTP %s %s [%s]", r.Method, r.URL.Path, id)
	}
	return http.HandlerFunc(fn)
}

// BadRequest writes an error message with the given status and logs it.
func BadRequest(w http.ResponseWriter, r *http.Request, status int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logging.Warningf("%s %s: %s\n", r.Method, r.URL.Path, msg)
	http.Error(w, msg, status)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var pe *slicer.ParamError
	switch {
	case errors.Is(err, slicer.ErrUnknownViewer):
		return http.StatusNotFound
	case errors.As(err, &pe),
		errors.Is(err, visualization.ErrIndexOutOfRange),
		errors.Is(err, visualization.ErrShapeMismatch),
		errors.Is(err, errBadInput):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	BadRequest(w, r, statusFor(err), "%v", err)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		BadRequest(w, r, http.StatusInternalServerError, "error encoding response: %v", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// Package dashboard serves scan results over HTTP. Every request runs a fresh
// scan; nothing is kept between requests.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/complianceguard/guard-cli/internal/checks"
	"github.com/complianceguard/guard-cli/internal/output"
	"github.com/complianceguard/guard-cli/internal/utils"
)

// ScanFunc produces a fresh report
type ScanFunc func(ctx context.Context) (*checks.ComplianceReport, error)

// Options configures NewRouter
type Options struct {
	Scan ScanFunc
	// Catalog lists the registered checks for /api/checks.
	Catalog        func() []checks.Metadata
	Logger         *utils.Logger
	AllowedOrigins []string
}

type router struct {
	scan    ScanFunc
	catalog func() []checks.Metadata
}

var contentTypes = map[output.Format]string{
	output.FormatText: "text/plain; charset=utf-8",
	output.FormatJSON: "application/json",
	output.FormatYAML: "application/yaml",
	output.FormatCSV:  "text/csv; charset=utf-8",
	output.FormatHTML: "text/html; charset=utf-8",
}

// NewRouter builds the dashboard handler
func NewRouter(opts Options) (http.Handler, error) {
	if opts.Scan == nil {
		return nil, errors.New("dashboard: scan function is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = func() []checks.Metadata { return nil }
	}
	rt := &router{scan: opts.Scan, catalog: catalog}

	mux := chi.NewRouter()
	mux.Use(requestLogger(logger))
	if len(opts.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Get("/", rt.wrap(rt.handleIndex))
	mux.Route("/api", func(api chi.Router) {
		api.Get("/report", rt.wrap(rt.handleReport))
		api.Get("/checks", rt.wrap(rt.handleChecks))
	})

	return mux, nil
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }

func (rt *router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var br badRequest
			if errors.As(err, &br) {
				http.Error(w, br.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// GET /
func (rt *router) handleIndex(w http.ResponseWriter, req *http.Request) error {
	return rt.render(w, req, output.FormatHTML)
}

// GET /api/report?format=json|yaml|csv|html|text
func (rt *router) handleReport(w http.ResponseWriter, req *http.Request) error {
	format := output.FormatJSON
	if raw := req.URL.Query().Get("format"); raw != "" {
		f, err := output.ParseFormat(raw)
		if err != nil {
			return badRequest{err}
		}
		format = f
	}
	return rt.render(w, req, format)
}

// GET /api/checks
func (rt *router) handleChecks(w http.ResponseWriter, req *http.Request) error {
	catalog := rt.catalog()
	if catalog == nil {
		catalog = []checks.Metadata{}
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(catalog)
}

func (rt *router) render(w http.ResponseWriter, req *http.Request, format output.Format) error {
	report, err := rt.scan(req.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	var buf bytes.Buffer
	if err := output.Write(&buf, report, format); err != nil {
		return err
	}
	w.Header().Set("Content-Type", contentTypes[format])
	_, err = buf.WriteTo(w)
	return err
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully
func Serve(ctx context.Context, addr string, handler http.Handler, logger *utils.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithComponent("dashboard").Infof("dashboard listening on http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("dashboard server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.WithComponent("dashboard").Info("shutting down dashboard...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

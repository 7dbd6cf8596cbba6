package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"vendorhub.org/internal/auth"
	"vendorhub.org/internal/docaccess"
	"vendorhub.org/internal/filestore"
	"vendorhub.org/internal/obs"
	"vendorhub.org/internal/supplier"
)

// ReadyProbe — readiness check (DB ping when a handle is present).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API — HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	accounts  *auth.Accounts
	sessions  *auth.Sessions
	suppliers *supplier.Service
	tokens    *docaccess.Issuer
	gate      *docaccess.Gate
	files     *filestore.Store
}

// Deps carries the wired services for New.
type Deps struct {
	Accounts  *auth.Accounts
	Sessions  *auth.Sessions
	Suppliers *supplier.Service
	Tokens    *docaccess.Issuer
	Gate      *docaccess.Gate
	Files     *filestore.Store
}

func New(rp ReadyProbe, version string, deps Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		accounts:   deps.Accounts,
		sessions:   deps.Sessions,
		suppliers:  deps.Suppliers,
		tokens:     deps.Tokens,
		gate:       deps.Gate,
		files:      deps.Files,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/me", a.handleMe)

	// supplier lifecycle
	a.mux.HandleFunc("/v1/suppliers/applications", a.handleApplications)
	a.mux.HandleFunc("/v1/suppliers/profile", a.handleProfile)
	a.mux.HandleFunc("/v1/suppliers/", a.handleSupplierResource)

	// documents
	a.mux.HandleFunc("/v1/documents/fetch", a.handleDocumentFetch)
	a.mux.HandleFunc("/v1/documents/", a.handleDocumentResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// maxRequestBytes bounds any request body; covers a full three-document
// multipart application with headroom.
const maxRequestBytes = 32 << 20

// Handler returns the full middleware-wrapped http.Handler.
func (a *API) Handler() http.Handler {
	h := a.withSession(a.mux)
	h = obs.Instrument(h)
	h = MaxBodyBytes(h, maxRequestBytes)
	h = RateLimit(h, 50, 25)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "vendorhub-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "vendorhub-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

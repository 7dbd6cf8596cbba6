package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vendorhub.org/internal/audit"
	"vendorhub.org/internal/auth"
	"vendorhub.org/internal/docaccess"
	"vendorhub.org/internal/obs"
	"vendorhub.org/internal/supplier"
)

type documentLinkResponse struct {
	Token     string        `json:"token"`
	Mode      docaccess.Mode `json:"mode"`
	URL       string        `json:"url"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// handleDocumentResource routes /v1/documents/{id}/link.
func (a *API) handleDocumentResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "link" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.issueDocumentLink(w, r, parts[0])
}

// issueDocumentLink mints a scoped access token for one document. Owners get
// a short download token, admins and reviewers a view token. The ownership
// decision happens here against current state; the token carries the result.
func (a *API) issueDocumentLink(w http.ResponseWriter, r *http.Request, documentID string) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	doc, err := a.suppliers.Document(r.Context(), documentID)
	if err != nil {
		handleSupplierError(w, r, err)
		return
	}

	var requesterProfileID string
	switch claims.Role {
	case auth.RoleRegular, auth.RoleSupplier:
		profile, _, err := a.suppliers.Profile(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, supplier.ErrNotFound) {
				writeError(w, r, http.StatusForbidden, "no supplier profile")
				return
			}
			handleSupplierError(w, r, err)
			return
		}
		requesterProfileID = profile.ID
	}

	token, expiresAt, err := a.tokens.Issue(doc, claims, requesterProfileID)
	if err != nil {
		handleDocAccessError(w, r, err)
		return
	}

	mode := docaccess.ModeDownload
	if requesterProfileID == "" {
		mode = docaccess.ModeView
	}
	_ = audit.LogEvent(r.Context(), "document.link_issued", map[string]any{
		"document_id": doc.ID,
		"mode":        string(mode),
	})
	writeJSON(w, http.StatusOK, documentLinkResponse{
		Token:     token,
		Mode:      mode,
		URL:       "/v1/documents/fetch?token=" + token,
		ExpiresAt: expiresAt,
	})
}

// handleDocumentFetch streams a document authorized solely by the scoped
// token in the query string. No session is consulted.
func (a *API) handleDocumentFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	doc, mode, err := a.gate.Resolve(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		obs.ObserveDocumentFetch("unknown", "denied")
		handleDocAccessError(w, r, err)
		return
	}

	blob, err := a.files.Open(doc.Location)
	if err != nil {
		obs.ObserveDocumentFetch(string(mode), "error")
		writeError(w, r, http.StatusNotFound, "document content unavailable")
		return
	}
	defer blob.Close()

	disposition := "inline"
	if mode == docaccess.ModeDownload {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	w.Header().Set("Content-Disposition",
		disposition+`; filename="`+sanitizeFilename(doc.FileName)+`"`)
	w.Header().Set("Cache-Control", "no-store")

	if _, err := io.Copy(w, blob); err != nil {
		obs.ObserveDocumentFetch(string(mode), "error")
		return
	}
	obs.ObserveDocumentFetch(string(mode), "success")
}

func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '\r', '\n':
			return '_'
		}
		return r
	}, name)
	if name == "" {
		name = "document"
	}
	return name
}

func handleDocAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, docaccess.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "invalid access token")
	case errors.Is(err, docaccess.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "access denied")
	case errors.Is(err, docaccess.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "document not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "document access failed")
	}
}

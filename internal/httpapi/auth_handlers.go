package httpapi

import (
	"errors"
	"net/http"
	"time"

	"vendorhub.org/internal/audit"
	"vendorhub.org/internal/auth"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type identityResponse struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Role              auth.Role `json:"role"`
	SupplierApplicant bool      `json:"supplier_applicant"`
	CreatedAt         time.Time `json:"created_at"`
}

func identityPayload(ident *auth.Identity) identityResponse {
	return identityResponse{
		ID:                ident.ID,
		Email:             ident.Email,
		Role:              ident.Role,
		SupplierApplicant: ident.SupplierApplicant,
		CreatedAt:         ident.CreatedAt,
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ident, err := a.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	token, expiresAt, err := a.sessions.Issue(ident)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "session issuance failed")
		return
	}
	a.setSessionCookie(w, token, expiresAt)

	_ = audit.LogEvent(r.Context(), "auth.registered", map[string]any{
		"identity_id": ident.ID,
	})
	writeJSON(w, http.StatusCreated, identityPayload(ident))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ident, err := a.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	token, expiresAt, err := a.sessions.Issue(ident)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "session issuance failed")
		return
	}
	a.setSessionCookie(w, token, expiresAt)

	_ = audit.LogEvent(r.Context(), "auth.logged_in", map[string]any{
		"identity_id": ident.ID,
	})
	writeJSON(w, http.StatusOK, identityPayload(ident))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

// handleMe re-fetches the identity so the response reflects role changes made
// after the session token was issued.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identityID, ok := auth.IdentityIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	ident, err := a.accounts.Identity(r.Context(), identityID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identityPayload(ident))
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "auth operation failed")
	}
}

package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"vendorhub.org/internal/audit"
	"vendorhub.org/internal/auth"
	"vendorhub.org/internal/filestore"
	"vendorhub.org/internal/supplier"
)

// multipartMemoryBytes bounds the in-memory part of multipart parsing; file
// parts beyond it spill to temp files.
const multipartMemoryBytes = 4 << 20

type profileResponse struct {
	Profile   *supplier.Profile    `json:"profile"`
	Documents []*supplier.Document `json:"documents,omitempty"`
}

func (a *API) handleApplications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		// Suppliers keep their role after a profile deletion, so they
		// must stay eligible to apply again; the store's applicant flag
		// guards against doubled applications.
		RequireRole(a.createApplication, auth.RoleRegular, auth.RoleSupplier)(w, r)
	case http.MethodGet:
		RequireRole(a.listPendingApplications, auth.RoleAdmin, auth.RoleReviewer)(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.getProfile(w, r)
	case http.MethodPut:
		RequireRole(a.updateProfile, auth.RoleSupplier)(w, r)
	case http.MethodDelete:
		a.deleteProfile(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleSupplierResource routes /v1/suppliers/{id}/approve and
// /v1/suppliers/{id}/reject.
func (a *API) handleSupplierResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/suppliers/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	profileID := parts[0]
	switch parts[1] {
	case "approve":
		RequireRole(func(w http.ResponseWriter, r *http.Request) {
			a.approveApplication(w, r, profileID)
		}, auth.RoleAdmin)(w, r)
	case "reject":
		RequireRole(func(w http.ResponseWriter, r *http.Request) {
			a.rejectApplication(w, r, profileID)
		}, auth.RoleAdmin)(w, r)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// createApplication accepts a multipart form whose "documents" parts are the
// PDF files. Files are persisted to the blob store first; if the application
// itself is rejected the blobs are removed again.
func (a *API) createApplication(w http.ResponseWriter, r *http.Request) {
	identityID, _ := auth.IdentityIDFromContext(r.Context())

	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart form is required")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	parts := r.MultipartForm.File["documents"]
	if len(parts) == 0 || len(parts) > supplier.MaxDocuments {
		writeError(w, r, http.StatusBadRequest,
			"between 1 and "+strconv.Itoa(supplier.MaxDocuments)+" documents are required")
		return
	}

	uploads := make([]supplier.Upload, 0, len(parts))
	cleanup := func() {
		for _, up := range uploads {
			_ = a.files.Remove(up.Location)
		}
	}
	for _, part := range parts {
		up, err := a.storeUpload(part)
		if err != nil {
			cleanup()
			if errors.Is(err, filestore.ErrTooLarge) {
				writeError(w, r, http.StatusBadRequest, "document exceeds size limit")
				return
			}
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		uploads = append(uploads, up)
	}

	profile, err := a.suppliers.Apply(r.Context(), identityID, uploads)
	if err != nil {
		cleanup()
		handleSupplierError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "supplier.applied", map[string]any{
		"profile_id": profile.ID,
		"documents":  len(uploads),
	})
	writeJSON(w, http.StatusCreated, profileResponse{Profile: profile})
}

func (a *API) storeUpload(part *multipart.FileHeader) (supplier.Upload, error) {
	contentType := part.Header.Get("Content-Type")
	if contentType != supplier.AcceptedContentType {
		return supplier.Upload{}, errors.New("only " + supplier.AcceptedContentType + " documents are accepted")
	}
	f, err := part.Open()
	if err != nil {
		return supplier.Upload{}, err
	}
	defer f.Close()

	location, size, err := a.files.Save(f)
	if err != nil {
		return supplier.Upload{}, err
	}
	return supplier.Upload{
		FileName:    part.Filename,
		ContentType: contentType,
		Location:    location,
		SizeBytes:   size,
	}, nil
}

func (a *API) listPendingApplications(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	profiles, err := a.suppliers.PendingApplications(r.Context(), limit)
	if err != nil {
		handleSupplierError(w, r, err)
		return
	}
	if profiles == nil {
		profiles = []*supplier.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": profiles})
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	identityID, ok := auth.IdentityIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	profile, docs, err := a.suppliers.Profile(r.Context(), identityID)
	if err != nil {
		handleSupplierError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: profile, Documents: docs})
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	identityID, _ := auth.IdentityIDFromContext(r.Context())

	var upd supplier.BusinessUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := a.suppliers.UpdateBusiness(r.Context(), identityID, upd)
	if err != nil {
		handleSupplierError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "supplier.profile_updated", map[string]any{
		"profile_id": profile.ID,
	})
	writeJSON(w, http.StatusOK, profileResponse{Profile: profile})
}

func (a *API) deleteProfile(w http.ResponseWriter, r *http.Request) {
	identityID, ok := auth.IdentityIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.suppliers.DeleteProfile(r.Context(), identityID); err != nil {
		handleSupplierError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "supplier.profile_deleted", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) approveApplication(w http.ResponseWriter, r *http.Request, profileID string) {
	profile, err := a.suppliers.Approve(r.Context(), profileID)
	if err != nil {
		handleSupplierError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "supplier.approved", map[string]any{
		"profile_id": profile.ID,
	})
	writeJSON(w, http.StatusOK, profileResponse{Profile: profile})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (a *API) rejectApplication(w http.ResponseWriter, r *http.Request, profileID string) {
	var req rejectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := a.suppliers.Reject(r.Context(), profileID, req.Reason)
	if err != nil {
		handleSupplierError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "supplier.rejected", map[string]any{
		"profile_id": profile.ID,
		"reason":     req.Reason,
	})
	writeJSON(w, http.StatusOK, profileResponse{Profile: profile})
}

func handleSupplierError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, supplier.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, supplier.ErrConflict), errors.Is(err, supplier.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, supplier.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, supplier.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "supplier operation failed")
	}
}

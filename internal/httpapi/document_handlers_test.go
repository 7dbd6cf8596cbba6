package httpapi

import (
	"io"
	"net/http"
	"testing"

	"vendorhub.org/internal/auth"
	"vendorhub.org/internal/supplier"
)

// submitApplication registers an application over HTTP and returns its
// profile plus document ids.
func submitApplication(t *testing.T, env *testEnv, cookie *http.Cookie) (*supplier.Profile, []*supplier.Document) {
	t.Helper()
	body, contentType := multipartPDFs(t, 1)
	rec := env.do(t, http.MethodPost, "/v1/suppliers/applications", nil,
		withCookie(cookie),
		func(r *http.Request) {
			r.Body = io.NopCloser(body)
			r.Header.Set("Content-Type", contentType)
		})
	if rec.Code != http.StatusCreated {
		t.Fatalf("apply = %d: %s", rec.Code, rec.Body.String())
	}
	var created profileResponse
	decodeBody(t, rec, &created)

	rec = env.do(t, http.MethodGet, "/v1/suppliers/profile", nil, withCookie(cookie))
	if rec.Code != http.StatusOK {
		t.Fatalf("profile = %d: %s", rec.Code, rec.Body.String())
	}
	var loaded profileResponse
	decodeBody(t, rec, &loaded)
	if len(loaded.Documents) == 0 {
		t.Fatal("expected at least one document")
	}
	return loaded.Profile, loaded.Documents
}

func TestDocumentLinkAndFetchAsOwner(t *testing.T) {
	env := newTestEnv(t)
	owner := env.addIdentity(t, "id-own", "own@b.com", auth.RoleRegular)
	cookie := env.sessionFor(t, owner)
	_, docs := submitApplication(t, env, cookie)

	rec := env.do(t, http.MethodGet, "/v1/documents/"+docs[0].ID+"/link", nil, withCookie(cookie))
	if rec.Code != http.StatusOK {
		t.Fatalf("link = %d: %s", rec.Code, rec.Body.String())
	}
	var link documentLinkResponse
	decodeBody(t, rec, &link)
	if link.Mode != "download" || link.Token == "" {
		t.Fatalf("link = %+v", link)
	}

	// Fetch needs no session cookie, only the token.
	rec = env.do(t, http.MethodGet, link.URL, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("fetch = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd == "" || cd[:10] != "attachment" {
		t.Fatalf("disposition = %q, want attachment", cd)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty document body")
	}
}

func TestDocumentLinkAsReviewerIsViewMode(t *testing.T) {
	env := newTestEnv(t)
	owner := env.addIdentity(t, "id-own", "own@b.com", auth.RoleRegular)
	reviewer := env.addIdentity(t, "id-rev", "rev@b.com", auth.RoleReviewer)
	_, docs := submitApplication(t, env, env.sessionFor(t, owner))

	rec := env.do(t, http.MethodGet, "/v1/documents/"+docs[0].ID+"/link", nil,
		withCookie(env.sessionFor(t, reviewer)))
	if rec.Code != http.StatusOK {
		t.Fatalf("link = %d: %s", rec.Code, rec.Body.String())
	}
	var link documentLinkResponse
	decodeBody(t, rec, &link)
	if link.Mode != "view" {
		t.Fatalf("mode = %q, want view", link.Mode)
	}

	rec = env.do(t, http.MethodGet, link.URL, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("fetch = %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); cd == "" || cd[:6] != "inline" {
		t.Fatalf("disposition = %q, want inline", cd)
	}
}

// Another applicant must not obtain a link to someone else's document.
func TestDocumentLinkDeniedForNonOwner(t *testing.T) {
	env := newTestEnv(t)
	owner := env.addIdentity(t, "id-own", "own@b.com", auth.RoleRegular)
	other := env.addIdentity(t, "id-oth", "oth@b.com", auth.RoleRegular)
	_, docs := submitApplication(t, env, env.sessionFor(t, owner))
	submitApplication(t, env, env.sessionFor(t, other))

	rec := env.do(t, http.MethodGet, "/v1/documents/"+docs[0].ID+"/link", nil,
		withCookie(env.sessionFor(t, other)))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cross-owner link = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDocumentFetchInvalidToken(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/documents/fetch?token=garbage", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token = %d", rec.Code)
	}
}

// A session cookie is not an access token; the retrieval endpoint only
// honors scoped tokens.
func TestDocumentFetchRejectsSessionToken(t *testing.T) {
	env := newTestEnv(t)
	owner := env.addIdentity(t, "id-own", "own@b.com", auth.RoleRegular)
	cookie := env.sessionFor(t, owner)
	submitApplication(t, env, cookie)

	rec := env.do(t, http.MethodGet, "/v1/documents/fetch?token="+cookie.Value, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("session token fetch = %d", rec.Code)
	}
}

// Deleting the profile between issuance and fetch turns the link into a 404.
func TestDocumentFetchAfterDeletion(t *testing.T) {
	env := newTestEnv(t)
	owner := env.addIdentity(t, "id-own", "own@b.com", auth.RoleRegular)
	cookie := env.sessionFor(t, owner)
	_, docs := submitApplication(t, env, cookie)

	rec := env.do(t, http.MethodGet, "/v1/documents/"+docs[0].ID+"/link", nil, withCookie(cookie))
	var link documentLinkResponse
	decodeBody(t, rec, &link)

	rec = env.do(t, http.MethodDelete, "/v1/suppliers/profile", nil, withCookie(cookie))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, link.URL, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("fetch after delete = %d: %s", rec.Code, rec.Body.String())
	}
}

package server

import (
	"net/http"
	"net/url"
)

// hasAccessToken checks credential presence only; validity is the
// backend's call.
func hasAccessToken(r *http.Request) bool {
	c, err := r.Cookie(accessCookie)
	return err == nil && c.Value != ""
}

// requireAuthPage guards a page route: unauthenticated visitors are
// redirected to the login page, which records the original destination
// for the post-login return.
func requireAuthPage(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !hasAccessToken(r) {
			target := "/login?redirect=" + url.QueryEscape(r.URL.Path)
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next(w, r)
	}
}

// requireAuthAPI guards an API route: unauthenticated requests get a
// 401 envelope instead of a redirect.
func requireAuthAPI(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !hasAccessToken(r) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}

package server

import (
	"net/http"

	"github.com/jugalmahida/prodevscore/internal/api"
	"github.com/jugalmahida/prodevscore/internal/config"
)

// Cookie names and lifetimes. The credential contents are opaque
// backend-issued tokens; the browser code never inspects them.
const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
	sessionCookie = "reviewSession"

	accessMaxAge  = 15 * 60
	refreshMaxAge = 7 * 24 * 60 * 60
)

func sameSiteMode(cfg *config.Config) http.SameSite {
	if cfg.CookieSameSite == "none" {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func authCookie(cfg *config.Config, name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: sameSiteMode(cfg),
	}
}

func setAuthCookies(w http.ResponseWriter, cfg *config.Config, t api.Tokens) {
	http.SetCookie(w, authCookie(cfg, accessCookie, t.AccessToken, accessMaxAge))
	http.SetCookie(w, authCookie(cfg, refreshCookie, t.RefreshToken, refreshMaxAge))
}

func clearAuthCookies(w http.ResponseWriter, cfg *config.Config) {
	http.SetCookie(w, authCookie(cfg, accessCookie, "", -1))
	http.SetCookie(w, authCookie(cfg, refreshCookie, "", -1))
}

// cookieTokenStore implements gateway.TokenStore over one HTTP
// exchange: reads from the request cookies, writes refreshed pairs as
// response cookies. A gateway-internal refresh therefore reaches the
// browser transparently.
type cookieTokenStore struct {
	w   http.ResponseWriter
	r   *http.Request
	cfg *config.Config
}

func (s cookieTokenStore) Tokens() (api.Tokens, error) {
	var t api.Tokens
	if c, err := s.r.Cookie(accessCookie); err == nil {
		t.AccessToken = c.Value
	}
	if c, err := s.r.Cookie(refreshCookie); err == nil {
		t.RefreshToken = c.Value
	}
	return t, nil
}

func (s cookieTokenStore) Save(t api.Tokens) error {
	setAuthCookies(s.w, s.cfg, t)
	return nil
}

func (s cookieTokenStore) Clear() error {
	clearAuthCookies(s.w, s.cfg)
	return nil
}

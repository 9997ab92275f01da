package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jugalmahida/prodevscore/internal/api"
	"github.com/jugalmahida/prodevscore/internal/session"
)

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// handleLogin authenticates against the backend. The issued credential
// pair lands in response cookies via the cookie token store; the body
// carries the user so the page can render without a second round trip.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var p api.LoginPayload
	if !decodeBody(w, r, &p) {
		return
	}

	user, err := s.gateway(w, r).Login(r.Context(), p)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var p api.RegisterPayload
	if !decodeBody(w, r, &p) {
		return
	}

	msg, err := s.gateway(w, r).Register(r.Context(), p)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiEnvelope{Success: true, Message: msg})
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var p api.VerifyCodePayload
	if !decodeBody(w, r, &p) {
		return
	}

	if err := s.gateway(w, r).VerifyCode(r.Context(), p); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiEnvelope{Success: true, Message: "account verified"})
}

// handleLogout clears cookies even when the backend call fails: a stale
// backend session must never pin the browser to a dead credential pair.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	err := s.gateway(w, r).Logout(r.Context())
	clearAuthCookies(w, s.cfg)
	if err != nil && !api.IsUnauthorized(err) {
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCurrentUser returns the account and refreshes the review
// session's plan limits from the live subscription.
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, err := s.gateway(w, r).CurrentUser(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	sess := s.reviewSession(w, r)
	sess.Review.SetPlanLimits(user.Subscription.CurrentPlan.Limits)

	writeData(w, http.StatusOK, map[string]any{"user": user})
}

// handleUsage projects the subscription into the dashboard's usage
// meters, percentages included.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, err := s.gateway(w, r).CurrentUser(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	usage := session.UsageFromUser(user)
	writeData(w, http.StatusOK, map[string]any{
		"usage":               usage,
		"commitsPercent":      usage.CommitsPercent(),
		"repositoriesPercent": usage.RepositoriesPercent(),
		"contributorsPercent": usage.ContributorsPercent(),
		"allowedCommitCounts": session.AllowedCommitCounts(user.Subscription.CurrentPlan.Limits.CommitsPerContributor),
	})
}

func (s *Server) handleForgetPassword(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var p api.ForgetPasswordPayload
	if !decodeBody(w, r, &p) {
		return
	}

	if err := s.gateway(w, r).ForgetPassword(r.Context(), p.Email); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiEnvelope{Success: true, Message: "reset mail sent"})
}

// handleResetPassword completes a reset using the mailed token from the
// path: /api/user/reset-password/{token}.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	token := strings.TrimPrefix(r.URL.Path, "/api/user/reset-password/")
	if token == "" || strings.Contains(token, "/") {
		writeError(w, http.StatusBadRequest, "missing reset token")
		return
	}
	var p api.ResetPasswordPayload
	if !decodeBody(w, r, &p) {
		return
	}

	if err := s.gateway(w, r).ResetPassword(r.Context(), token, p.NewPassword); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiEnvelope{Success: true, Message: "password updated"})
}

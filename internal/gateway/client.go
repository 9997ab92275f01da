// Package gateway translates local intents into authenticated backend
// requests. Every call fails closed: the caller sees either a decoded
// payload or a normalized *api.Error, never a transport-specific error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jugalmahida/prodevscore/internal/api"
)

// TokenStore holds the opaque credential pair between requests. The
// server backs it with response cookies, the CLI with a file.
type TokenStore interface {
	Tokens() (api.Tokens, error)
	Save(api.Tokens) error
	Clear() error
}

// Client is the backend API gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
}

// New creates a gateway for the backend at baseURL.
func New(baseURL string, store TokenStore) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tokens:     store,
	}
}

// do performs one request and decodes the response envelope. authed
// requests carry the stored credential cookies.
func (c *Client) do(ctx context.Context, method, path string, payload any, authed bool) (*api.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &api.Error{Message: fmt.Sprintf("encode request: %v", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &api.Error{Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authed {
		if t, err := c.tokens.Tokens(); err == nil {
			if t.AccessToken != "" {
				req.AddCookie(&http.Cookie{Name: "accessToken", Value: t.AccessToken})
			}
			if t.RefreshToken != "" {
				req.AddCookie(&http.Cookie{Name: "refreshToken", Value: t.RefreshToken})
			}
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &api.Error{Message: fmt.Sprintf("network error: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return &api.Response{Success: true}, nil
	}

	var envelope api.Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &api.Error{Message: fmt.Sprintf("malformed response: %v", err)}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		e := api.ErrorFromResponse(&envelope)
		if e.Code == "" {
			e.Code = api.CodeUnauthorized
		}
		return nil, e
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Success {
		return nil, api.ErrorFromResponse(&envelope)
	}

	return &envelope, nil
}

// doAuth wraps do with the credential-refresh policy: on an
// authorization failure exactly one transparent refresh-and-retry runs.
// If the refresh fails, credentials are cleared and the caller gets the
// original authorization error. A second authorization failure after
// the retry also clears credentials; there is no retry loop.
func (c *Client) doAuth(ctx context.Context, method, path string, payload any) (*api.Response, error) {
	resp, err := c.do(ctx, method, path, payload, true)
	if err == nil || !api.IsUnauthorized(err) {
		return resp, err
	}

	if _, rerr := c.RefreshTokens(ctx); rerr != nil {
		c.tokens.Clear()
		return nil, err
	}

	resp, retryErr := c.do(ctx, method, path, payload, true)
	if retryErr != nil && api.IsUnauthorized(retryErr) {
		c.tokens.Clear()
	}
	return resp, retryErr
}

type userTokens struct {
	User   api.User   `json:"user"`
	Tokens api.Tokens `json:"tokens"`
}

// Login authenticates and stores the issued credential pair.
func (c *Client) Login(ctx context.Context, p api.LoginPayload) (*api.User, error) {
	resp, err := c.do(ctx, http.MethodPost, "/user/login", p, false)
	if err != nil {
		return nil, err
	}

	var data userTokens
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, &api.Error{Message: fmt.Sprintf("malformed login response: %v", err)}
	}
	if err := c.tokens.Save(data.Tokens); err != nil {
		return nil, api.Normalize(err)
	}
	return &data.User, nil
}

// Register creates an account. The backend follows up with a
// verification code by mail; VerifyCode completes the flow.
func (c *Client) Register(ctx context.Context, p api.RegisterPayload) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/user/register", p, false)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// VerifyCode exchanges the mailed verification code for credentials.
func (c *Client) VerifyCode(ctx context.Context, p api.VerifyCodePayload) error {
	resp, err := c.do(ctx, http.MethodPost, "/user/verifyCode", p, false)
	if err != nil {
		return err
	}

	var data struct {
		Tokens api.Tokens `json:"tokens"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return &api.Error{Message: fmt.Sprintf("malformed verify response: %v", err)}
	}
	if err := c.tokens.Save(data.Tokens); err != nil {
		return api.Normalize(err)
	}
	return nil
}

// CurrentUser fetches the authenticated account with its plan usage.
func (c *Client) CurrentUser(ctx context.Context) (*api.User, error) {
	resp, err := c.doAuth(ctx, http.MethodGet, "/user/me", nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		User api.User `json:"user"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, &api.Error{Message: fmt.Sprintf("malformed user response: %v", err)}
	}
	return &data.User, nil
}

// RefreshTokens trades the refresh credential for a fresh pair.
func (c *Client) RefreshTokens(ctx context.Context) (api.Tokens, error) {
	resp, err := c.do(ctx, http.MethodPost, "/user/refresh-tokens", nil, true)
	if err != nil {
		return api.Tokens{}, err
	}

	var data struct {
		Tokens api.Tokens `json:"tokens"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return api.Tokens{}, &api.Error{Message: fmt.Sprintf("malformed refresh response: %v", err)}
	}
	if err := c.tokens.Save(data.Tokens); err != nil {
		return api.Tokens{}, api.Normalize(err)
	}
	return data.Tokens, nil
}

// Logout invalidates the backend session and clears local credentials.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, "/user/logout", nil, true); err != nil {
		return err
	}
	if err := c.tokens.Clear(); err != nil {
		return api.Normalize(err)
	}
	return nil
}

// ForgetPassword requests a password-reset mail.
func (c *Client) ForgetPassword(ctx context.Context, email string) error {
	_, err := c.do(ctx, http.MethodPost, "/user/forget-password", api.ForgetPasswordPayload{Email: email}, false)
	return err
}

// ResetPassword sets a new password using a mailed reset token.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	_, err := c.do(ctx, http.MethodPost, "/user/verifyToken/"+token, api.ResetPasswordPayload{NewPassword: newPassword}, false)
	return err
}

// Contributors lists everyone with commits in the repository at githubURL.
func (c *Client) Contributors(ctx context.Context, githubURL string) ([]api.Contributor, error) {
	resp, err := c.doAuth(ctx, http.MethodPost, "/review/getContributors", api.GetContributorsPayload{GithubURL: githubURL})
	if err != nil {
		return nil, err
	}

	var list []api.Contributor
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		return nil, &api.Error{Message: fmt.Sprintf("malformed contributors response: %v", err)}
	}
	return list, nil
}

// ContributorDetail fetches the profile and statistics for one contributor.
func (c *Client) ContributorDetail(ctx context.Context, githubURL, login string) (*api.ContributorDetail, error) {
	resp, err := c.doAuth(ctx, http.MethodPost, "/review/getContributorData", api.ContributorDetailPayload{GithubURL: githubURL, Login: login})
	if err != nil {
		return nil, err
	}

	var detail api.ContributorDetail
	if err := json.Unmarshal(resp.Data, &detail); err != nil {
		return nil, &api.Error{Message: fmt.Sprintf("malformed contributor response: %v", err)}
	}
	return &detail, nil
}

// StartReview triggers the analysis job. The request is fire-and-forget:
// real results arrive over the event channel identified by p.SocketID.
func (c *Client) StartReview(ctx context.Context, p api.StartReviewPayload) error {
	_, err := c.doAuth(ctx, http.MethodPost, "/review/analysis", p)
	return err
}

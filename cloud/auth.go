package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Timeout configuration for auth and profile operations
const (
	authRequestTimeout    = 10 * time.Second
	profileRequestTimeout = 10 * time.Second
)

// tokenPairResponse is the login/verify-email response shape. These
// endpoints use camelCase fields; the refresh endpoint does not.
type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (r tokenPairResponse) credential() (Credential, error) {
	if r.AccessToken == "" || r.RefreshToken == "" {
		return Credential{}, errors.New("token response missing tokens")
	}
	return Credential{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}, nil
}

// Register creates an account. The account stays pending until the emailed
// code is confirmed with VerifyEmail; no credential is issued or stored
// here.
func (c *Client) Register(ctx context.Context, fullName, email, password string) error {
	payload, err := json.Marshal(struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Password string `json:"password"`
		DeviceID string `json:"deviceId"`
	}{fullName, email, password, c.session.DeviceID()})
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, authRequestTimeout)
	defer cancel()

	return c.doJSON(reqCtx, request{
		method:      http.MethodPost,
		url:         c.endpoint("/auth/register"),
		body:        payload,
		contentType: "application/json",
	}, nil)
}

// LoginResult is the outcome of a login attempt. VerificationRequired is a
// distinguished outcome, not an error: the server answered 403 because the
// email has not been confirmed yet, and no credential was issued.
type LoginResult struct {
	Credential           Credential
	VerificationRequired bool
}

// Login exchanges email and password for a credential pair and stores it.
// Login itself never triggers a token refresh; it is the entry point that
// creates tokens, not a consumer of them.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	payload, err := json.Marshal(struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		DeviceID string `json:"deviceId"`
	}{email, password, c.session.DeviceID()})
	if err != nil {
		return LoginResult{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, authRequestTimeout)
	defer cancel()

	resp, err := c.send(reqCtx, request{
		method:      http.MethodPost,
		url:         c.endpoint("/auth/login"),
		body:        payload,
		contentType: "application/json",
	})
	if err != nil {
		return LoginResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return LoginResult{VerificationRequired: true}, nil
	}

	var tokens tokenPairResponse
	if err := decodeJSONResponse(resp, &tokens); err != nil {
		return LoginResult{}, err
	}
	cred, err := tokens.credential()
	if err != nil {
		return LoginResult{}, err
	}
	if err := c.session.SetCredential(cred); err != nil {
		return LoginResult{}, fmt.Errorf("failed to persist tokens: %w", err)
	}
	return LoginResult{Credential: cred}, nil
}

// VerifyEmail confirms the emailed code for a pending account and stores
// the issued credential pair.
func (c *Client) VerifyEmail(ctx context.Context, email, code string) (Credential, error) {
	payload, err := json.Marshal(struct {
		Email    string `json:"email"`
		Code     string `json:"code"`
		DeviceID string `json:"deviceId"`
	}{email, code, c.session.DeviceID()})
	if err != nil {
		return Credential{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, authRequestTimeout)
	defer cancel()

	var tokens tokenPairResponse
	if err := c.doJSON(reqCtx, request{
		method:      http.MethodPost,
		url:         c.endpoint("/auth/verify-email"),
		body:        payload,
		contentType: "application/json",
	}, &tokens); err != nil {
		return Credential{}, err
	}
	cred, err := tokens.credential()
	if err != nil {
		return Credential{}, err
	}
	if err := c.session.SetCredential(cred); err != nil {
		return Credential{}, fmt.Errorf("failed to persist tokens: %w", err)
	}
	return cred, nil
}

// Logout invalidates the session server-side, then clears local state.
func (c *Client) Logout(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, authRequestTimeout)
	defer cancel()

	if err := c.doJSON(reqCtx, request{
		method: http.MethodPost,
		url:    c.endpoint("/auth/logout"),
		auth:   true,
	}, nil); err != nil {
		return err
	}
	return c.session.Clear()
}

// DeleteAccount removes the account and clears local state.
func (c *Client) DeleteAccount(ctx context.Context, userID string) error {
	reqCtx, cancel := context.WithTimeout(ctx, authRequestTimeout)
	defer cancel()

	if err := c.doJSON(reqCtx, request{
		method: http.MethodDelete,
		url:    c.endpoint("/user/" + userID),
		auth:   true,
	}, nil); err != nil {
		return err
	}
	return c.session.Clear()
}

// Nickname fetches the display name for userID and caches it in the
// session.
func (c *Client) Nickname(ctx context.Context, userID string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, profileRequestTimeout)
	defer cancel()

	var profile struct {
		Nickname string `json:"nickname"`
	}
	if err := c.doJSON(reqCtx, request{
		method: http.MethodGet,
		url:    c.endpoint("/user/fullName/" + userID),
		auth:   true,
	}, &profile); err != nil {
		return "", err
	}
	_ = c.session.SetNickname(profile.Nickname)
	return profile.Nickname, nil
}

// UserID extracts the user id claim from the access token payload. The
// token is decoded without signature verification: the client holds no key
// material, and the server re-validates the token on every request anyway.
func (c *Client) UserID() (string, error) {
	token, ok := c.session.AccessToken()
	if !ok {
		return "", ErrNoSession
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("failed to decode access token: %w", err)
	}

	switch v := claims["userId"].(type) {
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	case string:
		return v, nil
	}
	return "", errors.New("access token has no userId claim")
}

// decodeJSONResponse reads a response owned by the caller of send, mapping
// non-2xx statuses to *APIError like doJSON does.
func decodeJSONResponse(resp *http.Response, out any) error {
	body, err := readBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

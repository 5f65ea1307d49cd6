package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const refreshRequestTimeout = 10 * time.Second

// refreshCredential exchanges the stored refresh token for a new pair.
// Concurrent callers collapse into a single in-flight exchange and share
// its result, so the single-use refresh token is consumed exactly once even
// when several requests hit 401 back-to-back.
func (c *Client) refreshCredential(ctx context.Context) (Credential, error) {
	v, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		return c.exchangeRefreshToken(ctx)
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}

// exchangeRefreshToken sends the refresh token as the bearer credential to
// the refresh endpoint and persists the returned pair atomically. A 401
// means the refresh token is expired or revoked: the session cannot be
// recovered, so stored credentials are cleared before ErrRefreshRejected is
// returned.
func (c *Client) exchangeRefreshToken(ctx context.Context) (Credential, error) {
	refreshToken, ok := c.session.RefreshToken()
	if !ok {
		return Credential{}, ErrRefreshUnavailable
	}

	c.display.Refreshing()

	reqCtx, cancel := context.WithTimeout(ctx, refreshRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		reqCtx,
		http.MethodPost,
		c.endpoint("/auth/refresh"),
		strings.NewReader("{}"),
	)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+refreshToken)

	resp, err := c.http.DoWithContext(reqCtx, req)
	if err != nil {
		err = fmt.Errorf("refresh request failed: %w", err)
		c.display.RefreshFailed(err)
		return Credential{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to read refresh response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		_ = c.session.Clear()
		c.display.RefreshFailed(ErrRefreshRejected)
		return Credential{}, ErrRefreshRejected
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Body: string(body)}
		c.display.RefreshFailed(apiErr)
		return Credential{}, apiErr
	}

	// The refresh endpoint answers with snake_case token fields, unlike
	// login and verify-email.
	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return Credential{}, fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if tokenResp.AccessToken == "" || tokenResp.RefreshToken == "" {
		return Credential{}, errors.New("refresh response missing tokens")
	}

	cred := Credential{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
	}
	if err := c.session.SetCredential(cred); err != nil {
		return Credential{}, fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	c.display.RefreshOK()
	return cred, nil
}

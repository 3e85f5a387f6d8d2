package quoteapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

// Profile is the logged-in user profile.
type Profile struct {
	ClientCode string `json:"clientcode"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}

type loginData struct {
	JWTToken     string `json:"jwtToken"`
	RefreshToken string `json:"refreshToken"`
	FeedToken    string `json:"feedToken"`
}

// Login generates a fresh TOTP code from totpSecret and establishes a
// session. On success the client holds access, refresh and feed tokens.
func (c *Client) Login(ctx context.Context, clientCode, password, totpSecret string) (*Profile, error) {
	code, err := totp.GenerateCode(totpSecret, time.Now())
	if err != nil {
		return nil, fmt.Errorf("totp generate: %w", err)
	}

	res, err := c.post(ctx, "auth.login", map[string]string{
		"clientcode": clientCode,
		"password":   password,
		"totp":       code,
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	var data loginData
	if err := json.Unmarshal(res.Data, &data); err != nil {
		return nil, fmt.Errorf("login: parse tokens: %w", err)
	}
	if data.JWTToken == "" {
		return nil, fmt.Errorf("login: empty token in response")
	}
	c.setTokens(data.JWTToken, data.RefreshToken, data.FeedToken)

	profile, err := c.GetProfile(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.clientCode = profile.ClientCode
	c.mu.Unlock()
	return profile, nil
}

// RefreshSession swaps the refresh token for a new access token.
func (c *Client) RefreshSession(ctx context.Context) error {
	c.mu.RLock()
	refresh := c.refreshToken
	c.mu.RUnlock()
	if refresh == "" {
		return fmt.Errorf("refresh: no refresh token held")
	}

	res, err := c.post(ctx, "auth.refresh", map[string]string{
		"refreshToken": refresh,
	})
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	var data loginData
	if err := json.Unmarshal(res.Data, &data); err != nil {
		return fmt.Errorf("refresh: parse tokens: %w", err)
	}
	if data.JWTToken == "" {
		return fmt.Errorf("refresh: empty token in response")
	}
	if data.RefreshToken == "" {
		data.RefreshToken = refresh
	}
	c.setTokens(data.JWTToken, data.RefreshToken, data.FeedToken)
	return nil
}

// Logout terminates the provider session and clears held tokens.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.RLock()
	clientCode := c.clientCode
	c.mu.RUnlock()

	_, err := c.post(ctx, "auth.logout", map[string]string{
		"clientcode": clientCode,
	})

	c.mu.Lock()
	c.accessToken = ""
	c.refreshToken = ""
	c.feedToken = ""
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// GetProfile fetches the logged-in user profile.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	res, err := c.get(ctx, "user.profile")
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(res.Data, &p); err != nil {
		return nil, fmt.Errorf("profile: parse: %w", err)
	}
	return &p, nil
}

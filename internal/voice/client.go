// Package voice issues Hume EVI access tokens for browser voice sessions.
// The gateway never exposes the Hume credential pair to clients; it trades
// them for a short-lived OAuth2 client-credentials token on each request.
package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quest-gateway/internal/circuitbreaker"
	"quest-gateway/internal/common/errors"
)

// DefaultTokenURL is Hume's OAuth2 client-credentials endpoint.
const DefaultTokenURL = "https://api.hume.ai/oauth2-cc/token"

type Client struct {
	apiKey    string
	secretKey string
	configID  string

	// TokenURL is overridable for tests.
	TokenURL string

	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
}

// AccessToken is the token handed to voice clients, together with the EVI
// configuration they should connect with.
type AccessToken struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
	ConfigID    string `json:"configId,omitempty"`
}

// NewClient creates a Hume token client. Credentials may be empty; the
// handler checks Configured before use.
func NewClient(apiKey, secretKey, configID string) *Client {
	return &Client{
		apiKey:    apiKey,
		secretKey: secretKey,
		configID:  configID,
		TokenURL:  DefaultTokenURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		breaker: circuitbreaker.New("hume", circuitbreaker.HTTPConfig),
	}
}

// Configured reports whether the credential pair is present.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.secretKey != ""
}

// FetchAccessToken requests a fresh access token from Hume. Calls are guarded
// by a circuit breaker so a struggling upstream fails fast instead of tying
// up request handlers.
func (c *Client) FetchAccessToken(ctx context.Context) (*AccessToken, error) {
	if !c.Configured() {
		return nil, errors.InternalError("voice service not configured", nil)
	}

	var token *AccessToken
	err := c.breaker.Execute(func() error {
		var err error
		token, err = c.requestToken(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	token.ConfigID = c.configID
	return token, nil
}

func (c *Client) requestToken(ctx context.Context) (*AccessToken, error) {
	form := url.Values{"grant_type": {"client_credentials"}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.InternalError("failed to build token request", err)
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(c.apiKey + ":" + c.secretKey))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+credentials)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.UpstreamError("hume token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.UpstreamError(
			fmt.Sprintf("hume token request returned %d: %s", resp.StatusCode, string(body)), nil).
			WithContext("status_code", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.UpstreamError("failed to decode hume token response", err)
	}
	if payload.AccessToken == "" {
		return nil, errors.UpstreamError("hume returned an empty access token", nil)
	}

	return &AccessToken{
		AccessToken: payload.AccessToken,
		ExpiresIn:   payload.ExpiresIn,
	}, nil
}

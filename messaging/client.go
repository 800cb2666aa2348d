// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/foyer/lib/ref"
	"github.com/bureau-foundation/foyer/lib/secret"
)

// maxResponseSize bounds JSON API response body reads: 256 MB. This
// exists solely to prevent a pathological response from exhausting
// system memory; legitimate responses are orders of magnitude smaller.
const maxResponseSize int64 = 256 << 20

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// HomeserverURL is the base URL of the Matrix homeserver
	// (e.g., "https://matrix.example.org").
	HomeserverURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used. The caller should leave its Timeout at zero — /sync
	// long-polls are bounded by context and the server-side timeout
	// parameter, not a client-wide deadline.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client is an unauthenticated Matrix client. It holds the homeserver
// URL and HTTP transport, shared across sessions.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new unauthenticated Matrix client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.HomeserverURL == "" {
		return nil, fmt.Errorf("messaging: HomeserverURL is required")
	}

	// Validate the URL structure. We store the string form (with
	// trailing slash stripped) and build request URLs by direct
	// concatenation, which avoids double-encoding issues with Go's
	// url.URL.String().
	if _, err := url.Parse(config.HomeserverURL); err != nil {
		return nil, fmt.Errorf("messaging: invalid HomeserverURL %q: %w", config.HomeserverURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.HomeserverURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Call this after a network disruption to
// force subsequent requests onto fresh TCP connections instead of a
// poisoned pooled connection.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Login authenticates with username and password, returning a
// DirectSession. The password buffer is read but not closed — the
// caller retains ownership.
func (c *Client) Login(ctx context.Context, username string, password *secret.Buffer) (*DirectSession, error) {
	if username == "" {
		return nil, fmt.Errorf("messaging: username is required for login")
	}
	if password == nil {
		return nil, fmt.Errorf("messaging: password is required for login")
	}

	// The password converts to a string at the JSON serialization
	// boundary; the heap copy is request-scoped.
	loginRequest := LoginRequest{
		Type:                     "m.login.password",
		User:                     username,
		Password:                 password.String(),
		InitialDeviceDisplayName: "foyer",
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/_matrix/client/v3/login", nil, loginRequest)
	if err != nil {
		return nil, fmt.Errorf("messaging: login failed: %w", err)
	}

	var authResponse AuthResponse
	if err := json.Unmarshal(body, &authResponse); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse login response: %w", err)
	}

	c.logger.Info("logged in to matrix",
		"user_id", authResponse.UserID,
		"device_id", authResponse.DeviceID,
	)

	return c.sessionFromAuth(&authResponse)
}

// SessionFromToken creates a DirectSession from an existing access
// token string (e.g., restored from the sealed session file). The
// token is moved into mmap-backed memory; the original string remains
// on the heap briefly until collected.
//
// This does NOT validate the token — the first API call fails if it is
// invalid. The caller must call Close on the returned session.
func (c *Client) SessionFromToken(userID ref.UserID, accessToken string) (*DirectSession, error) {
	tokenBuffer, err := secret.NewFromString(accessToken)
	if err != nil {
		return nil, fmt.Errorf("messaging: protecting access token: %w", err)
	}
	return &DirectSession{
		client:      c,
		accessToken: tokenBuffer,
		userID:      userID,
	}, nil
}

func (c *Client) sessionFromAuth(auth *AuthResponse) (*DirectSession, error) {
	tokenBuffer, err := secret.NewFromString(auth.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("messaging: protecting access token: %w", err)
	}
	return &DirectSession{
		client:      c,
		accessToken: tokenBuffer,
		userID:      auth.UserID,
		deviceID:    auth.DeviceID,
	}, nil
}

// doRequest performs an HTTP request to the homeserver and returns the
// response body. On 2xx, returns the body. On 4xx/5xx, returns the
// body alongside a *MatrixError. accessToken may be nil for
// unauthenticated endpoints; query may be omitted.
func (c *Client) doRequest(ctx context.Context, method, path string, accessToken *secret.Buffer, requestBody any, query ...url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 && query[0] != nil {
		requestURL += "?" + query[0].Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("messaging: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to create request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if accessToken != nil {
		request.Header.Set("Authorization", "Bearer "+accessToken.String())
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("messaging: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	// All Matrix error responses use the same JSON shape.
	var matrixErr MatrixError
	if jsonErr := json.Unmarshal(responseBody, &matrixErr); jsonErr != nil {
		// Non-JSON error body. Should not happen with a spec-compliant
		// server; fail loud with the raw body.
		return nil, fmt.Errorf("messaging: unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	matrixErr.StatusCode = response.StatusCode

	return responseBody, &matrixErr
}

// doRequestRaw performs an HTTP request with a raw body (media upload).
func (c *Client) doRequestRaw(ctx context.Context, method, path string, accessToken *secret.Buffer, contentType string, body io.Reader) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to create request: %w", err)
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	if accessToken != nil {
		request.Header.Set("Authorization", "Bearer "+accessToken.String())
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("messaging: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("messaging: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	var matrixErr MatrixError
	if jsonErr := json.Unmarshal(responseBody, &matrixErr); jsonErr != nil {
		return nil, fmt.Errorf("messaging: unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	matrixErr.StatusCode = response.StatusCode

	return nil, &matrixErr
}

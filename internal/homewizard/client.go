// Package homewizard talks to the HomeWizard Lite cloud API.
//
// Every method performs exactly one HTTP request. Retrying and session caching
// are handled by the caller.
package homewizard

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultLoginURL is the account login endpoint.
	DefaultLoginURL = "https://cloud.homewizard.com/account/login"
	// DefaultPlugsURL is the base of the hub and switch endpoints.
	DefaultPlugsURL = "https://plug.homewizard.com/plugs"

	// ErrorCodeInvalidCredentials is returned by the login endpoint for bad credentials.
	ErrorCodeInvalidCredentials = 110

	// StatusSuccess is the only action status that confirms a state change.
	StatusSuccess = "Success"

	sessionHeader = "X-Session-Token"
)

// ErrMissingCredentials is returned by Login when username or password is empty.
var ErrMissingCredentials = errors.New("username and password are required")

// Hub is a vendor-side group of switches.
type Hub struct {
	ID         string   `json:"id"`
	Identifier string   `json:"identifier,omitempty"`
	Name       string   `json:"name"`
	Devices    []Device `json:"devices"`
}

// Device is a single switch as reported by the plugs endpoint.
type Device struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TypeName string `json:"typeName,omitempty"`
}

// ActionResult is the response of the switch action endpoint.
type ActionResult struct {
	Status string `json:"status"`
}

// OK reports whether the vendor confirmed the action.
func (r *ActionResult) OK() bool {
	return r != nil && r.Status == StatusSuccess
}

type loginResponse struct {
	Session string `json:"session"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// Client is a thin HTTP client for the vendor endpoints.
type Client struct {
	loginURL string
	plugsURL string
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithLoginURL overrides the login endpoint.
func WithLoginURL(u string) Option {
	return func(c *Client) { c.loginURL = u }
}

// WithPlugsURL overrides the plugs base URL.
func WithPlugsURL(u string) Option {
	return func(c *Client) { c.plugsURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a client for the production endpoints unless overridden.
func NewClient(opts ...Option) *Client {
	c := &Client{
		loginURL: DefaultLoginURL,
		plugsURL: DefaultPlugsURL,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BasicAuthHeader builds the login Authorization header.
// The vendor expects the password as a lower-case hex SHA-1 digest.
func BasicAuthHeader(username, password string) string {
	sum := sha1.Sum([]byte(password))
	raw := username + ":" + hex.EncodeToString(sum[:])
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrMissingCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.loginURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", BasicAuthHeader(username, password))
	req.Header.Set("Accept", "application/json")

	var out loginResponse
	if err := c.do(req, &out); err != nil {
		// Some rejections arrive with a 4xx status but the usual error payload.
		var se *StatusError
		if errors.As(err, &se) && json.Unmarshal([]byte(se.Body), &out) == nil && out.Error != 0 {
			return "", &RejectedError{Code: out.Error, Message: out.Message}
		}
		return "", fmt.Errorf("login: %w", err)
	}
	if out.Error != 0 {
		return "", &RejectedError{Code: out.Error, Message: out.Message}
	}
	if out.Session == "" {
		return "", &RejectedError{Message: "response carried no session token"}
	}
	return out.Session, nil
}

// ListHubs returns every hub of the account with its devices, in vendor order.
func (c *Client) ListHubs(ctx context.Context, token string) ([]Hub, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.plugsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(sessionHeader, token)
	req.Header.Set("Accept", "application/json")

	var hubs []Hub
	if err := c.do(req, &hubs); err != nil {
		return nil, fmt.Errorf("list hubs: %w", err)
	}
	return hubs, nil
}

// SetState switches a device on or off.
func (c *Client) SetState(ctx context.Context, token, hubID, switchID string, on bool) (*ActionResult, error) {
	body, err := json.Marshal(map[string]string{"action": Action(on)})
	if err != nil {
		return nil, fmt.Errorf("marshal action: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/devices/%s/action", c.plugsURL, url.PathEscape(hubID), url.PathEscape(switchID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(sessionHeader, token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	var out ActionResult
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("set state %s: %w", switchID, err)
	}
	return &out, nil
}

// Action maps a desired state to the vendor action verb.
func Action(on bool) string {
	if on {
		return "On"
	}
	return "Off"
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

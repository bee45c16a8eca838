// Package idp dispatches the low-level action requests the identity
// provider's authentication API understands: one POST endpoint, one action
// name per operation, JSON bodies in and out.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Action names the identity provider's authentication API recognises, per
// the dispatcher's X-Amz-Target header.
const (
	ActionInitiateAuth                    = "InitiateAuth"
	ActionRespondToAuthChallenge          = "RespondToAuthChallenge"
	ActionSignUp                          = "SignUp"
	ActionConfirmSignUp                   = "ConfirmSignUp"
	ActionResendConfirmationCode          = "ResendConfirmationCode"
	ActionForgotPassword                  = "ForgotPassword"
	ActionConfirmForgotPassword           = "ConfirmForgotPassword"
	ActionGetUser                         = "GetUser"
	ActionUpdateUserAttributes            = "UpdateUserAttributes"
	ActionDeleteUserAttributes            = "DeleteUserAttributes"
	ActionChangePassword                  = "ChangePassword"
	ActionDeleteUser                      = "DeleteUser"
	ActionGlobalSignOut                   = "GlobalSignOut"
	ActionGetUserAttributeVerificationCode = "GetUserAttributeVerificationCode"
	ActionVerifyUserAttribute             = "VerifyUserAttribute"
	ActionSetUserSettings                 = "SetUserSettings"
	ActionSetUserMFAPreference            = "SetUserMFAPreference"
	ActionAssociateSoftwareToken          = "AssociateSoftwareToken"
	ActionVerifySoftwareToken             = "VerifySoftwareToken"
	ActionListDevices                     = "ListDevices"
	ActionUpdateDeviceStatus              = "UpdateDeviceStatus"
	ActionGetDevice                       = "GetDevice"
	ActionForgetDevice                    = "ForgetDevice"
	ActionConfirmDevice                   = "ConfirmDevice"
)

const targetPrefix = "AWSCognitoIdentityProviderService."

// ErrNetwork wraps any transport-level failure reaching the identity
// provider (DNS, connection refused, timeout, context cancellation).
// Callers branch on it with errors.Is.
var ErrNetwork = errors.New("idp: network error")

// IdPError is a structured error the identity provider returned: an HTTP
// 400 body of the form {"__type": "...#Kind", "message": "..."}. Kind is
// the trailing "#"-segment of __type — e.g. "UserNotFoundException".
type IdPError struct {
	Kind    string
	Message string
}

func (e *IdPError) Error() string {
	return fmt.Sprintf("idp: %s: %s", e.Kind, e.Message)
}

// Client dispatches action requests against one identity provider endpoint.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Limiter    *rate.Limiter
}

// Option configures a Client at construction.
type Option func(*Client)

// WithEndpoint overrides the derived region endpoint, for testing against a
// local server or a non-standard deployment.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.Endpoint = endpoint }
}

// WithHTTPClient overrides the default *http.Client, e.g. to point its
// Transport at an in-process fake identity provider.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.Logger = logger }
}

// WithLimiter overrides the default rate limiter guarding outgoing calls.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) { c.Limiter = limiter }
}

// defaultRateLimit bounds how often this process will call the identity
// provider, independent of any retry policy a caller layers on top — a
// runaway local retry loop (e.g. a caller polling on NotAuthorized) must
// not turn into a hammering client.
const (
	defaultRateLimit = rate.Limit(10)
	defaultBurst     = 20
)

// NewClient builds a Client targeting the identity provider's regional
// endpoint, https://cognito-idp.<region>.amazonaws.com/, unless overridden
// with WithEndpoint.
func NewClient(region string, opts ...Option) *Client {
	c := &Client{
		Endpoint:   fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", region),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     slog.Default(),
		Limiter:    rate.NewLimiter(defaultRateLimit, defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do issues one action request and returns the decoded JSON response body.
func (c *Client) Do(ctx context.Context, action string, args map[string]any) (map[string]any, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("idp: waiting for rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("idp: encoding %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("idp: building %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	req.Header.Set("X-Amz-Target", targetPrefix+action)

	c.Logger.Debug("idp request", "action", action)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNetwork, action, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s response: %v", ErrNetwork, action, err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseErrorBody(respBody, resp.StatusCode)
	}

	var out map[string]any
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, fmt.Errorf("idp: decoding %s response: %w", action, err)
		}
	}

	c.Logger.Debug("idp response", "action", action, "status", resp.StatusCode)
	return out, nil
}

func parseErrorBody(body []byte, status int) error {
	var raw struct {
		Type    string `json:"__type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || raw.Type == "" {
		return &IdPError{Kind: "UnknownError", Message: fmt.Sprintf("HTTP %d: %s", status, string(body))}
	}

	kind := raw.Type
	for i := len(raw.Type) - 1; i >= 0; i-- {
		if raw.Type[i] == '#' {
			kind = raw.Type[i+1:]
			break
		}
	}

	return &IdPError{Kind: kind, Message: raw.Message}
}

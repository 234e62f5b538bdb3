// Package client talks to the auth API the way the registration and login
// forms do: validate locally, POST JSON, and turn the reply into a message
// fit for display.
package client

import (
	"bytes"
	"context"
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
	FallbackRegister   = "Registration failed. Please try again."
	FallbackLogin      = "Login failed. Please check your credentials."
	FallbackUnexpected = "An unexpected error occurred. Please try again later."

	registerPath = "/api/auth/register"
	loginPath    = "/api/auth/login"

	// replies larger than this are not auth replies
	maxReplyBytes = 1 << 16
)

var ErrValidation = errors.New("validation failed")

// FieldError is a form field rejected before anything is sent. It matches
// ErrValidation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

func (e *FieldError) Is(target error) bool { return target == ErrValidation }

type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Result is the server's verdict. OK is true only for a 200 reply.
type Result struct {
	OK      bool
	Status  int
	Message string
	UserID  uint
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url failed: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be an absolute http(s) url", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Result, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if err := validateRegister(req); err != nil {
		return nil, err
	}
	return c.post(ctx, registerPath, req, FallbackRegister)
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*Result, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validateLogin(req); err != nil {
		return nil, err
	}
	return c.post(ctx, loginPath, req, FallbackLogin)
}

type reply struct {
	Message string `json:"message"`
	UserID  uint   `json:"userId"`
}

func (c *Client) post(ctx context.Context, path string, payload any, fallback string) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("read reply failed: %w", err)
	}

	result := &Result{OK: resp.StatusCode == http.StatusOK, Status: resp.StatusCode}
	if len(bytes.TrimSpace(raw)) == 0 {
		if !result.OK {
			result.Message = fallback
		}
		return result, nil
	}

	var r reply
	if err := json.Unmarshal(raw, &r); err != nil {
		if !result.OK {
			result.Message = FallbackUnexpected
		}
		return result, nil
	}

	result.Message = r.Message
	if result.OK {
		result.UserID = r.UserID
	} else if result.Message == "" {
		result.Message = fallback
	}
	return result, nil
}

func validateRegister(req RegisterRequest) error {
	switch {
	case req.FullName == "":
		return &FieldError{Field: "fullName", Message: "Full name is required"}
	case req.Email == "":
		return &FieldError{Field: "email", Message: "Email is required"}
	case !looksLikeEmail(req.Email):
		return &FieldError{Field: "email", Message: "Email address is invalid"}
	case req.Username == "":
		return &FieldError{Field: "username", Message: "Username is required"}
	case req.Password == "":
		return &FieldError{Field: "password", Message: "Password is required"}
	}
	return nil
}

func validateLogin(req LoginRequest) error {
	switch {
	case req.Email == "":
		return &FieldError{Field: "email", Message: "Email is required"}
	case !looksLikeEmail(req.Email):
		return &FieldError{Field: "email", Message: "Email address is invalid"}
	case req.Password == "":
		return &FieldError{Field: "password", Message: "Password is required"}
	}
	return nil
}

// looksLikeEmail mirrors the server: local@domain, one '@', no whitespace.
func looksLikeEmail(s string) bool {
	local, domain, ok := strings.Cut(s, "@")
	return ok && local != "" && domain != "" &&
		!strings.Contains(domain, "@") && !strings.ContainsAny(s, " \t\r\n")
}

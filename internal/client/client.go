// Package client talks to the watchlog API server. Client implements the
// remote store of a signed-in session; every call runs behind a circuit
// breaker so a dead server fails fast instead of stalling each mutation.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"watchlog/internal/auth"
	"watchlog/internal/logging"
	"watchlog/pkg/models"
)

var (
	ErrUnauthorized = errors.New("not signed in or token revoked")
	ErrUnavailable  = errors.New("server unavailable")
)

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// FailureThreshold consecutive transport or 5xx failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

type Client struct {
	base  string
	token string
	http  *http.Client
	cb    *gobreaker.CircuitBreaker[[]byte]
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "watchlog-api",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// client errors mean the server is up
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || (errors.As(err, &se) && se.Code < 500)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}

	return &Client{
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		token: cfg.Token,
		http:  &http.Client{Timeout: cfg.Timeout},
		cb:    gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

// WithToken returns a copy of c that authenticates with token. The breaker
// is shared.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) BreakerState() string {
	return c.cb.State().String()
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = b
	}

	raw, err := c.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			var e struct {
				Error string `json:"error"`
			}
			_ = json.Unmarshal(b, &e)
			return nil, &StatusError{Code: resp.StatusCode, Message: e.Error}
		}
		return b, nil
	})
	if err != nil {
		var se *StatusError
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return fmt.Errorf("%s %s: %w", method, path, ErrUnavailable)
		case errors.As(err, &se) && se.Code == http.StatusUnauthorized:
			return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// SelectAll lists the caller's rows. The server scopes rows by the token, so
// ownerID only guards against using a token of another user.
func (c *Client) SelectAll(ctx context.Context, ownerID string) ([]models.TitleRow, error) {
	var rows []models.TitleRow
	if err := c.do(ctx, http.MethodGet, "/users/titles", nil, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if ownerID != "" && r.UserID != ownerID {
			return nil, fmt.Errorf("row %d belongs to another owner", r.ID)
		}
	}
	return rows, nil
}

func (c *Client) Insert(ctx context.Context, row models.TitleRow) error {
	return c.do(ctx, http.MethodPost, "/users/titles", row, nil)
}

func (c *Client) Update(ctx context.Context, id int64, _ string, fields map[string]any) error {
	return c.do(ctx, http.MethodPatch, "/users/titles/"+strconv.FormatInt(id, 10), fields, nil)
}

// Delete treats an already missing row as deleted.
func (c *Client) Delete(ctx context.Context, id int64, _ string) error {
	err := c.do(ctx, http.MethodDelete, "/users/titles/"+strconv.FormatInt(id, 10), nil, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil
	}
	return err
}

// Suggestions returns catalog entries of a series the caller has not
// registered yet.
func (c *Client) Suggestions(ctx context.Context, key string) ([]models.CatalogEntry, error) {
	var out []models.CatalogEntry
	err := c.do(ctx, http.MethodGet, "/users/series/suggestions?key="+url.QueryEscape(key), nil, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, username, email, password string) (*auth.TokenResponse, error) {
	var out auth.TokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"username": username, "email": email, "password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*auth.TokenResponse, error) {
	var out auth.TokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email": email, "password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes every token of the caller.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

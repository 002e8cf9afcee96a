package backend

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/phillip-england/lotdesk/internal/cache"
	"github.com/phillip-england/lotdesk/internal/session"
)

const (
	DefaultTimeout  = 8 * time.Second
	DefaultCacheTTL = 30 * time.Second

	maxResponseBytes = 16 << 20
)

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Cache      cache.Store
	CacheTTL   time.Duration
	Logger     *zap.Logger
}

// Client talks to the sales backend. It is shared across users; per-user
// calls go through As.
type Client struct {
	baseURL string
	http    *http.Client
	cache   cache.Store
	ttl     time.Duration
	logger  *zap.Logger
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	store := opts.Cache
	if store == nil {
		store = cache.NewMemory()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		cache:   store,
		ttl:     ttl,
		logger:  logger,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Login exchanges credentials for the backend's user record.
func (c *Client) Login(ctx context.Context, email, password string) (session.User, error) {
	body, _ := json.Marshal(session.Credentials{Email: email, Password: password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return session.User{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("login request failed", zap.Error(err))
		return session.User{}, fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := "Credenciales incorrectas"
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(respBody, &payload); err == nil {
			if strings.TrimSpace(payload.Message) != "" {
				msg = payload.Message
			} else if strings.TrimSpace(payload.Error) != "" {
				msg = payload.Error
			}
		}
		return session.User{}, &APIError{Status: resp.StatusCode, Method: http.MethodPost, Path: "/login", Message: msg}
	}

	var user session.User
	if err := json.Unmarshal(respBody, &user); err != nil {
		return session.User{}, fmt.Errorf("decode login response: %w", err)
	}
	if user.Email == "" {
		user.Email = email
	}
	return user, nil
}

// As returns a view of the client that authenticates as creds and caches
// GET responses in a namespace private to that user.
func (c *Client) As(creds session.Credentials) *UserClient {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(creds.Email))))
	return &UserClient{
		client:    c,
		creds:     creds,
		namespace: "api:" + hex.EncodeToString(sum[:8]) + ":",
	}
}

type UserClient struct {
	client    *Client
	creds     session.Credentials
	namespace string
}

func (u *UserClient) cacheKey(url string) string {
	return u.namespace + "GET:" + url
}

// Get decodes the JSON response of path into out, serving it from the cache
// while the cached copy is fresh.
func (u *UserClient) Get(ctx context.Context, path string, out any) error {
	url := u.client.baseURL + path
	key := u.cacheKey(url)

	if data, ok, err := u.client.cache.Get(ctx, key); err != nil {
		u.client.logger.Warn("cache read failed", zap.String("path", path), zap.Error(err))
	} else if ok {
		if err := json.Unmarshal(data, out); err == nil {
			return nil
		}
	}

	data, err := u.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if err := u.client.cache.Set(ctx, key, data, u.client.ttl); err != nil {
		u.client.logger.Warn("cache write failed", zap.String("path", path), zap.Error(err))
	}
	return nil
}

func (u *UserClient) Post(ctx context.Context, path string, in, out any) error {
	return u.send(ctx, http.MethodPost, path, in, out)
}

func (u *UserClient) Put(ctx context.Context, path string, in, out any) error {
	return u.send(ctx, http.MethodPut, path, in, out)
}

func (u *UserClient) Patch(ctx context.Context, path string, in, out any) error {
	return u.send(ctx, http.MethodPatch, path, in, out)
}

func (u *UserClient) Delete(ctx context.Context, path string, out any) error {
	return u.send(ctx, http.MethodDelete, path, nil, out)
}

func (u *UserClient) send(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = encoded
	}
	data, err := u.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	// The mutation already happened; an unexpected body shape is not a
	// failure of the call.
	if err := json.Unmarshal(data, out); err != nil {
		u.client.logger.Warn("unexpected response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
	}
	return nil
}

func (u *UserClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.client.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("email", u.creds.Email)
	req.Header.Set("password", u.creds.Password)

	start := time.Now()
	resp, err := u.client.http.Do(req)
	if err != nil {
		u.client.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	u.client.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(method, path, resp.StatusCode, data)
		if errors.Is(apiErr, ErrSessionExpired) {
			_ = u.ClearCache(ctx)
		}
		return nil, apiErr
	}
	return data, nil
}

// ClearEndpointCache drops this user's cached GETs whose URL contains
// substr.
func (u *UserClient) ClearEndpointCache(ctx context.Context, substr string) error {
	n, err := u.client.cache.DeleteMatching(ctx, u.namespace, substr)
	if err != nil {
		return fmt.Errorf("clear cache %q: %w", substr, err)
	}
	u.client.logger.Debug("cleared endpoint cache", zap.String("match", substr), zap.Int("keys", n))
	return nil
}

// ClearCache drops every cached GET for this user.
func (u *UserClient) ClearCache(ctx context.Context) error {
	return u.ClearEndpointCache(ctx, "")
}

func (u *UserClient) clear(ctx context.Context, substrs ...string) {
	for _, s := range substrs {
		if err := u.ClearEndpointCache(ctx, s); err != nil {
			u.client.logger.Warn("cache invalidation failed", zap.String("match", s), zap.Error(err))
		}
	}
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/charlesng35/hrconsole/pkg/logger"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultReadRetries  = 2
	defaultRetryWait    = 200 * time.Millisecond
	defaultRetryMaxWait = 2 * time.Second
	defaultUserAgent    = "hrconsole-client/1.0"
)

// Config configures a Client. BaseURL includes the API prefix, e.g. http://127.0.0.1:8000/api.
// ReadRetries of zero uses the default of two, a negative value disables read retries.
// A zero CacheTTL disables the read cache.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	ReadRetries  int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	UserAgent    string
	CacheTTL     time.Duration
}

// Tokens is the bearer token pair held for the signed in user.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Empty reports whether no token is held.
func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// TokenStore holds the current token pair. The client reads it before every request and writes
// rotated pairs back after a refresh.
type TokenStore interface {
	Tokens() Tokens
	SetTokens(Tokens)
	ClearTokens()
}

// MemoryTokenStore is a TokenStore that lives only as long as the process.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens Tokens
}

func (s *MemoryTokenStore) Tokens() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

func (s *MemoryTokenStore) SetTokens(t Tokens) {
	s.mu.Lock()
	s.tokens = t
	s.mu.Unlock()
}

func (s *MemoryTokenStore) ClearTokens() {
	s.SetTokens(Tokens{})
}

// Option customises a Client.
type Option func(*Client)

// WithLogoutHandler registers fn to run when the session can no longer be refreshed.
func WithLogoutHandler(fn func()) Option {
	return func(c *Client) {
		c.onLogout = fn
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = resty.NewWithClient(hc)
	}
}

// Client talks to the hrconsole REST API.
type Client struct {
	http     *resty.Client
	tokens   TokenStore
	cache    *QueryCache
	log      *zap.Logger
	onLogout func()

	// refreshMu serialises refreshes so concurrent 401s share one.
	refreshMu sync.Mutex
}

// New builds a client for cfg. A nil store keeps tokens in memory.
func New(cfg Config, store TokenStore, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("client: base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("client: invalid base url: %w", err)
	}
	if store == nil {
		store = &MemoryTokenStore{}
	}

	c := &Client{
		http:   resty.New(),
		tokens: store,
		log:    logger.WithModule("client"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.ReadRetries
	switch {
	case retries == 0:
		retries = defaultReadRetries
	case retries < 0:
		retries = 0
	}
	wait := cfg.RetryWait
	if wait <= 0 {
		wait = defaultRetryWait
	}
	maxWait := cfg.RetryMaxWait
	if maxWait < wait {
		maxWait = defaultRetryMaxWait
	}
	agent := strings.TrimSpace(cfg.UserAgent)
	if agent == "" {
		agent = defaultUserAgent
	}

	c.http.
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", agent).
		SetRetryCount(retries).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(maxWait).
		AddRetryCondition(retryReads)

	if cfg.CacheTTL > 0 {
		c.cache = NewQueryCache(0, cfg.CacheTTL)
	}
	return c, nil
}

// retryReads retries GET and HEAD on transport failures and 5xx. Writes are never retried.
func retryReads(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil {
		return false
	}
	switch resp.Request.Method {
	case http.MethodGet, http.MethodHead:
	default:
		return false
	}
	if err != nil {
		return true
	}
	return resp.StatusCode() >= http.StatusInternalServerError
}

// call describes one API request.
type call struct {
	method string
	path   string
	query  url.Values
	body   any
	// public calls carry no token and never trigger a refresh.
	public bool
}

func (r call) read() bool {
	return r.method == http.MethodGet || r.method == http.MethodHead
}

func (r call) cacheKey() string {
	if len(r.query) == 0 {
		return r.path
	}
	return r.path + "?" + r.query.Encode()
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
	Meta *Meta `json:"meta"`
}

// Meta is the pagination block of list responses.
type Meta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// do runs r and decodes the data payload into out (which may be nil).
func (c *Client) do(ctx context.Context, r call, out any) error {
	_, err := c.doMeta(ctx, r, out)
	return err
}

func (c *Client) doMeta(ctx context.Context, r call, out any) (*Meta, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cacheable := r.read() && !r.public && c.cache != nil
	if cacheable {
		if raw, ok := c.cache.Get(r.cacheKey()); ok {
			return nil, decodeData(raw, out)
		}
	}

	access := ""
	if !r.public {
		access = c.tokens.Tokens().AccessToken
	}

	resp, err := c.send(ctx, r, access)
	if err != nil {
		return nil, networkError(err)
	}

	if resp.StatusCode() == http.StatusUnauthorized && !r.public {
		if err := c.refresh(ctx, access); err != nil {
			return nil, c.forceLogout(err)
		}
		resp, err = c.send(ctx, r, c.tokens.Tokens().AccessToken)
		if err != nil {
			return nil, networkError(err)
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			return nil, c.forceLogout(decodeError(resp))
		}
	}

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}

	if !r.read() {
		c.cache.Reset()
	} else if cacheable && env.Meta == nil {
		c.cache.Set(r.cacheKey(), env.Data)
	}
	return env.Meta, decodeData(env.Data, out)
}

func (c *Client) send(ctx context.Context, r call, access string) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if access != "" {
		req.SetAuthToken(access)
	}
	if len(r.query) > 0 {
		req.SetQueryParamsFromValues(r.query)
	}
	if r.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(r.body)
	}

	resp, err := req.Execute(r.method, r.path)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Error(err),
		)
		return nil, err
	}
	return resp, nil
}

// refresh rotates the token pair. stale is the access token that was rejected: when the store already
// holds a different one, a concurrent caller refreshed it and nothing is sent.
func (c *Client) refresh(ctx context.Context, stale string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	current := c.tokens.Tokens()
	if current.AccessToken != "" && current.AccessToken != stale {
		return nil
	}
	if current.RefreshToken == "" {
		return newError(KindUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "not signed in")
	}

	pair, err := c.exchange(ctx, current.RefreshToken)
	if err != nil {
		return err
	}
	c.tokens.SetTokens(Tokens{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	return nil
}

func (c *Client) exchange(ctx context.Context, refreshToken string) (TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/refresh",
		body:   map[string]string{"refresh_token": refreshToken},
		public: true,
	}, &pair)
	if err != nil {
		return TokenPair{}, err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return TokenPair{}, newError(KindServer, http.StatusOK, "INVALID_RESPONSE", "refresh returned an empty token pair")
	}
	return pair, nil
}

// forceLogout drops the session after a failed refresh and reports it as Unauthorized.
func (c *Client) forceLogout(cause error) error {
	c.refreshMu.Lock()
	held := !c.tokens.Tokens().Empty()
	if held {
		c.tokens.ClearTokens()
	}
	c.refreshMu.Unlock()

	c.cache.Reset()

	if held {
		c.log.Warn("session expired, signing out", zap.Error(cause))
		if c.onLogout != nil {
			c.onLogout()
		}
	}

	var apiErr *Error
	if errors.As(cause, &apiErr) && apiErr.Kind == KindUnauthorized {
		return apiErr
	}
	return &Error{
		Kind:    KindUnauthorized,
		Status:  http.StatusUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: "session expired",
		Err:     cause,
	}
}

func decodeEnvelope(resp *resty.Response) (envelope, error) {
	if resp.IsError() {
		return envelope{}, decodeError(resp)
	}

	var env envelope
	body := resp.Body()
	if len(body) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, &Error{
			Kind:    KindServer,
			Status:  resp.StatusCode(),
			Code:    "INVALID_RESPONSE",
			Message: "response is not a valid envelope",
			Err:     err,
		}
	}
	if !env.Success && env.Error != nil {
		return envelope{}, newError(kindForStatus(resp.StatusCode()), resp.StatusCode(), env.Error.Code, env.Error.Message)
	}
	return env, nil
}

func decodeData(raw json.RawMessage, out any) error {
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindServer, Code: "INVALID_RESPONSE", Message: "unexpected response payload", Err: err}
	}
	return nil
}

// ============================================================================
// meinBOT (mBOT) - Chat Command Bot
// ============================================================================
//
// Package:     apimgr
// Description: Outbound HTTP endpoints called from command handlers, with
//              failure replies sent through the calling command
// Author:      Mike Stoffels
// Created:     2026-09-19
// License:     MIT
// ============================================================================

package apimgr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
	"github.com/msto63/mBOT/foundation/core/log"
)

const (
	// DefaultTimeout applies when no timeout is configured
	DefaultTimeout = 10 * time.Second

	maxBodySize = 4 << 20
	userAgent   = "mBOT/1"
)

// Reporter is the reply surface of the command an API call is made for
type Reporter interface {
	SendFailure(ctx context.Context, message string) error
	Localize(key string, data map[string]interface{}) string
}

// API is one outbound HTTP endpoint. Its configuration is immutable after
// construction; each call uses its own connection pool.
type API struct {
	name     string
	endpoint *url.URL
	timeout  time.Duration
	cooldown time.Duration
	disabled bool
	proxy    func(*http.Request) (*url.URL, error)
	logger   *log.Logger
}

// Option configures an API
type Option func(*API) error

// WithName names the API; the endpoint host is used otherwise
func WithName(name string) Option {
	return func(a *API) error {
		a.name = name
		return nil
	}
}

// WithTimeout bounds every call; non-positive values keep the default
func WithTimeout(d time.Duration) Option {
	return func(a *API) error {
		if d > 0 {
			a.timeout = d
		}
		return nil
	}
}

// WithCooldown records the minimum interval between calls. The value is
// kept for introspection and not enforced.
func WithCooldown(d time.Duration) Option {
	return func(a *API) error {
		a.cooldown = d
		return nil
	}
}

// WithDisabled marks the API as disabled. Callers check Disabled before
// calling; the API does not refuse calls itself.
func WithDisabled(disabled bool) Option {
	return func(a *API) error {
		a.disabled = disabled
		return nil
	}
}

// WithProxy routes calls through proxyURL. An empty value keeps the proxy
// from the environment (HTTP_PROXY, HTTPS_PROXY, NO_PROXY).
func WithProxy(proxyURL string) Option {
	return func(a *API) error {
		if strings.TrimSpace(proxyURL) == "" {
			return nil
		}
		u, err := url.Parse(proxyURL)
		if err != nil || u.Host == "" {
			return mboterror.Newf("invalid proxy url '%s'", proxyURL).
				WithCode(mboterror.CodeInvalidConfig).
				WithOperation("apimgr.WithProxy")
		}
		a.proxy = http.ProxyURL(u)
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(a *API) error {
		if logger != nil {
			a.logger = logger
		}
		return nil
	}
}

// New creates an API for an http or https endpoint
func New(rawURL string, opts ...Option) (*API, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, mboterror.Newf("invalid api url '%s'", rawURL).
			WithCode(mboterror.CodeInvalidConfig).
			WithOperation("apimgr.New")
	}

	a := &API{
		name:     u.Host,
		endpoint: u,
		timeout:  DefaultTimeout,
		proxy:    http.ProxyFromEnvironment,
		logger:   log.GetDefault(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.logger = a.logger.WithFields(log.Fields{"component": "apimgr", "api": a.name})
	return a, nil
}

// Name returns the API name
func (a *API) Name() string { return a.name }

// URL returns the endpoint URL
func (a *API) URL() string { return a.endpoint.String() }

// Timeout returns the per-call timeout
func (a *API) Timeout() time.Duration { return a.timeout }

// Cooldown returns the declared cooldown
func (a *API) Cooldown() time.Duration { return a.cooldown }

// Disabled reports whether the API is marked disabled
func (a *API) Disabled() bool { return a.disabled }

// Get calls the endpoint with GET and returns the decoded JSON body. On an
// unreachable or timed-out endpoint it reports to rep and returns nil, nil.
func (a *API) Get(ctx context.Context, rep Reporter) (any, error) {
	return a.decodeAny(ctx, rep, a.newRequest(http.MethodGet, nil, nil, ""))
}

// GetQuery is Get with query parameters added to the endpoint URL
func (a *API) GetQuery(ctx context.Context, rep Reporter, query url.Values) (any, error) {
	return a.decodeAny(ctx, rep, a.newRequest(http.MethodGet, query, nil, ""))
}

// GetQueryInto is GetQuery decoding into out. ok is false when a failure
// was reported.
func (a *API) GetQueryInto(ctx context.Context, rep Reporter, query url.Values, out any) (ok bool, err error) {
	body, ok, err := a.call(ctx, rep, a.newRequest(http.MethodGet, query, nil, ""))
	if !ok || err != nil {
		return false, err
	}
	return true, a.decode(body, out)
}

// Post sends payload form-encoded and returns the decoded JSON body
func (a *API) Post(ctx context.Context, rep Reporter, payload url.Values) (any, error) {
	body := strings.NewReader(payload.Encode())
	return a.decodeAny(ctx, rep, a.newRequest(http.MethodPost, nil, body, "application/x-www-form-urlencoded"))
}

// PostJSON sends payload as JSON and returns the decoded JSON body
func (a *API) PostJSON(ctx context.Context, rep Reporter, payload any) (any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, mboterror.Wrap(err, "cannot encode payload").WithCode(mboterror.CodeInvalidInput).WithOperation("apimgr.PostJSON")
	}
	return a.decodeAny(ctx, rep, a.newRequest(http.MethodPost, nil, bytes.NewReader(data), "application/json"))
}

// Probe checks that the endpoint answers 200 within the timeout, without
// reporting to anyone
func (a *API) Probe(ctx context.Context) error {
	_, err := a.roundTrip(ctx, a.newRequest(http.MethodGet, nil, nil, ""))
	return err
}

// request is a call description; the http.Request is built per attempt
type request struct {
	method      string
	url         string
	body        io.Reader
	contentType string
}

func (a *API) newRequest(method string, query url.Values, body io.Reader, contentType string) request {
	u := *a.endpoint
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return request{method: method, url: u.String(), body: body, contentType: contentType}
}

func (a *API) decodeAny(ctx context.Context, rep Reporter, req request) (any, error) {
	body, ok, err := a.call(ctx, rep, req)
	if !ok || err != nil {
		return nil, err
	}
	var v any
	if err := a.decode(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (a *API) decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return mboterror.Wrap(err, "malformed response").
			WithCode(mboterror.CodeMalformedResponse).
			WithOperation("apimgr.decode").
			WithDetail("api", a.name)
	}
	return nil
}

// call performs req and turns remote failures into a failure reply. ok is
// false if a failure was reported.
func (a *API) call(ctx context.Context, rep Reporter, req request) ([]byte, bool, error) {
	body, err := a.roundTrip(ctx, req)
	if err == nil {
		return body, true, nil
	}

	var key string
	switch {
	case mboterror.HasCode(err, mboterror.CodeRemoteTimeout):
		key = "api.timeout"
	case mboterror.HasCode(err, mboterror.CodeRemoteUnreachable):
		key = "api.unreachable"
	default:
		return nil, false, err
	}

	a.logger.WarnWithErr("api call failed", err)
	if rep != nil {
		if rErr := rep.SendFailure(ctx, rep.Localize(key, nil)); rErr != nil {
			a.logger.WarnWithErr("failure reply failed", rErr)
		}
	}
	return nil, false, nil
}

// roundTrip runs one HTTP exchange on a private transport that is released
// before returning.
func (a *API) roundTrip(ctx context.Context, req request) ([]byte, error) {
	transport := &http.Transport{
		Proxy:               a.proxy,
		DialContext:         (&net.Dialer{Timeout: a.timeout}).DialContext,
		TLSHandshakeTimeout: a.timeout,
	}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, req.method, req.url, req.body)
	if err != nil {
		return nil, mboterror.Wrap(err, "cannot build request").WithCode(mboterror.CodeInternal).WithOperation("apimgr.roundTrip")
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	started := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, a.classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, a.classify(ctx, err)
	}

	a.logger.Debug("api call", log.Fields{
		"method":      req.method,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(started).Milliseconds(),
	})

	if resp.StatusCode != http.StatusOK {
		return nil, mboterror.Newf("unexpected status %d", resp.StatusCode).
			WithCode(mboterror.CodeRemoteUnreachable).
			WithOperation("apimgr.roundTrip").
			WithDetail("api", a.name).
			WithDetail("status", resp.StatusCode)
	}
	return body, nil
}

// classify maps a transport error to a remote failure code. Cancellation of
// the caller's context is returned unchanged.
func (a *API) classify(parent context.Context, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return parent.Err()
	}

	code := mboterror.CodeRemoteUnreachable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		code = mboterror.CodeRemoteTimeout
	}
	return mboterror.Wrap(err, "api call failed").
		WithCode(code).
		WithOperation("apimgr.roundTrip").
		WithDetail("api", a.name)
}

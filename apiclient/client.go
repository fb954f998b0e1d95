package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonwraymond/sheetbridge/observe"
	"github.com/jonwraymond/sheetbridge/resilience"
)

// ErrNoFallback is returned by FallbackRegistry.Run when no registered
// fallback's precondition is satisfied.
var ErrNoFallback = errors.New("apiclient: no applicable fallback")

// TokenSource supplies the bearer token used to authenticate outbound
// calls to the upstream API. Implementations refresh silently; Token
// only returns an error when no usable credential can be produced.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource is a TokenSource that always returns the same token,
// useful for tests and service-account deployments with no refresh flow.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) { return string(s), nil }

// Config configures a Client.
type Config struct {
	BaseURL      string
	TokenSource  TokenSource
	HTTPClient   *http.Client
	Metrics      observe.Metrics
	Logger       observe.Logger
	Endpoints    *Registry
	UserAgent    string
}

// Client is the shared transport underneath every method group
// (SpreadsheetsAPI, DriveAPI, QueryAPI). It owns token acquisition,
// connection reuse, per-endpoint resilience, and metric emission; method
// groups only describe request/response shapes.
type Client struct {
	baseURL     string
	tokens      TokenSource
	http        *http.Client
	metrics     observe.Metrics
	logger      observe.Logger
	endpoints   *Registry
	userAgent   string
	fallbacks   map[string]*FallbackRegistry
}

// NewClient builds a Client. If cfg.HTTPClient is nil, a transport tuned
// for keep-alive and HTTP/2 is built (HTTP/2 is negotiated automatically
// by net/http's transport when TLSClientConfig allows ALPN, which the
// zero value does).
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}
	}
	endpoints := cfg.Endpoints
	if endpoints == nil {
		endpoints = NewRegistry(DefaultEndpointConfig(), cfg.Metrics)
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "sheetbridge-gateway/1.0"
	}

	return &Client{
		baseURL:   cfg.BaseURL,
		tokens:    cfg.TokenSource,
		http:      httpClient,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		endpoints: endpoints,
		userAgent: ua,
		fallbacks: make(map[string]*FallbackRegistry),
	}
}

// Fallbacks returns (creating if necessary) the FallbackRegistry for the
// given endpoint name, so callers (typically cache.Cache wiring at
// startup) can register cached-data and degraded fallbacks without this
// package importing cache.
func (c *Client) Fallbacks(endpoint string) *FallbackRegistry {
	if fr, ok := c.fallbacks[endpoint]; ok {
		return fr
	}
	fr := NewFallbackRegistry()
	c.fallbacks[endpoint] = fr
	return fr
}

// Endpoints exposes the resilience registry, primarily for
// BreakerStatsHandler and health checks.
func (c *Client) Endpoints() *Registry { return c.endpoints }

// requestSpec describes one upstream call; callers of do() express their
// request this way rather than building *http.Request directly, so
// retries can rebuild the body.
type requestSpec struct {
	Endpoint string // logical name, e.g. "spreadsheets.values.get"
	Method   string
	Path     string
	Query    map[string]string
	Body     any
	Out      any // decode target; nil for no-content responses
}

// do executes spec through the endpoint's resilience.Executor, refreshing
// the bearer token exactly once on a 401, and falling back to the
// endpoint's FallbackRegistry when the breaker is open.
func (c *Client) do(ctx context.Context, spec requestSpec) error {
	start := time.Now()
	executor := c.endpoints.Executor(spec.Endpoint)

	var lastErr error

	// AuthExpired gets exactly one refresh-and-retry here, outside the
	// generic retry policy: RetryIf deliberately excludes AuthExpired so
	// the breaker's retry loop never spins on a dead credential, and the
	// refresh itself happens inside TokenSource.Token, not here.
	op := func(ctx context.Context) error {
		err := c.doOnce(ctx, spec)
		if err == nil {
			return nil
		}
		var ae *Error
		if errors.As(err, &ae) && ae.Class == ClassAuthExpired {
			err = c.doOnce(ctx, spec)
			if err == nil {
				return nil
			}
		}
		lastErr = err
		return err
	}

	err := executor.Execute(ctx, op)

	var ae *Error
	if errors.As(err, &ae) && ae.Class == ClassRateLimited && ae.RetryAfter > 0 {
		c.endpoints.Penalize(spec.Endpoint, ae.RetryAfter)
	}

	if c.metrics != nil {
		c.metrics.RecordExecution(ctx, observe.RequestMeta{Name: spec.Endpoint}, time.Since(start), err)
	}

	if errors.Is(err, resilience.ErrCircuitOpen) {
		if fr, ok := c.fallbacks[spec.Endpoint]; ok {
			v, name, fbErr := fr.Run(ctx)
			if fbErr == nil {
				if c.logger != nil {
					c.logger.Info(ctx, "apiclient: fallback served request",
						observe.Field{Key: "endpoint", Value: spec.Endpoint},
						observe.Field{Key: "fallback", Value: name})
				}
				return assignOut(spec.Out, v)
			}
		}
	}

	if err != nil && lastErr != nil {
		return lastErr
	}
	return err
}

func assignOut(out any, v any) error {
	if out == nil || v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (c *Client) doOnce(ctx context.Context, spec requestSpec) error {
	var bodyReader io.Reader
	if spec.Body != nil {
		data, err := json.Marshal(spec.Body)
		if err != nil {
			return NewError(spec.Endpoint, ClassInvalid, "encoding request body", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	reqURL := c.baseURL + spec.Path
	if len(spec.Query) > 0 {
		values := make(url.Values, len(spec.Query))
		for k, v := range spec.Query {
			if v == "" {
				continue
			}
			values.Set(k, v)
		}
		if encoded := values.Encode(); encoded != "" {
			reqURL += "?" + encoded
		}
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, reqURL, bodyReader)
	if err != nil {
		return NewError(spec.Endpoint, ClassInvalid, "building request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if spec.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return NewError(spec.Endpoint, ClassAuthExpired, "acquiring token", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return NewError(spec.Endpoint, ClassTransient, err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		class, wait := ClassifyStatus(resp.StatusCode, resp.Header.Get("Retry-After"))
		ae := &Error{
			Endpoint:   spec.Endpoint,
			Class:      class,
			StatusCode: resp.StatusCode,
			Message:    string(data),
			RetryAfter: wait,
		}
		return ae
	}

	if spec.Out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(spec.Out); err != nil && err != io.EOF {
		return NewError(spec.Endpoint, ClassInternal, fmt.Sprintf("decoding response: %v", err), err)
	}
	return nil
}

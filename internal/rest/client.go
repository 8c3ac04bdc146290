package rest

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

	"github.com/google/uuid"
	"github.com/openbasket/storefront-client/internal/session"
	pkgerrors "github.com/openbasket/storefront-client/pkg/errors"
	"github.com/openbasket/storefront-client/pkg/logger"
	"github.com/openbasket/storefront-client/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	headerPlatform    = "X-Platform"
	headerFingerprint = "X-Device-Fingerprint"
	headerRequestID   = "X-Request-ID"

	defaultTimeout = 30 * time.Second
)

// Options configures the backend client.
type Options struct {
	BaseURL     string
	UserAgent   string
	Platform    string
	Fingerprint string
	HTTPClient  *http.Client
	Session     *session.Store
	Logger      *logger.Logger
	Metrics     *metrics.ClientMetrics
}

// Client wraps every backend call with identity headers, bearer auth,
// envelope unwrapping, and the token-refresh interceptor.
type Client struct {
	baseURL     string
	userAgent   string
	platform    string
	fingerprint string
	http        *http.Client
	session     *session.Store
	logger      *logger.Logger
	metrics     *metrics.ClientMetrics
	refresh     singleflight.Group
}

// NewClient validates the options and builds a client. The device
// fingerprint is generated once per process when not pinned by config.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url required")
	}
	if opts.Session == nil {
		return nil, fmt.Errorf("session store required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = "storefront-client/1.0"
	}
	platform := strings.TrimSpace(opts.Platform)
	if platform == "" {
		platform = "web"
	}
	fingerprint := strings.TrimSpace(opts.Fingerprint)
	if fingerprint == "" {
		fingerprint = uuid.NewString()
	}
	return &Client{
		baseURL:     baseURL,
		userAgent:   userAgent,
		platform:    platform,
		fingerprint: fingerprint,
		http:        httpClient,
		session:     opts.Session,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}, nil
}

// Fingerprint returns the stable per-install device identifier.
func (c *Client) Fingerprint() string {
	return c.fingerprint
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// SkipAuth suppresses the Authorization header; used by public
	// catalog reads and by the refresh call itself.
	SkipAuth bool
}

// Do performs the request, unwraps the response envelope into out (when
// non-nil), and drives the refresh-and-retry-once recovery on transient
// auth failures.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	data, err := c.attempt(ctx, req)
	if err == nil {
		return decodeInto(data, out)
	}

	if c.session.LoggingOut() {
		return err
	}
	if isAuthEndpoint(req.Path) {
		if isRefreshEndpoint(req.Path) {
			c.session.ForceClear()
		}
		return err
	}

	reason := normalizeAuthReason(err)
	if reason == "" {
		return err
	}
	if c.clearIfFatal(ctx, reason) {
		return err
	}
	if _, transient := transientAuthReasons[reason]; !transient {
		return err
	}

	if refreshErr := c.refreshTokens(ctx); refreshErr != nil {
		if errors.Is(refreshErr, errLogoutDuringRefresh) {
			return err
		}
		return refreshErr
	}

	c.metrics.IncRetry()
	data, retryErr := c.attempt(ctx, req)
	if retryErr != nil {
		// A fatal reason on the retried request still invalidates the
		// freshly minted tokens.
		c.clearIfFatal(ctx, normalizeAuthReason(retryErr))
		return retryErr
	}
	return decodeInto(data, out)
}

// clearIfFatal wipes the session when the reason names an account state
// no refresh can recover. Reports whether it cleared.
func (c *Client) clearIfFatal(ctx context.Context, reason string) bool {
	if _, fatal := fatalAuthReasons[reason]; !fatal {
		return false
	}
	c.logger.Warn(ctx, "fatal auth failure, clearing session")
	c.session.ForceClear()
	return true
}

func (c *Client) attempt(ctx context.Context, req Request) (json.RawMessage, error) {
	endpoint := c.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding request body")
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building request")
	}
	c.setIdentityHeaders(httpReq)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if !req.SkipAuth {
		if token := c.session.AccessToken(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.ObserveRequest(req.Path, "transport_error", time.Since(start))
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransport, err, "request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveRequest(req.Path, "transport_error", time.Since(start))
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransport, err, "reading response")
	}

	data, err := decodeEnvelope(resp.StatusCode, payload)
	if err != nil {
		c.metrics.ObserveRequest(req.Path, "backend_error", time.Since(start))
		return nil, err
	}
	c.metrics.ObserveRequest(req.Path, "success", time.Since(start))
	return data, nil
}

func (c *Client) setIdentityHeaders(httpReq *http.Request) {
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(headerPlatform, c.platform)
	httpReq.Header.Set(headerFingerprint, c.fingerprint)
	httpReq.Header.Set(headerRequestID, uuid.NewString())
}

func decodeInto(data json.RawMessage, out any) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeBackend, err, "decoding response data")
	}
	return nil
}

package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/booksdata/config"
)

// Transport fetches site-relative paths against a fixed base URL. All fetches
// of one session share a single pooled connection set and DNS resolver.
type Transport struct {
	cfg     *config.Config
	baseURL string
	host    string
	headers http.Header
	payload []byte
	metrics *Metrics

	roundTripper http.RoundTripper

	mu      sync.Mutex
	session *session
}

type session struct {
	id        string
	collector *colly.Collector
	pool      *http.Transport
	cache     *lru.Cache[string, string]
}

// TransportOption customises a Transport.
type TransportOption func(*Transport)

// WithRoundTripper replaces the pooled HTTP transport, mainly for tests.
func WithRoundTripper(rt http.RoundTripper) TransportOption {
	return func(t *Transport) {
		t.roundTripper = rt
	}
}

// WithTransportMetrics attaches collectors to the transport.
func WithTransportMetrics(m *Metrics) TransportOption {
	return func(t *Transport) {
		t.metrics = m
	}
}

// NewTransport builds a transport from cfg. No connection resources are held
// until the first Open or Fetch.
func NewTransport(cfg *config.Config, opts ...TransportOption) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	baseURL := cfg.NormalizedBaseURL()
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	headers := make(http.Header, len(cfg.Headers))
	for key, value := range cfg.Headers {
		headers.Set(key, value)
	}
	if headers.Get("User-Agent") == "" {
		headers.Set("User-Agent", cfg.UserAgent)
	}

	t := &Transport{
		cfg:     cfg,
		baseURL: baseURL,
		host:    parsed.Hostname(),
		headers: headers,
	}
	if cfg.Payload != "" {
		t.payload = []byte(cfg.Payload)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// BaseURL returns the normalized base URL paths are appended to.
func (t *Transport) BaseURL() string {
	return t.baseURL
}

// URL returns the absolute URL for a site-relative path.
func (t *Transport) URL(path string) string {
	return t.baseURL + path
}

// Open acquires the session's connection resources. It is a no-op on an open
// session and re-acquires after Close.
func (t *Transport) Open() error {
	_, err := t.acquire()
	return err
}

// SessionID identifies the open session, empty when released.
func (t *Transport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return ""
	}
	return t.session.id
}

// Close releases the session's connections. Closing a released session only
// logs.
func (t *Transport) Close() error {
	t.mu.Lock()
	s := t.session
	t.session = nil
	t.mu.Unlock()

	if s == nil {
		slog.Debug("session already closed")
		return nil
	}
	if s.pool != nil {
		s.pool.CloseIdleConnections()
	}
	if s.cache != nil {
		s.cache.Purge()
	}
	slog.Debug("session closed", slog.String("session", s.id))
	return nil
}

func (t *Transport) acquire() (*session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil {
		return t.session, nil
	}

	s := &session{id: uuid.NewString()}

	var rt http.RoundTripper
	if t.roundTripper != nil {
		rt = t.roundTripper
	} else {
		s.pool = newHTTPTransport(t.cfg)
		rt = s.pool
	}

	// colly truncates silently at its limit; reading one byte past the
	// configured size lets do() report the overflow instead.
	bodyLimit := 0
	if t.cfg.MaxBodySize > 0 {
		bodyLimit = t.cfg.MaxBodySize + 1
	}
	collector := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.AllowedDomains(t.host),
		colly.UserAgent(t.cfg.UserAgent),
		colly.MaxBodySize(bodyLimit),
	)
	collector.ParseHTTPErrorResponse = true
	collector.SetRequestTimeout(t.cfg.Timeout)
	collector.WithTransport(rt)
	s.collector = collector

	if t.cfg.CacheSize > 0 {
		cache, err := lru.New[string, string](t.cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create body cache: %w", err)
		}
		s.cache = cache
	}

	t.session = s
	slog.Debug("session opened", slog.String("session", s.id), slog.String("base_url", t.baseURL))
	return s, nil
}

// Fetch requests path relative to the base URL and returns the full body.
// Status codes outside 200-399 fail with ErrHTTPStatus, timeouts with
// ErrTimeout and bodies over Config.MaxBodySize with ErrBodyTooLarge.
func (t *Transport) Fetch(ctx context.Context, path string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s, err := t.acquire()
	if err != nil {
		return "", err
	}

	target := t.URL(path)
	if s.cache != nil {
		if body, ok := s.cache.Get(target); ok {
			t.metrics.IncCacheHit()
			return body, nil
		}
	}

	t.metrics.IncRequest("started")
	start := time.Now()
	body, err := t.do(ctx, s, target)
	t.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		t.metrics.IncRequest("failed")
		t.metrics.IncError(errorTypeLabel(err))
		return "", err
	}
	t.metrics.IncRequest("succeeded")

	if s.cache != nil {
		s.cache.Add(target, body)
	}
	return body, nil
}

func (t *Transport) do(ctx context.Context, s *session, target string) (string, error) {
	collector := s.collector.Clone()
	collector.ParseHTTPErrorResponse = true
	collector.AllowURLRevisit = true

	var (
		body    string
		respErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		final := r.Request.URL.String()
		if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusBadRequest {
			respErr = ErrHTTPStatus{StatusCode: r.StatusCode, URL: final}
			return
		}
		if limit := t.cfg.MaxBodySize; limit > 0 && len(r.Body) > limit {
			respErr = ErrBodyTooLarge{URL: final, Limit: limit}
			return
		}
		body = string(r.Body)
		slog.Info("fetched",
			slog.Int("status", r.StatusCode),
			slog.String("url", final),
			slog.String("session", s.id),
		)
	})

	var payload io.Reader
	if t.payload != nil {
		payload = bytes.NewReader(t.payload)
	}

	done := make(chan error, 1)
	go func() {
		done <- collector.Request(http.MethodGet, target, payload, nil, t.headers.Clone())
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("fetch %s: %w", target, classifyError(ctx.Err()))
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", target, classifyError(err))
		}
		if respErr != nil {
			return "", respErr
		}
		return body, nil
	}
}

func newHTTPTransport(cfg *config.Config) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
		Resolver:  newResolver(cfg.Nameservers, cfg.ConnectTimeout),
	}
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// newResolver returns a Go resolver that rotates over nameservers, or nil to
// use the system resolver.
func newResolver(nameservers []string, timeout time.Duration) *net.Resolver {
	if len(nameservers) == 0 {
		return nil
	}
	servers := append([]string(nil), nameservers...)
	dialer := &net.Dialer{Timeout: timeout}
	var next uint32
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			i := atomic.AddUint32(&next, 1) - 1
			return dialer.DialContext(ctx, network, servers[int(i)%len(servers)])
		},
	}
}

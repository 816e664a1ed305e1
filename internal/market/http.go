// Package market provides read-only market data feeds: DexScreener pairs,
// Birdeye token lists, prices and holder distribution.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lobbi-trader/internal/observability"
)

// DefaultTimeout bounds every feed call.
const DefaultTimeout = 12 * time.Second

const maxBody = 2 << 20

// Cache stores raw feed responses. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// fetcher performs GET requests and decodes JSON bodies.
type fetcher struct {
	service string
	http    *http.Client
	cache   Cache
	ttl     time.Duration
	headers map[string]string
}

func newFetcher(service string, client *http.Client, cache Cache, ttl time.Duration) fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return fetcher{service: service, http: client, cache: cache, ttl: ttl}
}

func buildURL(base, def, path string, query map[string]string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = def
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// getJSON fetches u and decodes it into out. op names the call for metrics.
func (f fetcher) getJSON(ctx context.Context, op, u string, out any) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordExternalCall(f.service, op, time.Since(start).Seconds(), err)
	}()

	cacheKey := "mkt:" + f.service + ":" + u
	if f.cache != nil && f.ttl > 0 {
		if b, found, cerr := f.cache.Get(ctx, cacheKey); cerr == nil && found && json.Valid(b) {
			return json.Unmarshal(b, out)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s http %d", f.service, resp.StatusCode)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%s decode: %w", f.service, err)
	}

	if f.cache != nil && f.ttl > 0 {
		_ = f.cache.Set(ctx, cacheKey, b, f.ttl)
	}
	return nil
}

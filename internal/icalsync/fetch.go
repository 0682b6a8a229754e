package icalsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cowork/pkg/logger"
	"cowork/pkg/model"
	"cowork/pkg/sanitizer"

	"golang.org/x/sync/errgroup"
)

const maxConcurrentFetches = 8

// FetchResult is the outcome for one import URL. Exactly one of Err,
// NotModified or Body describes it.
type FetchResult struct {
	URL          string
	Body         []byte
	NotModified  bool
	ETag         string
	LastModified string
	Err          error
}

type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	log      *logger.Logger
}

func NewFetcher(client *http.Client, timeout time.Duration, maxBytes int, log *logger.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{
		client:   client,
		timeout:  timeout,
		maxBytes: int64(maxBytes),
		log:      log,
	}
}

// FetchAll fetches every URL concurrently, each under its own timeout. Results
// keep the order of urls; a failing URL never affects the others.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, state *model.SyncState) []FetchResult {
	results := make([]FetchResult, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, url := range urls {
		var prev *model.SourceResult
		if state != nil {
			prev = state.SourceByURL(url)
		}
		g.Go(func() error {
			results[i] = f.Fetch(gctx, url, prev)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Fetch performs one conditional GET using the validators remembered in prev.
func (f *Fetcher) Fetch(ctx context.Context, url string, prev *model.SourceResult) FetchResult {
	res := FetchResult{URL: url}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Err = &SyncFetchError{URL: url, Err: err}
		return res
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	if prev != nil && prev.LastSuccess != nil {
		if prev.ETag != "" {
			req.Header.Set("If-None-Match", prev.ETag)
		}
		if prev.LastModified != "" {
			req.Header.Set("If-Modified-Since", prev.LastModified)
		}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		res.Err = &SyncFetchError{URL: url, Err: err}
		f.log.Warn("Feed fetch failed", "url", sanitizer.RedactURL(url), "error", err)
		return res
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		res.NotModified = true
		if prev != nil {
			res.ETag = prev.ETag
			res.LastModified = prev.LastModified
		}
		f.log.Debug("Feed not modified", "url", sanitizer.RedactURL(url))
		return res
	default:
		res.Err = &SyncFetchError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
		f.log.Warn("Feed fetch returned non-OK status", "url", sanitizer.RedactURL(url), "status", resp.StatusCode)
		return res
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		res.Err = &SyncFetchError{URL: url, Err: err}
		return res
	}
	if int64(len(body)) > f.maxBytes {
		res.Err = &SyncFetchError{URL: url, Err: errors.New("feed exceeds size limit")}
		f.log.Warn("Feed too large", "url", sanitizer.RedactURL(url), "limit_bytes", f.maxBytes)
		return res
	}

	res.Body = body
	res.ETag = resp.Header.Get("ETag")
	res.LastModified = resp.Header.Get("Last-Modified")
	f.log.Debug("Feed fetched",
		"url", sanitizer.RedactURL(url),
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}

// Package fetcher retrieves plenary sitting transcripts from the Parliament
// document server.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Kind classifies the outcome of one fetch.
type Kind string

const (
	KindOK       Kind = "ok"
	KindNotFound Kind = "http_404"
	KindHTTP     Kind = "http_other"
	KindTimeout  Kind = "timeout"
	KindTooShort Kind = "too_short"
)

// Result is the outcome of fetching one sitting date.
type Result struct {
	Kind Kind
	Body []byte
	// StatusCode is set for http_other outcomes.
	StatusCode int
}

// OK reports whether the fetch produced a usable body.
func (r Result) OK() bool { return r.Kind == KindOK }

const (
	defaultUserAgent = "plenary-pipeline/1.0 (+https://hemicycle.dev/plenary)"
	minBodyBytes     = 500
	maxBodyBytes     = 32 * 1024 * 1024

	maxAttempts    = 3
	initialBackoff = time.Second
)

// Options controls HTTP behavior.
type Options struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Fetcher downloads sitting HTML. Safe for concurrent use.
type Fetcher struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func New(opts Options) *Fetcher {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = "https://www.europarl.europa.eu"
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{baseURL: base, userAgent: userAgent, client: client}
}

// SittingURL composes the English transcript URL for a date, selecting the
// term prefix from the term table.
func (f *Fetcher) SittingURL(day time.Time) string {
	return fmt.Sprintf("%s/doceo/document/CRE-%d-%s_EN.html",
		f.baseURL, TermForDate(day), day.Format("2006-01-02"))
}

// FetchSitting retrieves the transcript HTML for one date. Transient failures
// are retried up to three times with exponential backoff starting at one
// second; a 404 is permanent and means no sitting was held that day.
func (f *Fetcher) FetchSitting(ctx context.Context, day time.Time) (Result, error) {
	url := f.SittingURL(day)

	var last Result
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := f.fetchOnce(ctx, url)
		if err != nil {
			return Result{}, err
		}
		last = result

		switch result.Kind {
		case KindOK, KindNotFound, KindTooShort:
			return result, nil
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	return last, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if isTimeout(err) {
			return Result{Kind: KindTimeout}, nil
		}
		return Result{Kind: KindHTTP}, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Result{Kind: KindNotFound, StatusCode: resp.StatusCode}, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Result{Kind: KindHTTP, StatusCode: resp.StatusCode}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return Result{Kind: KindTimeout}, nil
		}
		return Result{Kind: KindHTTP}, nil
	}
	if len(body) < minBodyBytes {
		return Result{Kind: KindTooShort, Body: body}, nil
	}
	return Result{Kind: KindOK, Body: body, StatusCode: resp.StatusCode}, nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

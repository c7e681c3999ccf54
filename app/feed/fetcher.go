package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const maxFeedBytes = 10 << 20

type Fetcher struct {
	client *resty.Client
}

func NewFetcher(userAgent string, timeout time.Duration) *Fetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	return &Fetcher{client: client}
}

// Fetch downloads the body at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	if resp.StatusCode() != 200 {
		snippet := strings.TrimSpace(string(resp.Body()))
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), snippet)
	}

	body := resp.Body()
	if len(body) > maxFeedBytes {
		return nil, fmt.Errorf("feed body too large: %d bytes", len(body))
	}

	return body, nil
}

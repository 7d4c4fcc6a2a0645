// Package forum talks to a Flarum-style forum's JSON:API and turns post
// responses into Telegram announcements.
package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PostsResponse is the JSON:API document returned by the posts endpoint.
type PostsResponse struct {
	Data     []PostResource     `json:"data"`
	Included []IncludedResource `json:"included"`
}

// PostResource is a single post resource in the response.
type PostResource struct {
	ID         string `json:"id"`
	Attributes struct {
		CreatedAt   string `json:"createdAt"`
		ContentHTML string `json:"contentHtml"`
		Number      int    `json:"number"`
	} `json:"attributes"`
	Relationships struct {
		Discussion struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"discussion"`
	} `json:"relationships"`
}

// IncludedResource is a sideloaded resource; only discussions are used.
type IncludedResource struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Attributes struct {
		Slug string `json:"slug"`
	} `json:"attributes"`
}

// Client fetches comment listings for single authors.
type Client struct {
	client    HTTPClient
	baseURL   string
	pageLimit int
	retries   int

	// RetryDelay is the wait between fetch attempts.
	RetryDelay time.Duration
}

// NewClient creates a Client. baseURL must not end with a slash.
// pageLimit is the page[limit] sent to the API.
func NewClient(client HTTPClient, baseURL string, pageLimit int) *Client {
	return &Client{
		client:     client,
		baseURL:    baseURL,
		pageLimit:  pageLimit,
		retries:    2,
		RetryDelay: 2 * time.Second,
	}
}

// PostsURL builds the comment listing URL for one author.
func (c *Client) PostsURL(author string) string {
	q := url.Values{}
	q.Set("filter[type]", "comment")
	q.Set("filter[author]", author)
	q.Set("page[offset]", "0")
	q.Set("page[limit]", strconv.Itoa(c.pageLimit))
	q.Set("sort", "-createdAt")
	return c.baseURL + "/api/posts?" + q.Encode()
}

// FetchPosts downloads and decodes the latest comments of one author,
// retrying a bounded number of times on network errors and non-2xx
// responses.
func (c *Client) FetchPosts(ctx context.Context, author string) (*PostsResponse, error) {
	reqURL := c.PostsURL(author)

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.RetryDelay); err != nil {
				return nil, err
			}
		}

		body, err := c.get(ctx, reqURL)
		if err != nil {
			lastErr = err
			continue
		}

		var resp PostsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &resp, nil
	}
	return nil, fmt.Errorf("fetch posts for %q: %w", author, lastErr)
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "ForumNotifyBot/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

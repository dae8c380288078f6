package dvach

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dirtypig/pig/pkg/domain"
)

// Client reads the board's public JSON API
type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// ClientConfig holds Client settings
type ClientConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration // per request
	RateLimit time.Duration // minimal pause between requests, 0 disables pacing
}

// NewClient creates a board API client
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Every(cfg.RateLimit)
	}
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Threads returns the board catalog sorted by sortBy in descending order
func (c *Client) Threads(ctx context.Context, board, sortBy string) ([]domain.ThreadMeta, error) {
	key, err := sortKey(sortBy)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Threads []domain.ThreadMeta `json:"threads"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%s/threads.json", c.baseURL, url.PathEscape(board)), &resp); err != nil {
		return nil, fmt.Errorf("get threads of %s: %w", board, err)
	}

	threads := resp.Threads
	sort.SliceStable(threads, func(i, j int) bool { return key(threads[i]) > key(threads[j]) })
	return threads, nil
}

// Thread returns all posts of a thread
func (c *Client) Thread(ctx context.Context, board string, num domain.Num) (*domain.Thread, error) {
	var resp struct {
		Title      string `json:"title"`
		PostsCount int    `json:"posts_count"`
		Threads    []struct {
			Posts []domain.Post `json:"posts"`
		} `json:"threads"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%s/res/%d.json", c.baseURL, url.PathEscape(board), num), &resp); err != nil {
		return nil, fmt.Errorf("get thread %s/%d: %w", board, num, err)
	}
	if len(resp.Threads) == 0 {
		return nil, fmt.Errorf("thread %s/%d has no posts", board, num)
	}

	posts := resp.Threads[0].Posts
	count := resp.PostsCount
	if count == 0 {
		count = len(posts)
	}
	return &domain.Thread{Num: num, Board: board, Subject: resp.Title, PostsCount: count, Posts: posts}, nil
}

func (c *Client) getJSON(ctx context.Context, urlStr string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	addBrowserHeaders(req, c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, urlStr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", urlStr, err)
	}
	return nil
}

func sortKey(name string) (func(domain.ThreadMeta) float64, error) {
	switch name {
	case "", "posts_count":
		return func(t domain.ThreadMeta) float64 { return float64(t.PostsCount) }, nil
	case "num":
		return func(t domain.ThreadMeta) float64 { return float64(t.Num) }, nil
	case "views":
		return func(t domain.ThreadMeta) float64 { return float64(t.Views) }, nil
	case "score":
		return func(t domain.ThreadMeta) float64 { return t.Score }, nil
	default:
		return nil, fmt.Errorf("unknown sort key %q", name)
	}
}

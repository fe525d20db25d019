// Package instagram fetches recent posts from public profile feeds through
// the web profile endpoint.
package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"showfinder/shows"
)

const (
	defaultBaseURL = "https://www.instagram.com"
	// app ID the instagram web frontend sends; the profile endpoint
	// rejects requests without it
	webAppID  = "936619743392459"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	maxRetries = 3
)

var errRateLimited = errors.New("rate limited")

// Client fetches profile feeds. Anonymous clients pause longer between
// profiles than session-backed ones.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	sessionID    string
	maxPosts     int
	daysBack     int
	profilePause time.Duration // negative selects the automatic pause
	retryPause   time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithSessionID attaches a logged-in web session cookie.
func WithSessionID(id string) Option {
	return func(c *Client) {
		c.sessionID = id
	}
}

// WithMaxPosts caps how many posts are taken per profile.
func WithMaxPosts(n int) Option {
	return func(c *Client) {
		c.maxPosts = n
	}
}

// WithDaysBack drops posts older than the given number of days. Zero
// disables the cutoff.
func WithDaysBack(days int) Option {
	return func(c *Client) {
		c.daysBack = days
	}
}

// WithProfilePause overrides the pause between profile fetches.
func WithProfilePause(d time.Duration) Option {
	return func(c *Client) {
		c.profilePause = d
	}
}

// WithRetryPause overrides the base pause between retry attempts.
func WithRetryPause(d time.Duration) Option {
	return func(c *Client) {
		c.retryPause = d
	}
}

// NewClient creates a feed client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      defaultBaseURL,
		maxPosts:     20,
		daysBack:     7,
		profilePause: -1,
		retryPause:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAuthenticated reports whether a session cookie is attached.
func (c *Client) IsAuthenticated() bool {
	return c.sessionID != ""
}

// ProfilePosts fetches the most recent posts of one profile in feed order,
// newest first. The walk stops at the post cap or at the first post older
// than the cutoff.
func (c *Client) ProfilePosts(ctx context.Context, username string) ([]shows.Post, error) {
	body, err := c.fetchProfile(ctx, username)
	if err != nil {
		return nil, err
	}

	var cutoff time.Time
	if c.daysBack > 0 {
		cutoff = time.Now().AddDate(0, 0, -c.daysBack)
	}

	var posts []shows.Post
	for _, edge := range body.Data.User.Media.Edges {
		if c.maxPosts > 0 && len(posts) >= c.maxPosts {
			break
		}
		node := edge.Node
		taken := time.Unix(node.TakenAt, 0)
		// the feed is newest first, so the first stale post ends the walk
		if !cutoff.IsZero() && taken.Before(cutoff) {
			break
		}
		posts = append(posts, shows.Post{
			Username:  username,
			Caption:   node.captionText(),
			PostURL:   fmt.Sprintf("https://www.instagram.com/p/%s/", node.Shortcode),
			Timestamp: taken,
			ImageURL:  node.imageURL(),
		})
	}
	return posts, nil
}

// RecentPosts fetches every profile and returns all posts sorted newest
// first. A failing profile is logged and skipped; the scan goes on with
// the rest.
func (c *Client) RecentPosts(ctx context.Context, usernames []string) ([]shows.Post, error) {
	var all []shows.Post
	for i, username := range usernames {
		if i > 0 {
			if err := sleep(ctx, c.profileDelay()); err != nil {
				return nil, err
			}
		}
		posts, err := c.ProfilePosts(ctx, username)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			slog.Warn("profile fetch failed", "username", username, "error", err)
			continue
		}
		slog.Info("fetched profile", "username", username, "posts", len(posts))
		all = append(all, posts...)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	return all, nil
}

func (c *Client) fetchProfile(ctx context.Context, username string) (*profileResponse, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.retryPause * time.Duration(attempt) * 2
			slog.Warn("retrying profile fetch", "username", username, "attempt", attempt+1, "wait", wait)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		body, err := c.requestProfile(ctx, username)
		switch {
		case err == nil:
			return body, nil
		case ctx.Err() != nil:
			return nil, err
		case errors.Is(err, errRateLimited), isTransport(err):
			lastErr = err
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("profile %s after %d attempts: %w", username, maxRetries, lastErr)
}

func (c *Client) requestProfile(ctx context.Context, username string) (*profileResponse, error) {
	endpoint := fmt.Sprintf("%s/api/v1/users/web_profile_info/?username=%s", c.baseURL, url.QueryEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-IG-App-ID", webAppID)
	if c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: c.sessionID})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", username, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("profile %s not found", username)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var body profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &body, nil
}

func (c *Client) profileDelay() time.Duration {
	if c.profilePause >= 0 {
		return c.profilePause
	}
	if c.sessionID != "" {
		return 3*time.Second + jitter(time.Second)
	}
	return 10*time.Second + jitter(3*time.Second)
}

func isTransport(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func jitter(max time.Duration) time.Duration {
	return time.Duration(rand.Int63n(int64(max)))
}

type profileResponse struct {
	Data struct {
		User struct {
			Media struct {
				Edges []struct {
					Node postNode `json:"node"`
				} `json:"edges"`
			} `json:"edge_owner_to_timeline_media"`
		} `json:"user"`
	} `json:"data"`
}

type postNode struct {
	Typename   string `json:"__typename"`
	Shortcode  string `json:"shortcode"`
	DisplayURL string `json:"display_url"`
	IsVideo    bool   `json:"is_video"`
	TakenAt    int64  `json:"taken_at_timestamp"`
	Caption    struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
}

func (n postNode) captionText() string {
	if len(n.Caption.Edges) == 0 {
		return ""
	}
	return n.Caption.Edges[0].Node.Text
}

// imageURL returns the still image for plain image posts. Videos and other
// media types have nothing OCR can use.
func (n postNode) imageURL() string {
	if n.Typename == "GraphImage" && !n.IsVideo {
		return n.DisplayURL
	}
	return ""
}

var profileRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`instagram\.com/([^/?]+)`),
	regexp.MustCompile(`^([a-zA-Z0-9._]+)$`),
}

// ParseProfileRef extracts a username from a profile URL, an @handle, or a
// bare username.
func ParseProfileRef(ref string) (string, error) {
	ref = strings.ReplaceAll(strings.TrimSpace(ref), "@", "")
	for _, re := range profileRefPatterns {
		m := re.FindStringSubmatch(ref)
		if m == nil {
			continue
		}
		if username := m[1]; validUsername(username) {
			return username, nil
		}
	}
	return "", fmt.Errorf("not a profile link or username: %q", ref)
}

func validUsername(s string) bool {
	alnum := 0
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			alnum++
		case r == '.', r == '_':
		default:
			return false
		}
	}
	return alnum > 0
}

// Package console fetches notification feeds from the subsidy console
// backend.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/nhle/subsidy-console/internal/model"
	"github.com/nhle/subsidy-console/internal/source"
)

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 8 << 20

// Client is a thin HTTP client for the console's notification endpoint.
// It handles Bearer token authentication, response validation, and
// automatic retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    func(resp *http.Response, attempt int) time.Duration
}

// NewClient creates a client for the backend at baseURL
// (e.g., https://console.agri-subsidy.example.org).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		backoff:    retryAfterDuration,
	}
}

// FetchNotifications performs GET /api/notifications/{role} and decodes
// the "notifications" array of the JSON response. Transport errors,
// non-2xx statuses and non-JSON bodies are all returned as errors.
func (c *Client) FetchNotifications(
	ctx context.Context,
	role string,
	token string,
) ([]model.Notification, error) {
	path := "/api/notifications/" + url.PathEscape(role)

	body, err := c.get(ctx, path, role, token)
	if err != nil {
		return nil, err
	}

	return decodeFeed(body)
}

// get performs the request, retrying on 429, and returns the body of a
// successful JSON response.
func (c *Client) get(ctx context.Context, path, role, token string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request GET %s: %w", path, err)
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429) on GET %s", path)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, &source.AuthError{
				Role:    role,
				Message: "session token rejected (401); sign in again",
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf(
				"unexpected status %d on GET %s: %s",
				resp.StatusCode, path, snippet(respBody),
			)
		}

		contentType := resp.Header.Get("Content-Type")
		if !isJSONContentType(contentType) {
			return nil, &source.FormatError{
				ContentType: contentType,
				Reason:      "expected application/json: " + snippet(respBody),
			}
		}

		return respBody, nil
	}

	return nil, fmt.Errorf(
		"max retries (%d) exceeded: %w", c.maxRetries, lastErr,
	)
}

// decodeFeed validates the envelope with gjson before decoding the list,
// so HTML or truncated bodies served with a JSON content type still fail.
func decodeFeed(body []byte) ([]model.Notification, error) {
	if !gjson.ValidBytes(body) {
		return nil, &source.FormatError{
			ContentType: "application/json",
			Reason:      "body is not valid JSON: " + snippet(body),
		}
	}

	feed := gjson.GetBytes(body, "notifications")
	if !feed.IsArray() {
		return nil, &source.FormatError{
			ContentType: "application/json",
			Reason:      `missing "notifications" array`,
		}
	}

	var list []model.Notification
	if err := json.Unmarshal([]byte(feed.Raw), &list); err != nil {
		return nil, fmt.Errorf("decoding notifications: %w", err)
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}

func isJSONContentType(header string) bool {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// snippet shortens a response body for error messages.
func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

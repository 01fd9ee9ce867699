package qbittorrent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to the qBittorrent Web API v2 directly. Authentication is
// cookie based; the client owns the session lifecycle and re-login
// happens transparently on first use and after invalidation.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     zerolog.Logger
	sessions   *sessionManager
}

// NewClient creates a qBittorrent client. No request is issued until the
// first API call needs a session.
func NewClient(baseURL, username, password string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("qBittorrent URL is required")
	}
	if username == "" {
		return nil, fmt.Errorf("qBittorrent username is required")
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: options.timeout},
		logger:     logger,
	}
	c.sessions = newSessionManager(c.doLogin, options.sessionTTL, logger)

	return c, nil
}

// Login forces a credential exchange, replacing any current session. Used
// to verify connectivity up front.
func (c *Client) Login(ctx context.Context) error {
	c.sessions.invalidate()
	_, err := c.sessions.cookie(ctx)
	return err
}

// InvalidateSession discards the current session cookie so the next API
// call performs a fresh login.
func (c *Client) InvalidateSession() {
	c.sessions.invalidate()
}

// TransferLimits reads the current global transfer caps.
func (c *Client) TransferLimits(ctx context.Context) (TransferLimits, error) {
	upload, err := c.getLimit(ctx, "/transfer/uploadLimit")
	if err != nil {
		return TransferLimits{}, err
	}
	download, err := c.getLimit(ctx, "/transfer/downloadLimit")
	if err != nil {
		return TransferLimits{}, err
	}

	limits := TransferLimits{UploadBps: upload, DownloadBps: download}
	c.logger.Debug().Str("limits", limits.String()).Msg("Fetched current transfer limits")
	return limits, nil
}

// SetTransferLimits writes both global transfer caps.
func (c *Client) SetTransferLimits(ctx context.Context, limits TransferLimits) error {
	if err := c.setLimit(ctx, "/transfer/setUploadLimit", limits.UploadBps); err != nil {
		return fmt.Errorf("failed to set upload limit: %w", err)
	}
	if err := c.setLimit(ctx, "/transfer/setDownloadLimit", limits.DownloadBps); err != nil {
		return fmt.Errorf("failed to set download limit: %w", err)
	}

	c.logger.Debug().Str("limits", limits.String()).Msg("Applied transfer limits")
	return nil
}

func (c *Client) getLimit(ctx context.Context, endpoint string) (int64, error) {
	body, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	limit, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s returned %q", ErrMalformedResponse, endpoint, string(body))
	}
	return limit, nil
}

func (c *Client) setLimit(ctx context.Context, endpoint string, bps int64) error {
	form := url.Values{}
	form.Set("limit", strconv.FormatInt(bps, 10))

	_, err := c.doRequest(ctx, http.MethodPost, endpoint, form)
	return err
}

// doRequest performs an authenticated Web API request. A 401/403 response
// invalidates the session before the error is returned, so the next
// attempt starts with a fresh login.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, form url.Values) ([]byte, error) {
	cookie, err := c.sessions.cookie(ctx)
	if err != nil {
		return nil, err
	}

	requestURL := fmt.Sprintf("%s/api/v2%s", c.baseURL, endpoint)

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Cookie", cookie)
	req.Header.Set("Referer", c.baseURL)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Body:       strings.TrimSpace(string(body)),
		}
		if apiErr.IsUnauthorized() {
			c.logger.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).
				Msg("Session rejected by qBittorrent, invalidating")
			c.sessions.invalidate()
		}
		return nil, apiErr
	}

	return body, nil
}

// doLogin exchanges credentials for a session cookie.
func (c *Client) doLogin(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	requestURL := fmt.Sprintf("%s/api/v2/auth/login", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	// The Web API refuses logins without a Referer matching the host.
	req.Header.Set("Referer", c.baseURL)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   "/auth/login",
			Body:       strings.TrimSpace(string(body)),
		}
	}

	// qBittorrent answers 200 with "Fails." on bad credentials.
	if strings.TrimSpace(string(body)) == "Fails." {
		return "", fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "SID" && cookie.Value != "" {
			return fmt.Sprintf("SID=%s", cookie.Value), nil
		}
	}

	return "", ErrNoCookie
}

// timeout helpers shared by the option defaults.
const defaultTimeout = 30 * time.Second

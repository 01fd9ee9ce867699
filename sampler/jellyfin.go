package sampler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// JellyfinProvider reports SignalStreaming while any Jellyfin playback
// session has been active within the configured window.
type JellyfinProvider struct {
	baseURL      string
	apiToken     string
	activeWithin time.Duration
	httpClient   *http.Client
	logger       zerolog.Logger
}

// NewJellyfinProvider creates a Jellyfin signal provider.
func NewJellyfinProvider(baseURL, apiToken string, activeWithin time.Duration, logger zerolog.Logger) (*JellyfinProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("jellyfin URL is required")
	}
	if apiToken == "" {
		return nil, fmt.Errorf("jellyfin API token is required")
	}
	if activeWithin <= 0 {
		activeWithin = time.Minute
	}

	return &JellyfinProvider{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiToken:     apiToken,
		activeWithin: activeWithin,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		logger:       logger,
	}, nil
}

// Name implements SignalProvider.
func (p *JellyfinProvider) Name() string {
	return "jellyfin"
}

// Query asks Jellyfin for recently active sessions. Session details are
// irrelevant here, only whether any exist.
func (p *JellyfinProvider) Query(ctx context.Context) (string, error) {
	requestURL := fmt.Sprintf("%s/Sessions?activeWithinSeconds=%d", p.baseURL, int(p.activeWithin.Seconds()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("MediaBrowser Token=%s", p.apiToken))
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignalUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", ErrSignalUnavailable, resp.StatusCode)
	}

	var sessions []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return "", fmt.Errorf("%w: failed to decode sessions: %v", ErrSignalUnavailable, err)
	}

	p.logger.Debug().Int("sessions", len(sessions)).Msg("Queried Jellyfin sessions")

	if len(sessions) > 0 {
		return SignalStreaming, nil
	}
	return "", nil
}

package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golift.io/starr"
	"golift.io/starr/radarr"
)

// arrQueueAPI is the part of the starr client the provider uses.
type arrQueueAPI interface {
	GetQueueContext(ctx context.Context, records, perPage int) (*radarr.Queue, error)
}

// ArrProvider reports SignalArrDownloading while a Radarr queue item is
// actively downloading, so other *arr traffic can trigger a throttle.
type ArrProvider struct {
	client arrQueueAPI
	logger zerolog.Logger
}

// NewArrProvider creates a Radarr queue signal provider.
func NewArrProvider(url, apiKey string, logger zerolog.Logger) (*ArrProvider, error) {
	if url == "" {
		return nil, fmt.Errorf("radarr URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("radarr API key is required")
	}

	config := starr.New(apiKey, url, 15*time.Second)

	return &ArrProvider{
		client: radarr.New(config),
		logger: logger,
	}, nil
}

// Name implements SignalProvider.
func (p *ArrProvider) Name() string {
	return "radarr-queue"
}

// Query checks the download queue for records that are actively pulling
// data.
func (p *ArrProvider) Query(ctx context.Context) (string, error) {
	queue, err := p.client.GetQueueContext(ctx, 100, 1)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignalUnavailable, err)
	}

	for _, record := range queue.Records {
		if record.Status == "downloading" {
			p.logger.Debug().Str("title", record.Title).Msg("Radarr queue is downloading")
			return SignalArrDownloading, nil
		}
	}

	return "", nil
}

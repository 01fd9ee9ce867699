package sampler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrSignalUnavailable indicates a signal source could not be reached.
// It is never fatal to a tick; the sampler degrades to an observation
// without a signal.
var ErrSignalUnavailable = errors.New("signal source unavailable")

// Well-known signal states reported by the built-in providers.
const (
	SignalStreaming      = "streaming"
	SignalArrDownloading = "arr-downloading"
)

// Observation is the sampled input for a single tick.
type Observation struct {
	At     time.Time
	Signal string // empty when no external activity was detected
}

// SignalProvider reports a named activity state, or an empty string when
// the source is idle.
type SignalProvider interface {
	Name() string
	Query(ctx context.Context) (string, error)
}

// Sampler produces one Observation per tick from the local clock and an
// ordered list of signal providers.
type Sampler struct {
	providers []SignalProvider
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates a sampler. Providers are queried in the given order; the
// first active state wins.
func New(logger zerolog.Logger, providers ...SignalProvider) *Sampler {
	return &Sampler{
		providers: providers,
		logger:    logger,
		now:       time.Now,
	}
}

// Sample reads the clock and polls the signal providers. A provider
// failure is logged and skipped; Sample itself never fails.
func (s *Sampler) Sample(ctx context.Context) Observation {
	obs := Observation{At: s.now()}

	for _, p := range s.providers {
		signal, err := p.Query(ctx)
		if err != nil {
			s.logger.Debug().
				Err(err).
				Str("provider", p.Name()).
				Msg("Signal provider unavailable, continuing without it")
			continue
		}
		if signal != "" {
			obs.Signal = signal
			break
		}
	}

	return obs
}

// Package reconcile converges the remote client's transfer limits with
// the desired cap targets, reading fresh remote state every attempt and
// writing only on divergence.
package reconcile

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"github.com/s0up4200/qbthrottle/qbittorrent"
	"github.com/s0up4200/qbthrottle/schedule"
)

// Outcome classifies one reconciliation pass.
type Outcome int

const (
	// Applied means the remote limits diverged and a write fixed them.
	Applied Outcome = iota
	// AlreadyConverged means the remote limits already matched; no
	// write was issued.
	AlreadyConverged
	// Deferred means the pass gave up for this tick; the next tick
	// retries from a fresh snapshot.
	Deferred
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case AlreadyConverged:
		return "already-converged"
	case Deferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// Result is the outcome of a reconciliation pass. Err is set only for
// Deferred.
type Result struct {
	Outcome Outcome
	Limits  qbittorrent.TransferLimits
	Err     error
}

// LimitsClient is the part of the qBittorrent client reconciliation
// needs.
type LimitsClient interface {
	TransferLimits(ctx context.Context) (qbittorrent.TransferLimits, error)
	SetTransferLimits(ctx context.Context, limits qbittorrent.TransferLimits) error
	InvalidateSession()
}

// RetryPolicy bounds the in-tick retry behavior for transient failures.
type RetryPolicy struct {
	Attempts  uint
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy mirrors the behavior of a short tick: a few quick
// attempts, then defer to the next tick.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: time.Second,
		MaxDelay:  10 * time.Second,
	}
}

// Reconciler applies cap targets to a qBittorrent client.
type Reconciler struct {
	client LimitsClient
	policy RetryPolicy
	logger zerolog.Logger
}

// New creates a reconciler.
func New(client LimitsClient, policy RetryPolicy, logger zerolog.Logger) *Reconciler {
	if policy.Attempts == 0 {
		policy = DefaultRetryPolicy()
	}
	return &Reconciler{
		client: client,
		policy: policy,
		logger: logger,
	}
}

// Reconcile makes the remote limits match targets. Transient failures are
// retried with exponential backoff within the policy's bounds. An
// authentication failure invalidates the session and the whole sequence
// is retried once with a fresh login; a second failure defers to the next
// tick. Reconcile never returns a fatal error.
func (r *Reconciler) Reconcile(ctx context.Context, targets schedule.Targets) Result {
	desired := qbittorrent.FromKiB(targets.UploadKiB, targets.DownloadKiB)

	result := r.run(ctx, desired)
	if result.Outcome == Deferred && qbittorrent.IsUnauthorized(result.Err) {
		r.logger.Warn().Err(result.Err).Msg("Session rejected mid-reconcile, retrying once with fresh login")
		r.client.InvalidateSession()
		result = r.run(ctx, desired)
	}

	return result
}

// run performs the fetch-compare-write sequence under the backoff policy.
// Every attempt re-reads the remote limits so a retry never acts on stale
// state.
func (r *Reconciler) run(ctx context.Context, desired qbittorrent.TransferLimits) Result {
	var result Result

	err := retry.Do(
		func() error {
			res, err := r.attempt(ctx, desired)
			if err != nil {
				return err
			}
			result = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.policy.Attempts),
		retry.Delay(r.policy.BaseDelay),
		retry.MaxDelay(r.policy.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		// Auth failures abort the backoff loop; they are handled by the
		// single fresh-login retry in Reconcile.
		retry.RetryIf(func(err error) bool {
			return !qbittorrent.IsUnauthorized(err)
		}),
		retry.OnRetry(func(attempt uint, err error) {
			r.logger.Warn().
				Err(err).
				Uint("attempt", attempt+1).
				Uint("max_attempts", r.policy.Attempts).
				Msg("Reconcile attempt failed, backing off")
		}),
	)
	if err != nil {
		return Result{Outcome: Deferred, Err: err}
	}

	return result
}

func (r *Reconciler) attempt(ctx context.Context, desired qbittorrent.TransferLimits) (Result, error) {
	current, err := r.client.TransferLimits(ctx)
	if err != nil {
		return Result{}, err
	}

	if current.Equal(desired) {
		return Result{Outcome: AlreadyConverged, Limits: current}, nil
	}

	if err := r.client.SetTransferLimits(ctx, desired); err != nil {
		return Result{}, err
	}

	return Result{Outcome: Applied, Limits: desired}, nil
}

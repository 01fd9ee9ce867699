package qbittorrent

import "time"

// Option configures a Client.
type Option func(*clientOptions)

// clientOptions holds configuration options for the Client.
type clientOptions struct {
	timeout    time.Duration
	sessionTTL time.Duration
}

func defaultOptions() clientOptions {
	return clientOptions{
		timeout: defaultTimeout,
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithSessionTTL makes the client refresh its session cookie proactively
// once the TTL passes, instead of waiting for a request to be rejected.
// qBittorrent does not report cookie lifetime, so this mirrors the
// server-side "session timeout" setting when known. Zero disables
// proactive refresh.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *clientOptions) {
		if ttl > 0 {
			o.sessionTTL = ttl
		}
	}
}

package sampler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name   string
	signal string
	err    error
	calls  int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Query(ctx context.Context) (string, error) {
	s.calls++
	return s.signal, s.err
}

func TestSampleWithoutProviders(t *testing.T) {
	s := New(zerolog.Nop())

	obs := s.Sample(context.Background())
	assert.False(t, obs.At.IsZero())
	assert.Empty(t, obs.Signal)
}

func TestSampleFirstActiveProviderWins(t *testing.T) {
	idle := &stubProvider{name: "idle"}
	streaming := &stubProvider{name: "jellyfin", signal: SignalStreaming}
	arr := &stubProvider{name: "radarr", signal: SignalArrDownloading}

	s := New(zerolog.Nop(), idle, streaming, arr)

	obs := s.Sample(context.Background())
	assert.Equal(t, SignalStreaming, obs.Signal)
	// Later providers are not queried once a signal is found.
	assert.Equal(t, 1, idle.calls)
	assert.Equal(t, 1, streaming.calls)
	assert.Zero(t, arr.calls)
}

func TestSampleUnavailableProviderIsNotFatal(t *testing.T) {
	broken := &stubProvider{name: "jellyfin", err: fmt.Errorf("%w: boom", ErrSignalUnavailable)}
	arr := &stubProvider{name: "radarr", signal: SignalArrDownloading}

	s := New(zerolog.Nop(), broken, arr)

	obs := s.Sample(context.Background())
	assert.Equal(t, SignalArrDownloading, obs.Signal)
}

func TestSampleAllProvidersUnavailable(t *testing.T) {
	broken := &stubProvider{name: "jellyfin", err: ErrSignalUnavailable}

	s := New(zerolog.Nop(), broken)

	obs := s.Sample(context.Background())
	assert.Empty(t, obs.Signal)
	assert.False(t, obs.At.IsZero())
}

func TestJellyfinProviderQuery(t *testing.T) {
	var sessions string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Sessions", r.URL.Path)
		assert.Equal(t, "60", r.URL.Query().Get("activeWithinSeconds"))
		assert.Equal(t, "MediaBrowser Token=test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sessions)
	}))
	t.Cleanup(server.Close)

	p, err := NewJellyfinProvider(server.URL, "test-token", time.Minute, zerolog.Nop())
	require.NoError(t, err)

	sessions = `[{"Id":"abc"},{"Id":"def"}]`
	signal, err := p.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SignalStreaming, signal)

	sessions = `[]`
	signal, err = p.Query(context.Background())
	require.NoError(t, err)
	assert.Empty(t, signal)
}

func TestJellyfinProviderUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	p, err := NewJellyfinProvider(server.URL, "test-token", time.Minute, zerolog.Nop())
	require.NoError(t, err)

	_, err = p.Query(context.Background())
	assert.ErrorIs(t, err, ErrSignalUnavailable)
}

func TestNewJellyfinProviderValidation(t *testing.T) {
	_, err := NewJellyfinProvider("", "token", time.Minute, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewJellyfinProvider("http://localhost:8096", "", time.Minute, zerolog.Nop())
	assert.Error(t, err)
}

package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alapierre/go-serpro-client/serpro"
	"github.com/alapierre/go-serpro-client/serpro/model"
	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls atomic.Int32
	err   error
	wait  chan struct{}
}

func (s *countingSource) Authenticate(_ context.Context) (model.TokenPair, error) {
	n := s.calls.Add(1)
	if s.wait != nil {
		<-s.wait
	}
	if s.err != nil {
		return model.TokenPair{}, s.err
	}
	return model.TokenPair{
		AccessToken: "access-" + string(rune('0'+n)),
		JwtToken:    "jwt-" + string(rune('0'+n)),
		ExpiresIn:   time.Hour,
	}, nil
}

func TestTokenProvider_CachesUntilSkew(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	src := &countingSource{}
	p := NewTokenProvider(src, WithClock(clock))
	ctx := context.Background()

	first, err := p.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", first.AccessToken)
	assert.Equal(t, "jwt-1", first.JwtToken)

	clock.Advance(time.Hour - 31*time.Second)
	again, err := p.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.EqualValues(t, 1, src.calls.Load())

	clock.Advance(2 * time.Second) // t0 + E - 29s
	refreshed, err := p.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", refreshed.AccessToken)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestTokenProvider_FailureKeepsStaleEntry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &countingSource{}
	p := NewTokenProvider(src, WithClock(clock))
	ctx := context.Background()

	_, err := p.Tokens(ctx)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	src.err = errors.New("connection refused")

	_, err = p.Tokens(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, serpro.ErrAuthentication)

	p.mu.Lock()
	stale := p.cached
	p.mu.Unlock()
	assert.Equal(t, "access-1", stale.AccessToken)

	// next call retries the identity endpoint
	src.err = nil
	tok, err := p.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-3", tok.AccessToken)
}

func TestTokenProvider_Invalidate(t *testing.T) {
	src := &countingSource{}
	p := NewTokenProvider(src)
	ctx := context.Background()

	_, err := p.Tokens(ctx)
	require.NoError(t, err)
	p.Invalidate()
	_, err = p.Tokens(ctx)
	require.NoError(t, err)

	assert.EqualValues(t, 2, src.calls.Load())
}

func TestTokenProvider_ConcurrentRefreshCollapses(t *testing.T) {
	src := &countingSource{wait: make(chan struct{})}
	p := NewTokenProvider(src)
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	results := make([]model.TokenPair, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := p.Tokens(ctx)
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}

	assert.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(src.wait)
	wg.Wait()

	assert.EqualValues(t, 1, src.calls.Load())
	for _, r := range results {
		assert.Equal(t, "access-1", r.AccessToken)
	}
}

func TestTokenPair_ValidAt(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pair := model.TokenPair{AccessToken: "a", ExpiresIn: 100 * time.Second, IssuedAt: t0}

	assert.True(t, pair.ValidAt(t0.Add(69*time.Second), 30*time.Second))
	assert.False(t, pair.ValidAt(t0.Add(70*time.Second), 30*time.Second))
	assert.False(t, model.TokenPair{}.ValidAt(t0, 30*time.Second))
}

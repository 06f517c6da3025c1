package auth

import (
	"context"
	"sync"
	"time"

	"github.com/alapierre/go-serpro-client/serpro"
	"github.com/alapierre/go-serpro-client/serpro/model"
	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// TokenSource produces a fresh token pair. *Authenticator is the production implementation.
type TokenSource interface {
	Authenticate(ctx context.Context) (model.TokenPair, error)
}

// TokenProvider keeps a single cached token pair and refreshes it shortly before it expires.
// Safe for concurrent use; concurrent refreshes collapse into one authentication.
type TokenProvider struct {
	source TokenSource
	clock  clockwork.Clock

	mu     sync.Mutex
	cached model.TokenPair

	group singleflight.Group

	// how long before expiry the pair stops being served
	refreshSkew time.Duration
}

type ProviderOption func(*TokenProvider)

func WithClock(c clockwork.Clock) ProviderOption {
	return func(p *TokenProvider) { p.clock = c }
}

func WithRefreshSkew(d time.Duration) ProviderOption {
	return func(p *TokenProvider) { p.refreshSkew = d }
}

// NewTokenProvider creates an empty provider; the first Tokens call authenticates.
func NewTokenProvider(source TokenSource, opts ...ProviderOption) *TokenProvider {
	p := &TokenProvider{
		source:      source,
		clock:       clockwork.NewRealClock(),
		refreshSkew: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tokens returns the cached pair while it is valid, otherwise authenticates and replaces it.
// On failure the previous entry is kept untouched.
func (p *TokenProvider) Tokens(ctx context.Context) (model.TokenPair, error) {
	if t, ok := p.currentIfValid(); ok {
		logger.Debug("TokenProvider: using cached token")
		return t, nil
	}

	v, err, shared := p.group.Do("token", func() (any, error) {
		// double check: a previous flight may have refreshed already
		if t, ok := p.currentIfValid(); ok {
			return t, nil
		}

		t, err := p.source.Authenticate(ctx)
		if err != nil {
			return nil, err
		}
		// expiry is measured on the provider's clock
		t.IssuedAt = p.clock.Now()

		p.mu.Lock()
		p.cached = t
		p.mu.Unlock()
		return t, nil
	})
	if err != nil {
		if !errors.Is(err, serpro.ErrAuthentication) {
			err = serpro.Mark(serpro.ErrAuthentication, err, "authenticate")
		}
		logger.WithError(err).Error("TokenProvider: authentication failed")
		return model.TokenPair{}, err
	}
	if shared {
		logger.Debug("TokenProvider: refresh shared with concurrent caller")
	}
	return v.(model.TokenPair), nil
}

// Invalidate drops the cached pair, forcing the next call to authenticate.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = model.TokenPair{}
}

func (p *TokenProvider) currentIfValid() (model.TokenPair, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cached.ValidAt(p.clock.Now(), p.refreshSkew) {
		return model.TokenPair{}, false
	}
	return p.cached, true
}

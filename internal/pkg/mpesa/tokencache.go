package mpesa

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// expiryMargin keeps a token from being handed out moments before Daraja
// invalidates it mid-request.
const expiryMargin = 60 * time.Second

// Authorizer is the slice of Client the token cache needs.
type Authorizer interface {
	Authorize(ctx context.Context, consumerKey, consumerSecret string) (token string, expiresIn int, err error)
}

type fetchCall struct {
	done  chan struct{}
	token string
	err   error
}

// TokenCache serves Daraja access tokens from a TokenStore and refreshes them
// through a per-key single flight, so a burst of concurrent requests on a
// cold cache costs one auth round trip.
type TokenCache struct {
	store TokenStore
	auth  Authorizer

	mu       sync.Mutex
	inflight map[string]*fetchCall
}

func NewTokenCache(store TokenStore, auth Authorizer) *TokenCache {
	return &TokenCache{
		store:    store,
		auth:     auth,
		inflight: make(map[string]*fetchCall),
	}
}

// GetToken returns a token valid for at least the expiry margin, refreshing
// via the provider when needed.
func (tc *TokenCache) GetToken(ctx context.Context, creds *Credentials, key string) (string, error) {
	cached, err := tc.store.Get(ctx, key)
	if err != nil {
		// Store trouble degrades to a direct fetch, it must not fail payments.
		log.Warnf("[M-Pesa] token store read failed for %s: %v", key, err)
	}
	if cached != nil && time.Now().Before(cached.ExpiresAt.Add(-expiryMargin)) {
		return cached.Token, nil
	}

	tc.mu.Lock()
	if call, ok := tc.inflight[key]; ok {
		tc.mu.Unlock()
		select {
		case <-call.done:
			return call.token, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	call := &fetchCall{done: make(chan struct{})}
	tc.inflight[key] = call
	tc.mu.Unlock()

	call.token, call.err = tc.refresh(ctx, creds, key)
	close(call.done)

	tc.mu.Lock()
	delete(tc.inflight, key)
	tc.mu.Unlock()

	return call.token, call.err
}

func (tc *TokenCache) refresh(ctx context.Context, creds *Credentials, key string) (string, error) {
	token, expiresIn, err := tc.auth.Authorize(ctx, creds.ConsumerKey, creds.ConsumerSecret)
	if err != nil {
		return "", err
	}

	expiresAt := time.Now().Add(time.Duration(expiresIn) * time.Second)
	if err := tc.store.Put(ctx, key, CachedToken{Token: token, ExpiresAt: expiresAt}); err != nil {
		log.Warnf("[M-Pesa] token store write failed for %s: %v", key, err)
	}
	return token, nil
}

// Package credentials resolves seller API tokens from the shared Redis token hash.
package credentials

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
)

const DefaultHash = "token"

// HashClient is the subset of the Redis client the resolver uses
type HashClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// Resolver looks up tokens by seller id and keeps found tokens for a short TTL.
type Resolver struct {
	client HashClient
	hash   string
	ttl    time.Duration
	logger ectologger.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedToken
}

// NewResolver creates a resolver. A ttl of zero disables caching.
func NewResolver(client HashClient, hash string, ttl time.Duration, logger ectologger.Logger) *Resolver {
	if hash == "" {
		hash = DefaultHash
	}
	return &Resolver{
		client: client,
		hash:   hash,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		cache:  make(map[string]cachedToken),
	}
}

// Token returns the seller's token. A missing or blank token is CredentialMissing.
func (r *Resolver) Token(ctx context.Context, sellerID string) (string, error) {
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return "", apperrors.New(apperrors.KindCredentialMissing, "no seller id to resolve a token for")
	}

	if token, ok := r.cached(sellerID); ok {
		metrics.RecordCacheLookup("credentials", true)
		return token, nil
	}
	if r.ttl > 0 {
		metrics.RecordCacheLookup("credentials", false)
	}

	start := time.Now()
	token, err := r.client.HGet(ctx, r.hash, sellerID).Result()
	metrics.RecordRedisOperation("hget", time.Since(start).Seconds())

	if errors.Is(err, redis.Nil) || (err == nil && strings.TrimSpace(token) == "") {
		return "", apperrors.Newf(apperrors.KindCredentialMissing, "no token for seller %s", sellerID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("seller_id", sellerID).Error("failed to read seller token")
		return "", apperrors.Wrap(apperrors.KindTransport, err, "failed to read seller token")
	}

	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[sellerID] = cachedToken{token: token, expiresAt: r.now().Add(r.ttl)}
		r.mu.Unlock()
	}
	return token, nil
}

func (r *Resolver) cached(sellerID string) (string, bool) {
	if r.ttl <= 0 {
		return "", false
	}
	r.mu.RLock()
	entry, ok := r.cache[sellerID]
	r.mu.RUnlock()
	if !ok || !r.now().Before(entry.expiresAt) {
		return "", false
	}
	return entry.token, true
}

// Forget drops a cached token, e.g. after upstream rejected it
func (r *Resolver) Forget(sellerID string) {
	r.mu.Lock()
	delete(r.cache, sellerID)
	r.mu.Unlock()
}

package coordinator

import (
	"context"

	"github.com/paw-chain/prover/x/prover/engine"
)

var _ engine.KeyCache = (*Coordinator)(nil)

// GenProvingKey returns the cached key pair for key, generating it when
// absent. The lock is released while generate runs, so concurrent misses may
// both generate; the last insert wins. Entries are never evicted.
func (c *Coordinator) GenProvingKey(
	ctx context.Context,
	key string,
	generate func(context.Context) (*engine.KeyPair, error),
) (*engine.KeyPair, error) {
	c.mu.Lock()
	if kp, ok := c.state.keyCache[key]; ok {
		c.mu.Unlock()
		c.metrics.KeyCacheLookups.WithLabelValues("hit").Inc()
		return kp, nil
	}
	c.mu.Unlock()
	c.metrics.KeyCacheLookups.WithLabelValues("miss").Inc()

	kp, err := generate(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.state.keyCache[key] = kp
	c.mu.Unlock()

	c.logger.Info("proving key generated and cached", "key", key)
	return kp, nil
}

// CachedKeys lists the keys currently held by the proving key cache.
func (c *Coordinator) CachedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.state.keyCache))
	for k := range c.state.keyCache {
		keys = append(keys, k)
	}
	return keys
}

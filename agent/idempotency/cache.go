package idempotency

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

// NewCache builds the configured window cache. CacheNone returns nil.
func NewCache(cfg Config) (WindowCache, error) {
	switch CacheDriver(strings.ToLower(string(cfg.Cache))) {
	case "", CacheNone:
		return nil, nil
	case CacheUpstash:
		cache, err := NewUpstashCache(UpstashConfig{URL: cfg.UpstashURL, Token: cfg.UpstashToken}, WithKeyPrefix(cfg.KeyPrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrConfiguration, err)
		}
		return cache, nil
	case CacheRedis:
		cache, err := NewRedisCacheFromURL(cfg.RedisURL, cfg.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrConfiguration, err)
		}
		return cache, nil
	default:
		return nil, fmt.Errorf("%w: unknown idempotency cache %q", contractx.ErrConfiguration, cfg.Cache)
	}
}

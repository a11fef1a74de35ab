package idempotency

import (
	"time"
)

type CacheDriver string

const (
	CacheNone    CacheDriver = "none"
	CacheUpstash CacheDriver = "upstash"
	CacheRedis   CacheDriver = "redis"
)

type Config struct {
	Window       time.Duration `split_words:"true" default:"2m"`
	Cache        CacheDriver   `split_words:"true" default:"none"`
	UpstashURL   string        `envconfig:"UPSTASH_URL"`
	UpstashToken string        `envconfig:"UPSTASH_TOKEN"`
	RedisURL     string        `envconfig:"REDIS_URL"`
	KeyPrefix    string        `split_words:"true" default:"procurement:draft:"`
}

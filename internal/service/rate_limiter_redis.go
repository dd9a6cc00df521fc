package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Ventana deslizante sobre un sorted set: misma semántica que el limiter en memoria.
// Los envíos rechazados no cuentan.
const redisAllowScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return 1
`

// Prefijo de las claves de límite de envíos de verificación.
const verificationRateLimitPrefix = "verification:rl:"

type redisRateLimiter struct {
	client    redisEvaler
	window    time.Duration
	max       int
	prefix    string
	now       func() time.Time
	newMember func() string
}

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// NewRedisRateLimiter comparte el conteo entre réplicas. Ante errores de Redis deja pasar.
func NewRedisRateLimiter(client *redis.Client, window time.Duration, max int) RateLimiter {
	if client == nil {
		return nil
	}
	return newRedisRateLimiter(client, window, max)
}

func newRedisRateLimiter(client redisEvaler, window time.Duration, max int) *redisRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisRateLimiter{
		client:    client,
		window:    window,
		max:       max,
		prefix:    verificationRateLimitPrefix,
		now:       func() time.Time { return time.Now().UTC() },
		newMember: uuid.NewString,
	}
}

func (l *redisRateLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalizedKey := strings.ToLower(strings.TrimSpace(key))
	if normalizedKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	redisKey := l.prefix + normalizedKey
	allowed, err := l.client.Eval(ctx, redisAllowScript, []string{redisKey},
		l.now().UnixMilli(),
		l.window.Milliseconds(),
		l.max,
		l.newMember(),
	).Int()
	if err != nil {
		return true
	}
	return allowed == 1
}

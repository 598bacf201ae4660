package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func request(handler http.Handler, method, target, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMemoryCounter_AllowsUpToLimit(t *testing.T) {
	c := NewMemoryCounter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, _ := c.Allow(ctx, "k", 3, time.Minute)
		assert.True(t, allowed, "request %d", i+1)
	}
	allowed, remaining, resetAt := c.Allow(ctx, "k", 3, time.Minute)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
	assert.True(t, resetAt.After(time.Now()))

	// Keys are independent.
	allowed, _, _ = c.Allow(ctx, "other", 3, time.Minute)
	assert.True(t, allowed)
}

func TestMemoryCounter_EvictsRefilledBuckets(t *testing.T) {
	c := NewMemoryCounter()
	clock := time.Now()
	c.now = func() time.Time { return clock }
	ctx := context.Background()

	c.Allow(ctx, "idle", 2, time.Minute)
	c.Allow(ctx, "busy", 600, time.Minute)
	require.Len(t, c.limiters, 2)

	// After two idle minutes both buckets are full; only "busy" is used again.
	clock = clock.Add(2 * time.Minute)
	for i := 0; i < 600; i++ {
		c.Allow(ctx, "busy", 600, time.Minute)
	}
	assert.Len(t, c.limiters, 1)
	assert.Contains(t, c.limiters, "busy")

	// An evicted key starts over with a full bucket.
	allowed, remaining, _ := c.Allow(ctx, "idle", 2, time.Minute)
	assert.True(t, allowed)
	assert.Equal(t, 1, remaining)
}

func TestRedisCounter_SlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := &RedisCounter{client: client}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, _ := c.Allow(ctx, "k", 2, time.Minute)
		assert.True(t, allowed)
		// Members are keyed by nanosecond time.
		time.Sleep(time.Millisecond)
	}
	allowed, remaining, _ := c.Allow(ctx, "k", 2, time.Minute)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
	assert.True(t, mr.Exists("k"))
}

func TestRedisCounter_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	allowed, remaining, _ := (&RedisCounter{client: client}).Allow(context.Background(), "k", 1, time.Minute)
	assert.True(t, allowed)
	assert.Equal(t, 1, remaining)
}

func TestRateLimiter_Rejects(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{
		Limits: []RateLimit{{"POST /start-chat", 2, time.Minute}},
	})
	handler := rl.Middleware(okHandler)

	for i := 0; i < 2; i++ {
		rec := request(handler, http.MethodPost, "/start-chat", "10.1.1.1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := request(handler, http.MethodPost, "/start-chat", "10.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())

	// Another client and an unlimited route are unaffected.
	assert.Equal(t, http.StatusOK, request(handler, http.MethodPost, "/start-chat", "10.1.1.2").Code)
	assert.Equal(t, http.StatusOK, request(handler, http.MethodGet, "/health", "10.1.1.1").Code)
}

func TestRateLimiter_Whitelist(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{
		Whitelist: []string{"192.168.0.0/16", "10.0.0.7", "not-a-cidr/99"},
		Limits:    []RateLimit{{"GET /token", 1, time.Minute}},
	})
	handler := rl.Middleware(okHandler)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, request(handler, http.MethodGet, "/token", "192.168.4.2").Code)
		assert.Equal(t, http.StatusOK, request(handler, http.MethodGet, "/token", "10.0.0.7").Code)
	}
	assert.Equal(t, http.StatusOK, request(handler, http.MethodGet, "/token", "10.0.0.8").Code)
	assert.Equal(t, http.StatusTooManyRequests, request(handler, http.MethodGet, "/token", "10.0.0.8").Code)
}

func TestRateLimiter_FirstMatchingPatternWins(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{})

	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/agent-message/ws", "GET /agent-message/ws"},
		{http.MethodGet, "/agent-message", "GET /agent-message"},
		{http.MethodPost, "/agent-message/publish", "POST /agent-message"},
		{http.MethodPost, "/api/voices/upload", "POST /api/voices"},
		{http.MethodGet, "/health", ""},
	}
	for _, tt := range tests {
		limit := rl.findLimit(httptest.NewRequest(tt.method, tt.path, nil))
		if tt.want == "" {
			assert.Nil(t, limit, tt.path)
			continue
		}
		require.NotNil(t, limit, tt.path)
		assert.Equal(t, tt.want, limit.Pattern)
	}
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", RealIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", RealIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", RealIP(req))
}

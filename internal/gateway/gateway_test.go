package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllow(t *testing.T) {
	t.Run("should allow requests up to the limit then reject", func(t *testing.T) {
		rl := &RateLimiter{requests: make(map[string][]time.Time), limit: 2, window: time.Minute}

		assert.True(t, rl.Allow("client-a"))
		assert.True(t, rl.Allow("client-a"))
		assert.False(t, rl.Allow("client-a"))
	})

	t.Run("should track keys independently", func(t *testing.T) {
		rl := &RateLimiter{requests: make(map[string][]time.Time), limit: 1, window: time.Minute}

		assert.True(t, rl.Allow("client-a"))
		assert.True(t, rl.Allow("client-b"))
	})

	t.Run("should allow again once the window has passed", func(t *testing.T) {
		rl := &RateLimiter{requests: make(map[string][]time.Time), limit: 1, window: 10 * time.Millisecond}

		assert.True(t, rl.Allow("client-a"))
		assert.False(t, rl.Allow("client-a"))

		time.Sleep(15 * time.Millisecond)
		assert.True(t, rl.Allow("client-a"))
	})
}

func TestOriginAllowed(t *testing.T) {
	t.Run("should allow any origin when none are configured", func(t *testing.T) {
		g := &Gateway{}
		assert.True(t, g.originAllowed("https://example.com"))
	})

	t.Run("should allow only configured origins", func(t *testing.T) {
		g := &Gateway{corsOrigins: []string{"https://ops.example.com"}}

		assert.True(t, g.originAllowed("https://ops.example.com"))
		assert.False(t, g.originAllowed("https://evil.example.com"))
	})

	t.Run("should treat a wildcard entry as allow-all", func(t *testing.T) {
		g := &Gateway{corsOrigins: []string{"*"}}
		assert.True(t, g.originAllowed("https://anything.example.com"))
	})
}

func TestParseCORSOrigins(t *testing.T) {
	t.Run("should split and trim a comma-separated list", func(t *testing.T) {
		origins := parseCORSOrigins("https://a.example.com, https://b.example.com")
		assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, origins)
	})

	t.Run("should return nil for an empty string", func(t *testing.T) {
		assert.Nil(t, parseCORSOrigins(""))
	})
}

package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaults(t *testing.T) {
	t.Run("should default the run timeout and queue group", func(t *testing.T) {
		r := New(nil, nil)

		assert.Equal(t, 300*time.Second, r.runTimeout)
		assert.Equal(t, "runner-workers", r.queue)
		assert.NotNil(t, r.breakers)
	})

	t.Run("should apply options over the defaults", func(t *testing.T) {
		r := New(nil, nil, WithRunTimeout(45*time.Second), WithQueueGroup("nightly"))

		assert.Equal(t, 45*time.Second, r.runTimeout)
		assert.Equal(t, "nightly", r.queue)
	})
}

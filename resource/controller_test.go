package resource

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.True(t, c.TryAcquireMemory(50))
	require.True(t, c.TryAcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	assert.False(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	assert.True(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	assert.True(t, c.TryAcquireMemory(1000))
	assert.True(t, c.TryAcquireMemory(1<<40))
	c.ReleaseMemory(1 << 40)
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
	assert.False(t, c.IOLimited())
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	assert.True(t, c.TryAcquireMemory(10))
	c.ReleaseMemory(10)
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.False(t, c.IOLimited())
	assert.NoError(t, c.AcquireIO(context.Background(), 1<<20))
	assert.Equal(t, Config{}, c.Config())
}

func TestController_IO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// Within the initial burst: no waiting.
	start := time.Now()
	require.NoError(t, c.AcquireIO(context.Background(), 512<<10))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	// Larger than the burst with a canceled context fails instead of blocking.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.AcquireIO(ctx, 4<<20))
}

func TestRateLimitedReader(t *testing.T) {
	t.Run("Unlimited", func(t *testing.T) {
		r := NewRateLimitedReader(context.Background(), strings.NewReader("snapshot"), nil)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "snapshot", string(data))
	})

	t.Run("Throttled", func(t *testing.T) {
		c := NewController(Config{IOLimitBytesPerSec: 1024})
		require.True(t, c.IOLimited())

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		payload := bytes.Repeat([]byte{1}, 8192)
		start := time.Now()
		data, err := io.ReadAll(NewRateLimitedReader(ctx, bytes.NewReader(payload), c))

		// Only about one burst passes before the limiter gives up on the deadline.
		assert.Error(t, err)
		assert.LessOrEqual(t, len(data), 2048)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

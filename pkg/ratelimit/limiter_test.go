package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalSpacesRequests(t *testing.T) {
	iv := NewInterval(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, iv.Wait(ctx))
	}

	// first passes immediately, the next two wait one interval each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestZeroIntervalNeverBlocks(t *testing.T) {
	iv := NewInterval(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, iv.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestIntervalWaitHonoursContext(t *testing.T) {
	iv := NewInterval(time.Hour)
	require.NoError(t, iv.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, iv.Wait(ctx))
}

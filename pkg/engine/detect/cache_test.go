package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanCacheHit(t *testing.T) {
	c := NewScanCache(time.Minute)
	r := &Result{Timestamp: testNow}

	_, ok := c.Get("default")
	assert.False(t, ok)

	c.Set("default", r)
	got, ok := c.Get("default")
	require.True(t, ok)
	assert.Same(t, r, got)
}

func TestScanCacheExpiry(t *testing.T) {
	c := NewScanCache(10 * time.Millisecond)
	c.Set("default", &Result{})

	time.Sleep(25 * time.Millisecond)
	_, ok := c.Get("default")
	assert.False(t, ok)
}

func TestScanCacheInvalidate(t *testing.T) {
	c := NewScanCache(time.Minute)
	c.Set("default", &Result{})
	c.Invalidate()

	_, ok := c.Get("default")
	assert.False(t, ok)
}

func TestScanCacheZeroTTLDefaults(t *testing.T) {
	c := NewScanCache(0)
	assert.Equal(t, DefaultCacheTTL, c.ttl)
}

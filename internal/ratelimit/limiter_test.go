package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerWindowBurstAndRefill(t *testing.T) {
	l := PerWindow(3, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("1.2.3.4"), "event %d", i)
	}
	assert.False(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("5.6.7.8"), "clients have separate buckets")

	now = now.Add(21 * time.Second)
	assert.True(t, l.Allow("1.2.3.4"), "one token refills every 20s")
	assert.False(t, l.Allow("1.2.3.4"))
}

func TestSweep(t *testing.T) {
	l := PerWindow(5, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(time.Hour)
	l.Allow("fresh")

	assert.Equal(t, 1, l.Sweep(30*time.Minute))
	assert.Equal(t, 1, l.Len())
}

func TestRunStopsWithContext(t *testing.T) {
	l := PerWindow(1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "10.0.0.1", ClientIP(r, false))
	assert.Equal(t, "203.0.113.9", ClientIP(r, true))

	r.RemoteAddr = "garbage"
	assert.Equal(t, "garbage", ClientIP(r, false))
}

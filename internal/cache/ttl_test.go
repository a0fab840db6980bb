package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is advanced by hand so expiry boundaries can be hit exactly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestTTL(t *testing.T) (*TTL, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewTTL(WithClock(clk.Now), WithScope("test"))
	t.Cleanup(c.Close)
	return c, clk
}

func TestTTL_HitBeforeExpiry(t *testing.T) {
	c, clk := newTestTTL(t)
	c.Set("k", "v", time.Hour)

	clk.Advance(time.Hour - time.Nanosecond)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
	assert.True(t, c.Has("k"))
}

func TestTTL_AbsentAtAndAfterExpiry(t *testing.T) {
	c, clk := newTestTTL(t)
	c.Set("a", 1, time.Hour)
	c.Set("b", 2, time.Hour)

	// The deferred timers are armed for an hour of wall time and cannot
	// have fired; the read-side check alone must report absence.
	clk.Advance(time.Hour)
	_, ok := c.Get("a")
	assert.False(t, ok, "entry must be absent exactly at expiry")

	clk.Advance(time.Minute)
	assert.False(t, c.Has("b"), "entry must be absent after expiry")
	assert.Equal(t, 0, c.Len(), "expired entries are evicted lazily on read")
}

func TestTTL_ZeroTTLNeverExpires(t *testing.T) {
	c, clk := newTestTTL(t)
	c.Set("forever", "x", 0)
	clk.Advance(24 * 365 * time.Hour)
	assert.True(t, c.Has("forever"))
}

func TestTTL_TimerEvicts(t *testing.T) {
	c := NewTTL()
	t.Cleanup(c.Close)

	c.Set("short", "v", 10*time.Millisecond)
	require.Eventually(t, func() bool { return c.Len() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestTTL_StaleTimerKeepsNewValue(t *testing.T) {
	c := NewTTL()
	t.Cleanup(c.Close)

	c.Set("k", "old", 10*time.Millisecond)
	c.Set("k", "new", 0)

	time.Sleep(40 * time.Millisecond)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestTTL_DeleteAndClearPrefix(t *testing.T) {
	c, _ := newTestTTL(t)
	c.Set("listings|dogparks|list|u1", 1, time.Minute)
	c.Set("listings|desserts|list|u2", 2, time.Minute)
	c.Set("directories|*|list|u3", 3, time.Minute)

	c.Delete("listings|desserts|list|u2")
	assert.False(t, c.Has("listings|desserts|list|u2"))

	n := c.ClearPrefix("listings|")
	assert.Equal(t, 1, n)
	assert.True(t, c.Has("directories|*|list|u3"))

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestTTL_ConcurrentAccess(t *testing.T) {
	c := NewTTL()
	t.Cleanup(c.Close)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Set("shared", j, time.Minute)
				c.Get("shared")
				c.Has("shared")
			}
		}(i)
	}
	wg.Wait()
	assert.True(t, c.Has("shared"))
}

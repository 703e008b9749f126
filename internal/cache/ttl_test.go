package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTTL_GetExpires(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := New[string, int](time.Minute, 0).WithClock(clk.Now)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clk.Advance(59 * time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok, "entry should live until ttl elapses")

	clk.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry should expire exactly at ttl")
	assert.Equal(t, 0, c.Len())
}

func TestTTL_Sweep(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := New[string, string](time.Minute, 0).WithClock(clk.Now)

	c.Set("old", "x")
	clk.Advance(2 * time.Minute)
	c.Set("new", "y")

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("new")
	assert.True(t, ok)
}

func TestTTL_EvictsOldestWhenFull(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := New[string, int](time.Hour, 2).WithClock(clk.Now)

	c.Set("a", 1)
	clk.Advance(time.Second)
	c.Set("b", 2)
	clk.Advance(time.Second)
	c.Set("c", 3)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestTTL_DeleteAndClear(t *testing.T) {
	c := New[string, int](time.Hour, 0)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestTTL_StoredAt(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := New[string, struct{}](time.Minute, 0).WithClock(clk.Now)

	c.Set("p", struct{}{})
	at, ok := c.StoredAt("p")
	require.True(t, ok)
	assert.Equal(t, clk.t, at)

	clk.Advance(time.Minute)
	_, ok = c.StoredAt("p")
	assert.False(t, ok)
}

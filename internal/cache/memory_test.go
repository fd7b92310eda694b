package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	var got []item
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrMiss)

	want := []item{{Name: "a", N: 1}, {Name: "b", N: 2}}
	require.NoError(t, c.Set(ctx, "k", want, time.Minute))
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, want, got)

	want[0].Name = "mutated"
	var again []item
	require.NoError(t, c.Get(ctx, "k", &again))
	assert.Equal(t, "a", again[0].Name)

	require.NoError(t, c.Delete(ctx, "k", "absent"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrMiss)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", item{Name: "x"}, time.Minute))

	now = now.Add(59 * time.Second)
	var got item
	require.NoError(t, c.Get(ctx, "k", &got))

	now = now.Add(time.Second)
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrMiss)
}

func TestMemory_NoTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c := NewMemory()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", 1, 0))
	now = now.Add(24 * time.Hour)
	var n int
	require.NoError(t, c.Get(ctx, "k", &n))
	assert.Equal(t, 1, n)
}

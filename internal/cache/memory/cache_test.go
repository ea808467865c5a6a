package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSet(t *testing.T) {
	c := New(time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	c.Set(ctx, "k", "[]")
	v, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "[]", v)
}

func TestInvalidate(t *testing.T) {
	c := New(time.Minute)
	ctx := context.Background()

	c.Set(ctx, "a", "1")
	c.Set(ctx, "b", "2")
	assert.NoError(t, c.Invalidate(ctx))

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := New(10 * time.Millisecond)
	ctx := context.Background()

	c.Set(ctx, "k", "v")
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

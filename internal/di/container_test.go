package di

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeRecorder struct {
	name   string
	closed *[]string
	err    error
}

func (r *closeRecorder) Close() error {
	*r.closed = append(*r.closed, r.name)
	return r.err
}

func TestContainerBuildsOnce(t *testing.T) {
	c := New()
	builds := 0
	c.RegisterBuilder("counter", func(c *Container) (interface{}, error) {
		builds++
		return builds, nil
	})

	first, err := c.Get("counter")
	require.NoError(t, err)
	second, err := c.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, builds)
}

func TestContainerConcurrentFirstUse(t *testing.T) {
	c := New()
	var builds atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	c.RegisterBuilder("slow", func(c *Container) (interface{}, error) {
		builds.Add(1)
		close(started)
		<-release
		return "built", nil
	})

	var wg sync.WaitGroup
	results := make([]interface{}, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = c.Get("slow")
	}()
	<-started

	// The second caller arrives while the first build is still running
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = c.Get("slow")
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "built", results[i])
	}
	assert.Equal(t, int32(1), builds.Load())
}

func TestContainerNestedResolution(t *testing.T) {
	c := New()
	c.Register("base", "value")
	c.RegisterBuilder("derived", func(c *Container) (interface{}, error) {
		base, err := c.Get("base")
		if err != nil {
			return nil, err
		}
		return base.(string) + "!", nil
	})

	got, err := c.Get("derived")
	require.NoError(t, err)
	assert.Equal(t, "value!", got)
}

func TestContainerErrors(t *testing.T) {
	c := New()
	_, err := c.Get("missing")
	assert.ErrorIs(t, err, ErrServiceNotFound)
	assert.Panics(t, func() { c.MustGet("missing") })

	boom := errors.New("boom")
	c.RegisterBuilder("broken", func(c *Container) (interface{}, error) {
		return nil, boom
	})
	_, err = c.Get("broken")
	assert.ErrorIs(t, err, boom)
	assert.True(t, c.Has("broken"))

	c.RegisterBuilder("a", func(c *Container) (interface{}, error) { return c.Get("b") })
	c.RegisterBuilder("b", func(c *Container) (interface{}, error) { return c.Get("a") })
	_, err = c.Get("a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle: a -> b -> a")

	assert.Equal(t, []string{"a", "b", "broken"}, c.ServiceNames())
}

func TestContainerCloseReverseOrder(t *testing.T) {
	var closed []string
	c := New()
	c.Register("first", &closeRecorder{name: "first", closed: &closed})
	c.RegisterBuilder("second", func(c *Container) (interface{}, error) {
		if _, err := c.Get("third"); err != nil {
			return nil, err
		}
		return &closeRecorder{name: "second", closed: &closed, err: errors.New("second failed")}, nil
	})
	c.RegisterBuilder("third", func(c *Container) (interface{}, error) {
		return &closeRecorder{name: "third", closed: &closed}, nil
	})
	c.RegisterBuilder("absent", func(c *Container) (interface{}, error) {
		return nil, nil
	})

	_, err := c.Get("second")
	require.NoError(t, err)
	_, err = c.Get("absent")
	require.NoError(t, err)

	err = c.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close second")
	assert.Equal(t, []string{"second", "third", "first"}, closed)

	// Instances are forgotten, builders are kept
	assert.NoError(t, c.Close())
	assert.Len(t, closed, 3)
	assert.True(t, c.Has("second"))
}

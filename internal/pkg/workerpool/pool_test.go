package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
)

func newPool(t *testing.T, size int) *Pool {
	t.Helper()
	p, err := New(&Config{Size: size}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Release(time.Second) })
	return p
}

func TestNew(t *testing.T) {
	_, err := New(&Config{Size: 0}, logger.NewNop())
	assert.Error(t, err)

	p, err := New(nil, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Size, p.Cap())
	p.Release(time.Second)
}

func TestSubmit(t *testing.T) {
	p := newPool(t, 4)

	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}

	assert.Eventually(t, func() bool { return p.Stats().Completed == 1 }, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, p.Stats().Submitted)
}

func TestSubmit_CancelledContext(t *testing.T) {
	p := newPool(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Submit(ctx, func() { t.Error("must not run") })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.Stats().Submitted)
}

func TestSubmit_AfterRelease(t *testing.T) {
	p, err := New(&Config{Size: 1}, logger.NewNop())
	require.NoError(t, err)
	p.Release(time.Second)

	assert.ErrorIs(t, p.Submit(context.Background(), func() {}), ErrPoolClosed)
}

func TestPanicIsContained(t *testing.T) {
	p := newPool(t, 2)
	require.NoError(t, p.Submit(context.Background(), func() { panic("boom") }))

	assert.Eventually(t, func() bool { return p.Stats().Failed == 1 }, time.Second, 10*time.Millisecond)

	ran := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() { close(ran) }))
	<-ran
}

func TestGroup(t *testing.T) {
	p := newPool(t, 3)

	t.Run("all succeed", func(t *testing.T) {
		var n atomic.Int32
		g := p.NewGroup(context.Background())
		for i := 0; i < 10; i++ {
			g.Go(func(context.Context) error {
				n.Add(1)
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.EqualValues(t, 10, n.Load())
	})

	t.Run("errors are joined", func(t *testing.T) {
		errA := errors.New("popular failed")
		errB := errors.New("upcoming failed")

		g := p.NewGroup(context.Background())
		g.Go(func(context.Context) error { return errA })
		g.Go(func(context.Context) error { return nil })
		g.Go(func(context.Context) error { return errB })

		err := g.Wait()
		assert.ErrorIs(t, err, errA)
		assert.ErrorIs(t, err, errB)
	})

	t.Run("jobs see the group context", func(t *testing.T) {
		type key struct{}
		ctx := context.WithValue(context.Background(), key{}, "v")

		var got atomic.Value
		g := p.NewGroup(ctx)
		g.Go(func(ctx context.Context) error {
			got.Store(ctx.Value(key{}))
			return nil
		})
		require.NoError(t, g.Wait())
		assert.Equal(t, "v", got.Load())
	})
}

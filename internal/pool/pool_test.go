package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeContext struct {
	id     int
	active *atomic.Int32
	closed atomic.Int32
}

func (f *fakeContext) Close() error {
	f.closed.Add(1)
	f.active.Add(-1)
	return nil
}

func TestNew_RejectsZeroSize(t *testing.T) {
	_, err := New[int](0)
	require.Error(t, err)
}

func TestAcquire_GrantsInArrivalOrder(t *testing.T) {
	p, err := New[*fakeContext](2)
	require.NoError(t, err)

	var active, peak atomic.Int32
	factory := func(id int) Factory[*fakeContext] {
		return func(ctx context.Context) (*fakeContext, error) {
			n := active.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			return &fakeContext{id: id, active: &active}, nil
		}
	}

	ctx := context.Background()
	first, err := p.Acquire(ctx, factory(0))
	require.NoError(t, err)
	second, err := p.Acquire(ctx, factory(1))
	require.NoError(t, err)

	granted := make(chan *Lease[*fakeContext], 3)
	var wg sync.WaitGroup
	for i := 2; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			l, err := p.Acquire(ctx, factory(id))
			if err != nil {
				t.Errorf("acquire %d: %v", id, err)
				return
			}
			granted <- l
		}(i)
		want := i - 1
		require.Eventually(t, func() bool { return p.Stats().Waiting == want },
			time.Second, time.Millisecond, "waiter %d never queued", i)
	}

	var order []int
	held := []*Lease[*fakeContext]{first, second}
	for len(order) < 3 {
		held[0].Release()
		held = held[1:]
		select {
		case l := <-granted:
			order = append(order, l.Value().id)
			held = append(held, l)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for grant")
		}
	}
	for _, l := range held {
		l.Release()
	}
	wg.Wait()

	assert.Equal(t, []int{2, 3, 4}, order)
	assert.Equal(t, int32(2), peak.Load())
	assert.Equal(t, int32(0), active.Load())
	assert.Equal(t, Stats{Size: 2}, p.Stats())
}

func TestLease_ReleaseIsIdempotent(t *testing.T) {
	p, err := New[*fakeContext](1)
	require.NoError(t, err)

	var active atomic.Int32
	l, err := p.Acquire(context.Background(), func(ctx context.Context) (*fakeContext, error) {
		active.Add(1)
		return &fakeContext{active: &active}, nil
	})
	require.NoError(t, err)

	l.Release()
	l.Release()

	assert.Equal(t, int32(1), l.Value().closed.Load())
	assert.Equal(t, 0, p.Stats().InUse)

	// The slot must be usable exactly once more, not twice over capacity.
	again, err := p.Acquire(context.Background(), func(ctx context.Context) (*fakeContext, error) {
		active.Add(1)
		return &fakeContext{active: &active}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stats().InUse)
	again.Release()
}

func TestAcquire_FactoryFailureReleasesSlot(t *testing.T) {
	p, err := New[int](1)
	require.NoError(t, err)

	boom := errors.New("model load failed")
	_, err = p.Acquire(context.Background(), func(ctx context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, p.Stats().InUse)

	l, err := p.Acquire(context.Background(), func(ctx context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, l.Value())
	l.Release()
}

func TestAcquire_FactoryFailureDoesNotAffectWaiters(t *testing.T) {
	p, err := New[int](1)
	require.NoError(t, err)

	holder, err := p.Acquire(context.Background(), func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	failed := make(chan error, 1)
	succeeded := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background(), func(ctx context.Context) (int, error) {
			return 0, errors.New("broken")
		})
		failed <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().Waiting == 1 }, time.Second, time.Millisecond)

	go func() {
		l, err := p.Acquire(context.Background(), func(ctx context.Context) (int, error) { return 3, nil })
		if err == nil {
			l.Release()
		}
		succeeded <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().Waiting == 2 }, time.Second, time.Millisecond)

	holder.Release()

	assert.Error(t, <-failed)
	assert.NoError(t, <-succeeded)
	assert.Equal(t, 0, p.Stats().InUse)
}

func TestAcquire_CancelWhileWaiting(t *testing.T) {
	p, err := New[int](1)
	require.NoError(t, err)

	holder, err := p.Acquire(context.Background(), func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	var ran atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx, func(ctx context.Context) (int, error) {
			ran.Store(true)
			return 2, nil
		})
		done <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().Waiting == 1 }, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, ran.Load(), "factory must not run for a cancelled waiter")
	assert.Equal(t, 0, p.Stats().Waiting)

	holder.Release()
	assert.Equal(t, Stats{Size: 1}, p.Stats())
}

func TestClose_RejectsWaitersAndNewCallers(t *testing.T) {
	p, err := New[int](1)
	require.NoError(t, err)

	holder, err := p.Acquire(context.Background(), func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background(), func(ctx context.Context) (int, error) { return 2, nil })
		done <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().Waiting == 1 }, time.Second, time.Millisecond)

	p.Close()
	require.ErrorIs(t, <-done, ErrClosed)

	_, err = p.Acquire(context.Background(), func(ctx context.Context) (int, error) { return 3, nil })
	require.ErrorIs(t, err, ErrClosed)

	holder.Release()
	assert.Equal(t, 0, p.Stats().InUse)
}

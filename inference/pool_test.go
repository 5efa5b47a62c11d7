package inference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	closed atomic.Int32
}

func (f *fakeRunner) Infer(_ context.Context, inputIDs, _ []int64) ([]float32, error) {
	return make([]float32, len(inputIDs)), nil
}

func (f *fakeRunner) Close() error {
	f.closed.Add(1)
	return nil
}

func newFakePool(t *testing.T, size int) (*Pool, *[]*fakeRunner) {
	t.Helper()
	var runners []*fakeRunner
	pool, err := NewPoolFunc(size, func() (Runner, error) {
		r := &fakeRunner{}
		runners = append(runners, r)
		return r, nil
	})
	require.NoError(t, err)
	return pool, &runners
}

func TestNewPool_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -5} {
		pool, _ := newFakePool(t, size)
		assert.Equal(t, 1, pool.Size(), "size %d", size)
		require.NoError(t, pool.Close())
	}
}

func TestNewPool_ModelNotFound(t *testing.T) {
	_, err := NewPool("../testdata/nonexistent.onnx", 2, SessionOptions{})
	require.Error(t, err)
}

func TestNewPoolFunc_ClosesOnError(t *testing.T) {
	boom := errors.New("boom")
	var created []*fakeRunner
	_, err := NewPoolFunc(3, func() (Runner, error) {
		if len(created) == 2 {
			return nil, boom
		}
		r := &fakeRunner{}
		created = append(created, r)
		return r, nil
	})

	require.ErrorIs(t, err, boom)
	for _, r := range created {
		assert.Equal(t, int32(1), r.closed.Load())
	}
}

func TestPool_AcquireRelease(t *testing.T) {
	pool, _ := newFakePool(t, 2)
	defer func() { _ = pool.Close() }()

	ctx := context.Background()

	s1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	s2, err := pool.Acquire(ctx)
	require.NoError(t, err)

	// Third acquire should block
	ctx3, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pool.Release(s1)
	s3, err := pool.Acquire(ctx)
	require.NoError(t, err)

	pool.Release(s2)
	pool.Release(s3)
}

func TestPool_ReleaseNil(t *testing.T) {
	pool, _ := newFakePool(t, 1)
	defer func() { _ = pool.Close() }()

	pool.Release(nil)
}

func TestPool_Close_Idempotent(t *testing.T) {
	pool, runners := newFakePool(t, 2)

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	for _, r := range *runners {
		assert.Equal(t, int32(1), r.closed.Load())
	}

	_, err := pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_ReleaseAfterClose(t *testing.T) {
	pool, _ := newFakePool(t, 1)

	session, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, pool.Close())

	// Release closes the session instead of returning it to the pool
	pool.Release(session)
	assert.Equal(t, int32(1), session.(*fakeRunner).closed.Load())
}

func TestPool_AcquireContextCancellation(t *testing.T) {
	pool, _ := newFakePool(t, 1)
	defer func() { _ = pool.Close() }()

	s1, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(s1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_ConcurrentAccess(t *testing.T) {
	pool, _ := newFakePool(t, 3)
	defer func() { _ = pool.Close() }()

	var wg sync.WaitGroup
	var successCount atomic.Int64

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				session, err := pool.Acquire(context.Background())
				if err != nil {
					t.Errorf("Acquire failed: %v", err)
					return
				}
				time.Sleep(time.Millisecond)
				pool.Release(session)
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int64(50), successCount.Load())
}

package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPoolClosed is returned by Acquire after the pool has been closed.
var ErrPoolClosed = errors.New("inference: pool is closed")

// Runner is a model session that turns token ids into per-token logits.
// *Session is the ONNX Runtime implementation.
type Runner interface {
	Infer(ctx context.Context, inputIDs, attentionMask []int64) ([]float32, error)
	Close() error
}

// Pool manages a fixed set of sessions for concurrent inference.
type Pool struct {
	sessions chan Runner
	size     int
	mu       sync.Mutex
	closed   bool
}

// NewPool creates a pool of size ONNX sessions for modelPath.
func NewPool(modelPath string, size int, opts SessionOptions) (*Pool, error) {
	return NewPoolFunc(size, func() (Runner, error) {
		return NewSession(modelPath, opts)
	})
}

// NewPoolFunc creates a pool of size sessions built by newRunner.
func NewPoolFunc(size int, newRunner func() (Runner, error)) (*Pool, error) {
	if size <= 0 {
		size = 1
	}

	pool := &Pool{
		sessions: make(chan Runner, size),
		size:     size,
	}

	for i := 0; i < size; i++ {
		session, err := newRunner()
		if err != nil {
			_ = pool.Close() // Best-effort cleanup; original error takes precedence
			return nil, fmt.Errorf("creating session %d: %w", i, err)
		}
		pool.sessions <- session
	}

	return pool, nil
}

// Acquire gets a session from the pool, blocking if none available.
// Respects context cancellation. Returns error if pool is closed.
func (p *Pool) Acquire(ctx context.Context) (Runner, error) {
	select {
	case session, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		return session, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a session to the pool.
func (p *Pool) Release(s Runner) {
	if s == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = s.Close()
		return
	}

	select {
	case p.sessions <- s:
	default:
		_ = s.Close() // Pool full; clean up excess session
	}
}

// Close closes all idle sessions. Sessions still acquired are closed on Release.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sessions)
	p.mu.Unlock()

	var errs []error
	for session := range p.sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Size returns the pool size.
func (p *Pool) Size() int {
	return p.size
}

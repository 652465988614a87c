package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned by Acquire once the pool has been closed.
var ErrClosed = errors.New("pool closed")

// Factory constructs the resource bound to a freshly granted slot.
type Factory[T any] func(ctx context.Context) (T, error)

// Stats is a point-in-time view of pool occupancy.
type Stats struct {
	Size    int `json:"size"`
	InUse   int `json:"inUse"`
	Waiting int `json:"waiting"`
}

// Option configures a Pool.
type Option func(*options)

type options struct {
	logger *zap.Logger
	name   string
}

// WithLogger sets the logger used for grant and release events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithName labels the pool in log output.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Pool caps the number of live resources at a fixed size and hands out
// slots in the order callers asked for them.
type Pool[T any] struct {
	mu     sync.Mutex
	size   int
	inUse  int
	queue  []*ticket
	seq    uint64
	closed bool
	done   chan struct{}
	log    *zap.Logger
}

type ticket struct {
	id      uint64
	ready   chan struct{}
	granted bool
}

// New creates a pool with size slots. Size must be at least 1.
func New[T any](size int, opts ...Option) (*Pool[T], error) {
	if size < 1 {
		return nil, fmt.Errorf("pool size must be at least 1, got %d", size)
	}
	o := options{logger: zap.NewNop(), name: "pool"}
	for _, opt := range opts {
		opt(&o)
	}
	return &Pool[T]{
		size: size,
		done: make(chan struct{}),
		log:  o.logger.With(zap.String("pool", o.name)),
	}, nil
}

// Acquire blocks until a slot is free, then runs factory and binds its
// result to the returned Lease. The factory never runs before a slot is
// granted. If it fails, the slot is handed back immediately and the error
// goes only to this caller.
func (p *Pool[T]) Acquire(ctx context.Context, factory Factory[T]) (*Lease[T], error) {
	id, err := p.wait(ctx)
	if err != nil {
		return nil, err
	}
	p.log.Debug("slot granted", zap.Uint64("ticket", id))

	value, err := factory(ctx)
	if err != nil {
		p.release()
		p.log.Debug("factory failed, slot returned", zap.Uint64("ticket", id), zap.Error(err))
		return nil, fmt.Errorf("constructing pooled resource: %w", err)
	}
	return &Lease[T]{pool: p, value: value, ticket: id}, nil
}

// Stats reports current occupancy.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Size: p.size, InUse: p.inUse, Waiting: len(p.queue)}
}

// Close rejects new and queued acquisitions. Outstanding leases stay valid
// and may still be released.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.queue = nil
	close(p.done)
}

func (p *Pool[T]) wait(ctx context.Context) (uint64, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrClosed
	}
	p.seq++
	id := p.seq
	if p.inUse < p.size && len(p.queue) == 0 {
		p.inUse++
		p.mu.Unlock()
		return id, nil
	}
	t := &ticket{id: id, ready: make(chan struct{})}
	p.queue = append(p.queue, t)
	p.mu.Unlock()
	p.log.Debug("waiting for slot", zap.Uint64("ticket", id))

	var cause error
	select {
	case <-t.ready:
		return id, nil
	case <-ctx.Done():
		cause = ctx.Err()
	case <-p.done:
		cause = ErrClosed
	}

	p.mu.Lock()
	if t.granted {
		// The permit was handed to us while we were giving up; pass it on.
		p.mu.Unlock()
		p.release()
		return 0, cause
	}
	p.removeLocked(t)
	p.mu.Unlock()
	return 0, cause
}

// release hands the permit to the oldest waiter, or frees the slot.
func (p *Pool[T]) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) > 0 {
		next := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		next.granted = true
		close(next.ready)
		return
	}
	p.inUse--
}

func (p *Pool[T]) removeLocked(t *ticket) {
	for i, q := range p.queue {
		if q == t {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			return
		}
	}
}

// Lease is exclusive use of one pool slot and the resource built for it.
type Lease[T any] struct {
	pool   *Pool[T]
	value  T
	ticket uint64
	once   sync.Once
}

// Value returns the resource bound to the lease.
func (l *Lease[T]) Value() T {
	return l.value
}

// Ticket returns the arrival number under which the lease was granted.
func (l *Lease[T]) Ticket() uint64 {
	return l.ticket
}

// Release returns the slot to the pool. If the resource implements
// io.Closer it is closed first. Calling Release more than once is a no-op.
func (l *Lease[T]) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		if c, ok := any(l.value).(io.Closer); ok {
			if err := c.Close(); err != nil {
				l.pool.log.Warn("closing pooled resource", zap.Uint64("ticket", l.ticket), zap.Error(err))
			}
		}
		l.pool.release()
		l.pool.log.Debug("slot released", zap.Uint64("ticket", l.ticket))
	})
}

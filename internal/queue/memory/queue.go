// Package memory provides queue implementations for local development.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan enrich.Business
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan enrich.Business, capacity),
	}
}

// Enqueue pushes a business into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, biz enrich.Business) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- biz:
		return nil
	}
}

// Dequeue pops the next business, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (enrich.Business, error) {
	select {
	case <-ctx.Done():
		return enrich.Business{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case biz, ok := <-q.ch:
		if !ok {
			return enrich.Business{}, errors.New("queue closed")
		}
		return biz, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}

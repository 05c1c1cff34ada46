package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
)

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	biz := enrich.Business{ID: "biz-1", WebsiteURL: "https://a.test"}
	require.NoError(t, q.Enqueue(context.Background(), biz))

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, biz, got)
}

func TestEnqueueBlocksUntilContextEnds(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), enrich.Business{ID: "biz-1"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, enrich.Business{ID: "biz-2"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDequeueRespectsCancellation(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDequeueAfterCloseReturnsError(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	q.Close() // idempotent

	_, err := q.Dequeue(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "queue closed")
}

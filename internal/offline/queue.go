// Package offline is the device side of field data entry: each form writes
// into a local queue and the user flushes it to the server when there is
// signal.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go-fundo-ops/internal/apperr"

	"go.uber.org/zap"
)

// PendingRecord is one queued form submission.
type PendingRecord struct {
	QueueID   string          `json:"queue_id"`
	Seq       int64           `json:"seq"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

var ErrEmptyQueueID = errors.New("queue id is required")

// Store keeps pending records in enqueue order per queue.
type Store interface {
	Append(ctx context.Context, queueID string, payload []byte, at time.Time) (*PendingRecord, error)
	List(ctx context.Context, queueID string) ([]PendingRecord, error)
	Count(ctx context.Context, queueID string) (int, error)
	// Remove deletes the records of queueID with seq <= upTo.
	Remove(ctx context.Context, queueID string, upTo int64) error
	Close() error
}

// Sink accepts a whole queue as one batch, or nothing.
type Sink interface {
	Submit(ctx context.Context, queueID string, records []PendingRecord) error
}

type Queue struct {
	store  Store
	sink   Sink
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	flushing map[string]*sync.Mutex
}

func NewQueue(store Store, sink Sink, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		store:    store,
		sink:     sink,
		now:      time.Now,
		logger:   logger,
		flushing: make(map[string]*sync.Mutex),
	}
}

// Enqueue appends a payload. It never touches the network.
func (q *Queue) Enqueue(ctx context.Context, queueID string, payload []byte) (*PendingRecord, error) {
	if queueID == "" {
		return nil, ErrEmptyQueueID
	}
	if !json.Valid(payload) {
		return nil, apperr.Validation("payload is not valid JSON")
	}
	return q.store.Append(ctx, queueID, payload, q.now().UTC())
}

func (q *Queue) Count(ctx context.Context, queueID string) (int, error) {
	return q.store.Count(ctx, queueID)
}

func (q *Queue) List(ctx context.Context, queueID string) ([]PendingRecord, error) {
	return q.store.List(ctx, queueID)
}

// Flush submits every pending record of queueID as one batch. An empty
// queue is a no-op. On failure the queue is left as it was; on success
// only the submitted records are removed, so anything enqueued while the
// flush was in flight stays pending.
func (q *Queue) Flush(ctx context.Context, queueID string) (int, error) {
	if queueID == "" {
		return 0, ErrEmptyQueueID
	}
	lock := q.flushLock(queueID)
	lock.Lock()
	defer lock.Unlock()

	records, err := q.store.List(ctx, queueID)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := q.sink.Submit(ctx, queueID, records); err != nil {
		q.logger.Warn("flush rejected, queue kept",
			zap.String("queue_id", queueID),
			zap.Int("pending", len(records)),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Error(err),
		)
		return 0, err
	}

	last := records[len(records)-1].Seq
	if err := q.store.Remove(ctx, queueID, last); err != nil {
		// The server already has the rows; a retry will collide on row_id
		// and be rejected as a conflict rather than duplicated.
		q.logger.Error("flush accepted but local queue not cleared",
			zap.String("queue_id", queueID), zap.Int64("up_to", last), zap.Error(err))
		return len(records), err
	}
	q.logger.Info("queue flushed", zap.String("queue_id", queueID), zap.Int("records", len(records)))
	return len(records), nil
}

func (q *Queue) flushLock(queueID string) *sync.Mutex {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.flushing[queueID]
	if !ok {
		l = &sync.Mutex{}
		q.flushing[queueID] = l
	}
	return l
}

func (q *Queue) Close() error { return q.store.Close() }

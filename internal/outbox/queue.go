package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned by Enqueue when the pending set is at capacity
	// and the incoming type does not coalesce into an existing entry. The
	// operation is dropped; older committed work is never evicted.
	ErrQueueFull = errors.New("outbox: pending queue is full")

	// ErrUnknownType is returned by Enqueue for a type outside the closed set.
	ErrUnknownType = errors.New("outbox: unknown operation type")
)

const (
	// DefaultMaxPending bounds the pending set (distinct types).
	DefaultMaxPending = 100
	// DefaultMaxAttempts is how many failed dispatches move an entry to the
	// failed set.
	DefaultMaxAttempts = 5
)

// Dispatcher performs the actual remote call for one operation. The queue
// knows nothing about URLs, methods, or response shapes; it only sees
// success (nil) or failure.
type Dispatcher interface {
	Dispatch(ctx context.Context, op Operation) error
}

// DispatchFunc adapts a closure to the Dispatcher interface.
type DispatchFunc func(ctx context.Context, op Operation) error

func (f DispatchFunc) Dispatch(ctx context.Context, op Operation) error {
	return f(ctx, op)
}

// Config tunes queue limits. Zero values fall back to the defaults.
type Config struct {
	MaxPending  int
	MaxAttempts int
}

// Queue is the offline mutation queue: it owns the in-memory pending and
// failed sets, serializes every mutation behind one mutex, applies the
// last-write-wins coalescing policy, and runs the sync/retry loop.
//
// Coalescing is deliberate: repeated edits of the same type keep only the
// most recent payload, so intermediate un-synced states are discarded in
// exchange for bounded growth.
//
// Entries that exhaust their retries stay in the failed set until the caller
// clears them or re-enqueues the same type; a reconnect does not revive them.
type Queue struct {
	mu          sync.Mutex
	pending     []*Operation // insertion order
	index       map[OpType]*Operation
	failed      []*Operation
	syncing     bool
	epoch       uint64 // bumped by ClearAll to invalidate in-flight dispatches
	rev         uint64 // bumped on every create/replace, tags Operation revisions
	store       Store
	dispatcher  Dispatcher
	maxPending  int
	maxAttempts int
	logger      *slog.Logger
	watchers    map[int]chan State
	nextWatcher int
	now         func() time.Time
}

// New builds a queue over the given store and dispatcher, loading whatever
// the store still holds from a previous run. A store that cannot be read is
// treated as empty; construction never fails because of persistence.
func New(store Store, dispatcher Dispatcher, cfg Config, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxPending
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	q := &Queue{
		index:       make(map[OpType]*Operation),
		store:       store,
		dispatcher:  dispatcher,
		maxPending:  cfg.MaxPending,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger.With("component", "outbox"),
		watchers:    make(map[int]chan State),
		now:         time.Now,
	}

	doc, err := store.Load()
	if err != nil {
		q.logger.Warn("failed to load persisted operations, starting empty", "error", err)
		return q
	}
	for i := range doc.Pending {
		op := doc.Pending[i]
		if _, dup := q.index[op.Type]; dup {
			continue // one entry per type; keep the first
		}
		p := &op
		p.rev = q.nextRev()
		q.pending = append(q.pending, p)
		q.index[op.Type] = p
	}
	for i := range doc.Failed {
		op := doc.Failed[i]
		q.failed = append(q.failed, &op)
	}
	if len(q.pending) > 0 || len(q.failed) > 0 {
		q.logger.Info("restored persisted operations",
			"pending", len(q.pending),
			"failed", len(q.failed))
	}
	return q
}

func (q *Queue) nextRev() uint64 {
	q.rev++
	return q.rev
}

// Enqueue records a deferred write. An existing pending entry of the same
// type is replaced in place: new payload, attempt count back to zero
// (last write wins). A failed entry of the same type is revived as a fresh
// pending entry. A new type beyond capacity is rejected with ErrQueueFull.
// The full queue is persisted before Enqueue returns.
func (q *Queue) Enqueue(typ OpType, payload []byte) error {
	if !typ.Valid() {
		return ErrUnknownType
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if cur, ok := q.index[typ]; ok {
		cur.Payload = append(cur.Payload[:0], payload...)
		cur.CreatedAt = q.now()
		cur.AttemptCount = 0
		cur.LastAttemptAt = nil
		cur.Error = ""
		cur.rev = q.nextRev()
		q.persistLocked()
		q.notifyLocked()
		return nil
	}

	if len(q.pending) >= q.maxPending {
		return ErrQueueFull
	}

	// Re-enqueueing a type that previously exhausted its retries resets it
	// to pending.
	q.dropFailedLocked(typ)

	op := newOperation(typ, payload, q.now())
	op.rev = q.nextRev()
	q.pending = append(q.pending, op)
	q.index[typ] = op
	q.persistLocked()
	q.notifyLocked()

	q.logger.Debug("operation enqueued", "type", typ, "id", op.ID)
	return nil
}

// Sync runs one pass over the pending set, dispatching every entry whose
// backoff window has elapsed. A second call while a pass is running is a
// no-op. Each entry settles independently: one failure never aborts the
// pass. The queue is persisted after every settle.
func (q *Queue) Sync(ctx context.Context) {
	q.mu.Lock()
	if q.syncing {
		q.mu.Unlock()
		return
	}
	q.syncing = true
	epoch := q.epoch
	q.notifyLocked()
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.syncing = false
		q.notifyLocked()
		q.mu.Unlock()
	}()

	q.logger.Debug("sync pass started")
	visited := make(map[OpType]bool)

	for {
		if ctx.Err() != nil {
			return
		}

		q.mu.Lock()
		if q.epoch != epoch {
			q.mu.Unlock()
			return
		}
		var next Operation
		found := false
		for _, p := range q.pending {
			if visited[p.Type] {
				continue
			}
			visited[p.Type] = true
			if !readyForRetry(p, q.now()) {
				continue // backoff window still open, next pass will retry
			}
			next = p.clone()
			found = true
			break
		}
		q.mu.Unlock()

		if !found {
			q.logger.Debug("sync pass finished")
			return
		}

		err := q.dispatcher.Dispatch(ctx, next)
		q.settle(epoch, next, err)
	}
}

// settle applies one dispatch outcome. The result is discarded when the
// queue was cleared mid-flight (epoch mismatch) or when the entry was
// replaced by a newer enqueue while the dispatch was outstanding.
func (q *Queue) settle(epoch uint64, dispatched Operation, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.epoch != epoch {
		return
	}
	cur, ok := q.index[dispatched.Type]
	if !ok || cur.rev != dispatched.rev {
		return
	}

	if err == nil {
		q.removePendingLocked(dispatched.Type)
		q.logger.Info("operation synced", "type", dispatched.Type, "id", dispatched.ID)
	} else {
		cur.AttemptCount++
		now := q.now()
		cur.LastAttemptAt = &now
		cur.Error = err.Error()
		if cur.AttemptCount >= q.maxAttempts {
			q.removePendingLocked(dispatched.Type)
			q.failed = append(q.failed, cur)
			q.logger.Warn("operation moved to failed set",
				"type", dispatched.Type,
				"id", dispatched.ID,
				"attempts", cur.AttemptCount,
				"error", err)
		} else {
			q.logger.Warn("operation dispatch failed",
				"type", dispatched.Type,
				"attempts", cur.AttemptCount,
				"retry_in", RetryDelay(cur.AttemptCount-1),
				"error", err)
		}
	}

	q.persistLocked()
	q.notifyLocked()
}

// SetLimits adjusts capacity and retry limits at runtime, for config
// hot-reload. Shrinking MaxPending below the current pending count never
// evicts entries; it only blocks new types until the set drains. Values at
// or below zero fall back to the defaults.
func (q *Queue) SetLimits(maxPending, maxAttempts int) {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if maxPending != q.maxPending || maxAttempts != q.maxAttempts {
		q.logger.Info("queue limits updated",
			"max_pending", maxPending,
			"max_attempts", maxAttempts)
	}
	q.maxPending = maxPending
	q.maxAttempts = maxAttempts
}

// OperationCount returns the number of pending operations. Failed entries
// do not count.
func (q *Queue) OperationCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// IsSyncing reports whether a sync pass is in progress.
func (q *Queue) IsSyncing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.syncing
}

// FailedOperations returns a copy of the failed set for diagnostics.
func (q *Queue) FailedOperations() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Operation, 0, len(q.failed))
	for _, op := range q.failed {
		out = append(out, op.clone())
	}
	return out
}

// ClearFailed empties the failed set. Pending entries are untouched.
func (q *Queue) ClearFailed() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.failed) == 0 {
		return
	}
	q.failed = nil
	q.persistLocked()
	q.notifyLocked()
}

// ClearAll empties both sets and persists an empty queue, e.g. on logout.
// Dispatch responses still in flight for cleared operations are discarded.
func (q *Queue) ClearAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.index = make(map[OpType]*Operation)
	q.failed = nil
	q.epoch++
	q.persistLocked()
	q.notifyLocked()
}

// removePendingLocked drops the entry for typ from the pending slice and
// index. Must be called with q.mu held.
func (q *Queue) removePendingLocked(typ OpType) {
	delete(q.index, typ)
	for i, p := range q.pending {
		if p.Type == typ {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// dropFailedLocked removes a failed entry for typ, if any. Must be called
// with q.mu held.
func (q *Queue) dropFailedLocked(typ OpType) {
	for i, f := range q.failed {
		if f.Type == typ {
			q.failed = append(q.failed[:i], q.failed[i+1:]...)
			return
		}
	}
}

// persistLocked re-serializes the whole collection to the store. Persistence
// failures are logged and swallowed: the queue stays valid in memory and the
// next mutation retries the write. Must be called with q.mu held.
func (q *Queue) persistLocked() {
	doc := Document{Version: DocumentVersion}
	doc.Pending = make([]Operation, 0, len(q.pending))
	for _, op := range q.pending {
		doc.Pending = append(doc.Pending, op.clone())
	}
	doc.Failed = make([]Operation, 0, len(q.failed))
	for _, op := range q.failed {
		doc.Failed = append(doc.Failed, op.clone())
	}
	if err := q.store.Save(doc); err != nil {
		q.logger.Warn("failed to persist operations", "error", err)
	}
}

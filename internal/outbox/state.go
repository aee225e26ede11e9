package outbox

// State is an observable snapshot of the queue for UI binding: how many
// writes are still pending, whether a sync pass is running, and which
// operations have exhausted their retries.
type State struct {
	PendingCount int         `json:"pending_count"`
	Syncing      bool        `json:"syncing"`
	Failed       []Operation `json:"failed"`
}

// notifyLocked pushes the current snapshot to every watcher. Sends never
// block: a watcher that has not drained its channel loses intermediate
// snapshots, keeping only the most recent one it managed to receive.
// Must be called with q.mu held.
func (q *Queue) notifyLocked() {
	st := q.stateLocked()
	for _, ch := range q.watchers {
		select {
		case ch <- st:
		default:
		}
	}
}

// stateLocked builds a snapshot. Must be called with q.mu held.
func (q *Queue) stateLocked() State {
	failed := make([]Operation, 0, len(q.failed))
	for _, op := range q.failed {
		failed = append(failed, op.clone())
	}
	return State{
		PendingCount: len(q.pending),
		Syncing:      q.syncing,
		Failed:       failed,
	}
}

// Watch registers a state watcher. Every mutation emits a snapshot on the
// returned channel. The cancel function unregisters the watcher and closes
// the channel; it is safe to call more than once.
func (q *Queue) Watch() (<-chan State, func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextWatcher
	q.nextWatcher++
	ch := make(chan State, 8)
	q.watchers[id] = ch

	cancel := func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if c, ok := q.watchers[id]; ok {
			delete(q.watchers, id)
			close(c)
		}
	}
	return ch, cancel
}

// State returns the current snapshot.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stateLocked()
}

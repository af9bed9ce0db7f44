package training

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

// Queue holds submitted modules in FIFO order and tracks which owners have a
// module that has not reached a terminal status yet.
type Queue struct {
	store Store

	mu          sync.Mutex
	fifo        *list.List
	outstanding map[uint64]struct{}

	wake chan struct{}
}

func NewQueue(store Store) *Queue {
	return &Queue{
		store:       store,
		fifo:        list.New(),
		outstanding: make(map[uint64]struct{}),
		wake:        make(chan struct{}, 1),
	}
}

// Enqueue persists m and appends it to the tail of the queue.
// If the owner already has an outstanding module nothing is written and
// ErrDuplicateSubmission is returned.
func (q *Queue) Enqueue(ctx context.Context, m *Module) error {
	if m == nil || m.Status != StatusPending {
		return fmt.Errorf("%w: only pending modules can be enqueued", ErrInvalidRequest)
	}

	q.mu.Lock()
	if _, busy := q.outstanding[m.UserID]; busy {
		q.mu.Unlock()
		return ErrDuplicateSubmission
	}
	// the insert stays inside the critical section so a concurrent submit for
	// the same owner cannot slip in between the check and the write
	if err := q.store.Insert(ctx, m); err != nil {
		q.mu.Unlock()
		return err
	}
	q.outstanding[m.UserID] = struct{}{}
	q.fifo.PushBack(m)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Restore re-queues a module that is already persisted as pending.
func (q *Queue) Restore(m *Module) error {
	if m == nil || m.Status != StatusPending {
		return fmt.Errorf("%w: only pending modules can be restored", ErrInvalidRequest)
	}

	q.mu.Lock()
	if _, busy := q.outstanding[m.UserID]; busy {
		q.mu.Unlock()
		return ErrDuplicateSubmission
	}
	q.outstanding[m.UserID] = struct{}{}
	q.fifo.PushBack(m)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Dequeue pops the head of the queue. It never blocks.
// The owner stays outstanding until Release.
func (q *Queue) Dequeue() (*Module, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.fifo.Front()
	if front == nil {
		return nil, false
	}
	q.fifo.Remove(front)
	return front.Value.(*Module), true
}

// Release clears the owner's outstanding mark once its module is terminal.
func (q *Queue) Release(userID uint64) {
	q.mu.Lock()
	delete(q.outstanding, userID)
	q.mu.Unlock()
}

func (q *Queue) Outstanding(userID uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.outstanding[userID]
	return ok
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fifo.Len()
}

// Wake receives a value after an enqueue. Pending signals coalesce.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

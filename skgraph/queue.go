package skgraph

import (
	"context"
	"errors"
	"sync"
)

type TaskID uint64

type Task func(ctx context.Context) error

type queuedTask struct {
	id    TaskID
	owner string
	fn    Task
}

// Queue is a FIFO of deferred layout work owned by a Canvas. Tasks are
// tagged with the id of the shape that scheduled them so removing a shape
// can cancel its pending work. Schedule and Cancel may be called from
// running tasks.
type Queue struct {
	mu    sync.Mutex
	next  TaskID
	tasks []*queuedTask
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Schedule(owner string, fn Task) TaskID {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	q.tasks = append(q.tasks, &queuedTask{id: q.next, owner: owner, fn: fn})
	return q.next
}

// Cancel removes a pending task. It reports whether the task was pending.
func (q *Queue) Cancel(id TaskID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.tasks {
		if t.id == id {
			q.tasks = append(q.tasks[:i:i], q.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// CancelOwner removes every pending task of owner and returns how many were
// removed.
func (q *Queue) CancelOwner(owner string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.tasks[:0]
	n := 0
	for _, t := range q.tasks {
		if t.owner == owner {
			n++
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(q.tasks); i++ {
		q.tasks[i] = nil
	}
	q.tasks = kept
	return n
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *Queue) pop() *queuedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil
	}
	t := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	return t
}

// Drain runs tasks until the queue is empty, including tasks scheduled by
// running tasks. Task errors are joined and returned after the queue is
// empty. Drain stops early when ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	var errs []error
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		t := q.pop()
		if t == nil {
			return errors.Join(errs...)
		}
		if err := t.fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
}

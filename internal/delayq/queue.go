// Package delayq holds commands scheduled for later execution.
//
// The queue keeps insertion order and at most one task per command string.
// All methods are safe for concurrent use: the daemon's event loop schedules
// tasks while the background executor drains them.
package delayq

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is a command due at ExecuteAt.
type Task struct {
	ID        string
	Command   string
	ExecuteAt time.Time
}

// Queue is an insertion-ordered set of tasks keyed by command.
type Queue struct {
	mu    sync.Mutex
	tasks []Task
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Upsert schedules command at executeAt. If command is already queued only
// its ExecuteAt changes and its position is kept. The returned task is the
// stored copy; updated reports whether an existing task was rescheduled.
func (q *Queue) Upsert(command string, executeAt time.Time) (task Task, updated bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.tasks {
		if q.tasks[i].Command == command {
			slog.Debug("[DEBUG-QUEUE] execute time updated",
				"command", command,
				"old", q.tasks[i].ExecuteAt,
				"new", executeAt,
			)
			q.tasks[i].ExecuteAt = executeAt
			return q.tasks[i], true
		}
	}

	task = Task{
		ID:        uuid.NewString(),
		Command:   command,
		ExecuteAt: executeAt,
	}
	q.tasks = append(q.tasks, task)
	return task, false
}

// DrainDue removes and returns, in queue order, every task whose ExecuteAt
// is strictly before now. Tasks scheduled later stay queued.
func (q *Queue) DrainDue(now time.Time) []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []Task
	q.tasks = slices.DeleteFunc(q.tasks, func(t Task) bool {
		if now.After(t.ExecuteAt) {
			due = append(due, t)
			return true
		}
		return false
	})
	return due
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Tasks returns a copy of the queued tasks in order.
func (q *Queue) Tasks() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.tasks)
}

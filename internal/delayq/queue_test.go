package delayq

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func commands(tasks []Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Command)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestUpsertDeduplicatesByCommand(t *testing.T) {
	q := New()
	first, updated := q.Upsert("cmd1", t0)
	if updated {
		t.Fatal("first Upsert reported updated=true")
	}
	second, updated := q.Upsert("cmd1", t0.Add(time.Minute))
	if !updated {
		t.Fatal("second Upsert reported updated=false")
	}

	tasks := q.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("Tasks() len = %d, want 1", len(tasks))
	}
	if !tasks[0].ExecuteAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("ExecuteAt = %v, want %v", tasks[0].ExecuteAt, t0.Add(time.Minute))
	}
	if first.ID == "" || first.ID != second.ID {
		t.Errorf("task ID changed across update: %q -> %q", first.ID, second.ID)
	}
}

func TestUpsertKeepsInsertionOrder(t *testing.T) {
	q := New()
	q.Upsert("a", t0)
	q.Upsert("b", t0)
	q.Upsert("c", t0)
	q.Upsert("a", t0.Add(time.Hour))

	if got := commands(q.Tasks()); !equalStrings(got, []string{"a", "b", "c"}) {
		t.Fatalf("Tasks() = %v, want [a b c]", got)
	}
}

func TestDrainDue(t *testing.T) {
	tests := []struct {
		name      string
		schedule  map[string]time.Duration
		order     []string
		now       time.Duration
		wantDue   []string
		wantQueue []string
	}{
		{
			name:      "empty queue",
			now:       time.Hour,
			wantDue:   nil,
			wantQueue: nil,
		},
		{
			name:      "only past tasks drain",
			schedule:  map[string]time.Duration{"early": 1 * time.Second, "late": 10 * time.Second, "mid": 3 * time.Second},
			order:     []string{"early", "late", "mid"},
			now:       5 * time.Second,
			wantDue:   []string{"early", "mid"},
			wantQueue: []string{"late"},
		},
		{
			name:      "task due exactly now stays queued",
			schedule:  map[string]time.Duration{"edge": 5 * time.Second},
			order:     []string{"edge"},
			now:       5 * time.Second,
			wantDue:   nil,
			wantQueue: []string{"edge"},
		},
		{
			name:      "consecutive due tasks all drain",
			schedule:  map[string]time.Duration{"a": 0, "b": 0, "c": 0},
			order:     []string{"a", "b", "c"},
			now:       time.Second,
			wantDue:   []string{"a", "b", "c"},
			wantQueue: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New()
			for _, cmd := range tt.order {
				q.Upsert(cmd, t0.Add(tt.schedule[cmd]))
			}

			due := q.DrainDue(t0.Add(tt.now))
			if got := commands(due); !equalStrings(got, tt.wantDue) {
				t.Errorf("DrainDue() = %v, want %v", got, tt.wantDue)
			}
			if got := commands(q.Tasks()); !equalStrings(got, tt.wantQueue) {
				t.Errorf("remaining = %v, want %v", got, tt.wantQueue)
			}
		})
	}
}

func TestQueueConcurrentUpsertAndDrain(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	const n = 200

	var drained sync.Map
	wg.Go(func() {
		for i := range n {
			q.Upsert(fmt.Sprintf("cmd-%d", i), t0)
		}
	})
	wg.Go(func() {
		for range n {
			for _, task := range q.DrainDue(t0.Add(time.Second)) {
				drained.Store(task.Command, true)
			}
		}
	})
	wg.Wait()

	for _, task := range q.DrainDue(t0.Add(time.Second)) {
		drained.Store(task.Command, true)
	}

	count := 0
	drained.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count != n {
		t.Fatalf("drained %d distinct commands, want %d", count, n)
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
}

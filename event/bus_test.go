package event

import (
	"sync"
	"testing"
	"time"
)

func TestBusDeliversInOrder(t *testing.T) {
	b := NewBus()
	var got []Type
	b.Subscribe(func(e Event) {
		got = append(got, e.Type)
	})

	b.Publish(Event{Type: TaskQueued, TaskID: "t1"})
	b.Publish(Event{Type: TaskStarted, TaskID: "t1"})
	b.Publish(Event{Type: TaskCompleted, TaskID: "t1"})

	want := []Type{TaskQueued, TaskStarted, TaskCompleted}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBusUnsubscribe(t *testing.T) {
	b := NewBus()
	count := 0
	unsub := b.Subscribe(func(Event) { count++ })

	b.Publish(Event{Type: WorkflowCreated})
	unsub()
	b.Publish(Event{Type: WorkflowCompleted})

	if count != 1 {
		t.Errorf("subscriber received %d events after unsubscribe, want 1", count)
	}
}

func TestBusStampsTimestamp(t *testing.T) {
	b := NewBus()
	var stamped time.Time
	b.Subscribe(func(e Event) { stamped = e.Timestamp })

	b.Publish(Event{Type: WorkflowCreated})
	if stamped.IsZero() {
		t.Error("published event should carry a timestamp")
	}
}

func TestBusConcurrentPublish(t *testing.T) {
	b := NewBus()
	var mu sync.Mutex
	count := 0
	b.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				b.Publish(Event{Type: TaskStepOutput})
			}
		}()
	}
	wg.Wait()

	if count != 200 {
		t.Errorf("received %d events, want 200", count)
	}
}

func TestCaptureFilters(t *testing.T) {
	c := NewCapture()
	c.Publish(Event{Type: TaskQueued, TaskID: "t1", WorkflowID: "wf-1"})
	c.Publish(Event{Type: TaskStarted, TaskID: "t1", WorkflowID: "wf-1"})
	c.Publish(Event{Type: TaskQueued, TaskID: "t2", WorkflowID: "wf-1"})

	if got := len(c.OfType(TaskQueued)); got != 2 {
		t.Errorf("OfType(TaskQueued) = %d events, want 2", got)
	}
	forT1 := c.ForTask("t1")
	if len(forT1) != 2 {
		t.Fatalf("ForTask(t1) = %d events, want 2", len(forT1))
	}
	if forT1[0].Type != TaskQueued || forT1[1].Type != TaskStarted {
		t.Errorf("ForTask(t1) out of order: %v, %v", forT1[0].Type, forT1[1].Type)
	}
}

func TestCaptureWaitFor(t *testing.T) {
	c := NewCapture()
	go func() {
		time.Sleep(10 * time.Millisecond)
		c.Publish(Event{Type: WorkflowCompleted, WorkflowID: "wf-9"})
	}()

	ok := c.WaitFor(func(e Event) bool {
		return e.Type == WorkflowCompleted && e.WorkflowID == "wf-9"
	}, time.Second)
	if !ok {
		t.Error("WaitFor timed out waiting for workflow_completed")
	}
}

func TestSubjectFor(t *testing.T) {
	if s := SubjectFor(TaskCompleted); s != "company.events.task.completed" {
		t.Errorf("SubjectFor(TaskCompleted) = %q", s)
	}
	if s := SubjectFor(Type("bogus")); s != "" {
		t.Errorf("SubjectFor(bogus) = %q, want empty", s)
	}
}

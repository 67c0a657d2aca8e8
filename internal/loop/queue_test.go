package loop

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int](10)

	for i := 0; i < 5; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}

	if q.Len() != 5 {
		t.Errorf("Len() = %d, want 5", q.Len())
	}

	for i := 0; i < 5; i++ {
		val, ok := q.TryPop()
		if !ok {
			t.Fatalf("TryPop() returned false for item %d", i)
		}
		if val != i {
			t.Errorf("popped %d, want %d", val, i)
		}
	}

	if _, ok := q.TryPop(); ok {
		t.Error("TryPop() on empty queue returned true")
	}
}

func TestQueue_GrowPreservesOrder(t *testing.T) {
	q := NewQueue[int](4)

	// Interleave pops so the ring wraps before growing.
	next := 0
	for i := 0; i < 100; i++ {
		q.Push(i)
		if i%3 == 0 {
			val, _ := q.TryPop()
			if val != next {
				t.Fatalf("popped %d, want %d", val, next)
			}
			next++
		}
	}

	stats := q.Stats()
	if stats.ResizeCount < 3 {
		t.Errorf("ResizeCount = %d, expected at least 3 resizes", stats.ResizeCount)
	}
	if stats.TotalPushed != 100 {
		t.Errorf("TotalPushed = %d, want 100", stats.TotalPushed)
	}

	for q.Len() > 0 {
		val, _ := q.TryPop()
		if val != next {
			t.Fatalf("popped %d, want %d", val, next)
		}
		next++
	}
	if next != 100 {
		t.Errorf("drained up to %d, want 100", next)
	}
}

func TestQueue_BlockingPop(t *testing.T) {
	q := NewQueue[int](10)

	popped := make(chan int, 1)
	go func() {
		val, ok := q.Pop()
		if ok {
			popped <- val
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(42)

	select {
	case val := <-popped:
		if val != 42 {
			t.Errorf("popped %d, want 42", val)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Pop")
	}
}

func TestQueue_CloseDrainsThenStops(t *testing.T) {
	q := NewQueue[int](10)
	q.Push(1)
	q.Close()

	if q.Push(2) {
		t.Error("Push after Close returned true")
	}

	val, ok := q.Pop()
	if !ok || val != 1 {
		t.Errorf("Pop() = (%d, %v), want (1, true)", val, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() on closed empty queue returned true")
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := NewQueue[int](2)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	if q.Len() != 2000 {
		t.Errorf("Len() = %d, want 2000", q.Len())
	}
}

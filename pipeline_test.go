package tendon

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/akmonengine/tendon/constraint"
)

func TestTask(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		size    int
	}{
		{"single worker", 1, 10},
		{"more workers than data", 8, 3},
		{"uneven chunks", 3, 10},
		{"empty", 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]int, tt.size)
			for i := range data {
				data[i] = i
			}

			var mu sync.Mutex
			seen := make(map[int]int)
			task(tt.workers, data, func(v int) {
				mu.Lock()
				seen[v]++
				mu.Unlock()
			})

			if len(seen) != tt.size {
				t.Fatalf("expected %d items, got %d", tt.size, len(seen))
			}
			for v, n := range seen {
				if n != 1 {
					t.Errorf("item %d processed %d times", v, n)
				}
			}
		})
	}
}

func TestBatchTask_Order(t *testing.T) {
	batches := [][]constraint.JointHandle{
		make([]constraint.JointHandle, 5),
		make([]constraint.JointHandle, 1),
		make([]constraint.JointHandle, 7),
	}

	var mu sync.Mutex
	var sizes []int
	var calls atomic.Int32
	batchTask(3, batches, func(handles []constraint.JointHandle) bool {
		calls.Add(1)
		mu.Lock()
		sizes = append(sizes, len(handles))
		mu.Unlock()
		return false
	})

	total := 0
	for _, s := range sizes {
		total += s
	}
	if total != 13 {
		t.Errorf("expected 13 handles to be solved, got %d", total)
	}
	// 5 -> 2+2+1, 1 -> 1, 7 -> 3+3+1
	if calls.Load() != 7 {
		t.Errorf("expected 7 chunks, got %d", calls.Load())
	}
}

func TestBatchTask_Active(t *testing.T) {
	batches := [][]constraint.JointHandle{
		make([]constraint.JointHandle, 4),
		make([]constraint.JointHandle, 4),
	}

	var calls atomic.Int32
	active := batchTask(2, batches, func(handles []constraint.JointHandle) bool {
		return calls.Add(1) == 3
	})
	if !active {
		t.Error("one active chunk should make the pass active")
	}

	if batchTask(2, batches, func([]constraint.JointHandle) bool { return false }) {
		t.Error("no active chunk should report an inactive pass")
	}
	if batchTask(2, nil, func([]constraint.JointHandle) bool { return true }) {
		t.Error("no batches should report an inactive pass")
	}
}

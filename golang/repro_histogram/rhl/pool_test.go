package rhl

import (
	"sync/atomic"
	"testing"
)

type taskCount struct {
	counter *int64
}

func (t *taskCount) Execute() {
	atomic.AddInt64(t.counter, 1)
}

func TestPoolRunsEveryTask(t *testing.T) {
	var counter int64
	taskPool := NewPool(4)
	for i := 0; i < 100; i++ {
		taskPool.AddTask(&taskCount{counter: &counter})
	}
	taskPool.Close()
	taskPool.WaitAll()

	if counter != 100 {
		t.Fatalf("expected 100 executed tasks, got %d", counter)
	}
}

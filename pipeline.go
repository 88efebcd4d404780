package tendon

import (
	"sync"

	"github.com/akmonengine/tendon/constraint"
	"golang.org/x/sync/errgroup"
)

func task[T any](workersCount int, data []T, fn func(data T)) {
	var wg sync.WaitGroup
	dataSize := len(data)
	chunkSize := (dataSize + workersCount - 1) / workersCount

	for workerID := 0; workerID < workersCount; workerID++ {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(data[i])
			}
		}(workerID*chunkSize, min((workerID+1)*chunkSize, dataSize))
	}
	wg.Wait()
}

// batchTask runs the batches in order. The joints of one batch share no
// dynamic body, so each batch is split in chunks solved concurrently.
// It returns whether any call of fn reported an active joint.
func batchTask(workersCount int, batches [][]constraint.JointHandle, fn func(handles []constraint.JointHandle) bool) bool {
	active := false

	for _, batch := range batches {
		chunkSize := (len(batch) + workersCount - 1) / workersCount
		results := make([]bool, workersCount)

		var g errgroup.Group
		g.SetLimit(workersCount)
		for workerID := 0; workerID < workersCount; workerID++ {
			start, end := workerID*chunkSize, min((workerID+1)*chunkSize, len(batch))
			if start >= end {
				break
			}

			g.Go(func() error {
				results[workerID] = fn(batch[start:end])
				return nil
			})
		}
		_ = g.Wait()

		for _, r := range results {
			active = active || r
		}
	}

	return active
}

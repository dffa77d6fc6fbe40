package quill

import "sync"

// task spreads fn over the items on workersCount goroutines. The item index
// is passed through so callers can collect results into pre-sized slots and
// keep a deterministic order regardless of worker count.
func task[T any](workersCount int, data []T, fn func(index int, item T)) {
	var wg sync.WaitGroup
	dataSize := len(data)
	chunkSize := (dataSize + workersCount - 1) / workersCount

	for workerID := 0; workerID < workersCount; workerID++ {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i, data[i])
			}
		}(workerID*chunkSize, min((workerID+1)*chunkSize, dataSize))
	}
	wg.Wait()
}

package storage

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BatchReader reads many blobs in parallel from one store.
type BatchReader struct {
	store       BlobStore
	concurrency int
}

// BatchResult contains the outcome of a batch read.
type BatchResult struct {
	Blobs  map[string][]byte
	Errors map[string]error
}

// NewBatchReader creates a new batch reader.
// concurrency is the maximum number of parallel reads.
func NewBatchReader(store BlobStore, concurrency int) *BatchReader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchReader{store: store, concurrency: concurrency}
}

// Read fetches every key. A failed key is reported in Errors and does not
// affect the others.
func (b *BatchReader) Read(ctx context.Context, keys []string) *BatchResult {
	result := &BatchResult{
		Blobs:  make(map[string][]byte, len(keys)),
		Errors: make(map[string]error),
	}

	sem := semaphore.NewWeighted(int64(b.concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, key := range keys {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled or semaphore failed
			mu.Lock()
			result.Errors[key] = fmt.Errorf("semaphore acquire failed: %w", err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(key string) {
			defer sem.Release(1)
			defer wg.Done()

			data, err := b.store.Get(ctx, key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[key] = err
				return
			}
			result.Blobs[key] = data
		}(key)
	}

	wg.Wait()
	return result
}

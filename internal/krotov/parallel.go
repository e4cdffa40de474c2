package krotov

import "sync"

// ParallelMap evaluates task for every index in [0, n) and blocks until all
// tasks have completed. Tasks are mutually independent: each one only
// writes its own slot of whatever output it targets, so implementations may
// use any execution order or degree of parallelism.
type ParallelMap func(n int, task func(i int) error) error

// SerialMap runs all tasks sequentially in index order. It is the default.
func SerialMap(n int, task func(i int) error) error {
	for i := 0; i < n; i++ {
		if err := task(i); err != nil {
			return err
		}
	}
	return nil
}

// ConcurrentMap runs every task in its own goroutine and waits for all of
// them. The first error in index order is returned.
func ConcurrentMap(n int, task func(i int) error) error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			errs[idx] = task(idx)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

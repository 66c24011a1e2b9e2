package db

import "sync"

// fanOut runs op for every index at once and waits for all of them.
// Nothing is ordered between the calls and nothing is undone on failure.
func fanOut(ids []string, op func(i int) error) BatchResult {
	outcomes := make([]Outcome, len(ids))

	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = Outcome{ID: ids[i], Err: op(i)}
		}(i)
	}
	wg.Wait()

	return BatchResult{Outcomes: outcomes}
}

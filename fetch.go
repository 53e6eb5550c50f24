// concurrent session listing across sources.
//
// a claude project directory scan and an opencode sqlite query are
// independent, so every source lists in its own goroutine.

package main

import "sync"

// listing is one source's answer to listSessions.
type listing struct {
	kind     sourceKind
	sessions []sessionInfo
	err      error
}

// fetchAll lists every source concurrently. results keep source order.
func fetchAll(sources []source) []listing {
	var wg sync.WaitGroup
	results := make([]listing, len(sources))

	wg.Add(len(sources))
	for i, s := range sources {
		go func() {
			defer wg.Done()
			sessions, err := s.listSessions()
			results[i] = listing{kind: s.kind(), sessions: sessions, err: err}
		}()
	}

	wg.Wait()
	return results
}

package pipeline

import "sync"

// inflight tracks job ids currently being processed by this process.
type inflight struct {
	mu   sync.Mutex
	jobs map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{jobs: make(map[string]struct{})}
}

// acquire marks id as active. It returns false when id is already active.
func (f *inflight) acquire(id string) (release func(), ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.jobs[id]; busy {
		return nil, false
	}
	f.jobs[id] = struct{}{}
	return func() {
		f.mu.Lock()
		delete(f.jobs, id)
		f.mu.Unlock()
	}, true
}

// active reports how many jobs are in flight.
func (f *inflight) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

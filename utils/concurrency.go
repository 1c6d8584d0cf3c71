package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WorkerPool runs jobs on at most maxWorkers goroutines.
type WorkerPool struct {
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// NewWorkerPool creates a WorkerPool with the given concurrency.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{semaphore: make(chan struct{}, maxWorkers)}
}

// Submit enqueues a job for execution in the pool. It blocks while the pool is full.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Pacer spaces out page loads by a fixed interval. The first call returns immediately.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a Pacer allowing one event per interval. A zero interval never waits.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next page load is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// LinkSet is an insertion-ordered set of URLs, each carrying an optional value
// (the hero image seen next to the link). The first value stored for a URL wins.
type LinkSet struct {
	mu     sync.RWMutex
	order  []string
	values map[string]string
}

// NewLinkSet creates an empty LinkSet.
func NewLinkSet() *LinkSet {
	return &LinkSet{values: make(map[string]string)}
}

// Add returns true if the URL was newly added, false if already present.
// A repeated URL keeps the value from its first sighting.
func (s *LinkSet) Add(url, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.values[url]; exists {
		return false
	}
	s.values[url] = value
	s.order = append(s.order, url)
	return true
}

// Value returns the value stored with url.
func (s *LinkSet) Value(url string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[url]
}

// URLs returns the URLs in first-seen order.
func (s *LinkSet) URLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Size returns the number of unique URLs tracked.
func (s *LinkSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

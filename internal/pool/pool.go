// Package pool schedules named, recurring jobs on a fixed set of goroutines.
package pool

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Never is the deadline a job returns to stay registered without being
// rescheduled; only Trigger runs it again.
var Never = time.Now().Add(100 * 365 * 24 * time.Hour)

// Pool executes jobs in order of their deadlines. Each job returns its next
// deadline; a zero deadline removes it. Trigger pulls a job to the front of
// the queue, or, if it is running, makes it run once more right after.
// Triggers arriving while a job runs coalesce into that single rerun.
type Pool struct {
	mu    sync.Mutex
	queue []*job
	reg   map[string]*job
	wait  chan struct{}
	wg    sync.WaitGroup
}

type job struct {
	name     string
	fn       func(context.Context) time.Time
	deadline time.Time
	rerun    bool
}

// New starts workers goroutines that run until ctx is done.
func New(ctx context.Context, workers int) *Pool {
	p := &Pool{reg: make(map[string]*job)}
	for range max(workers, 1) {
		p.wg.Add(1)
		go p.work(ctx)
	}
	return p
}

// Add registers a job due now.
func (p *Pool) Add(name string, fn func(context.Context) time.Time) {
	p.enqueue(&job{name: name, fn: fn, deadline: time.Now()})
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		j := p.dequeue(ctx)
		if j == nil {
			return
		}
		p.enqueue(j.execute(ctx))
	}
}

// Trigger runs the named job now regardless of its deadline.
func (p *Pool) Trigger(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i := slices.IndexFunc(p.queue, func(j *job) bool { return j.name == name }); i != -1 {
		p.queue[i].deadline = time.Now()
		p.sortAndWake()
		return nil
	}
	// Not queued, so it is running.
	if j, ok := p.reg[name]; ok {
		j.rerun = true
		return nil
	}

	return fmt.Errorf("no job with name %s", name)
}

// sortAndWake must be called with p.mu held.
func (p *Pool) sortAndWake() {
	slices.SortFunc(p.queue, func(a, b *job) int {
		return a.deadline.Compare(b.deadline)
	})

	if p.wait != nil {
		close(p.wait)
		p.wait = nil
	}
}

func (p *Pool) enqueue(j *job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// rerun is set by Trigger while the job runs.
	if j.rerun && !j.deadline.IsZero() {
		j.deadline = time.Now()
	}
	j.rerun = false
	if j.deadline.IsZero() {
		delete(p.reg, j.name)
		return
	}
	p.reg[j.name] = j
	p.queue = append(p.queue, j)
	p.sortAndWake()
}

// dequeue blocks until the earliest job is due and returns it, or returns
// nil once ctx is done.
func (p *Pool) dequeue(ctx context.Context) *job {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return nil
		}

		due := Never
		if len(p.queue) > 0 {
			due = p.queue[0].deadline
		}
		if !due.After(time.Now()) {
			break
		}

		if p.wait == nil {
			p.wait = make(chan struct{})
		}
		wait := p.wait

		p.mu.Unlock()
		timer := time.NewTimer(time.Until(due))
		select {
		case <-timer.C:
		case <-wait:
		case <-ctx.Done():
		}
		timer.Stop()
		p.mu.Lock()
	}

	var j *job
	j, p.queue = p.queue[0], p.queue[1:]
	return j
}

func (j *job) execute(ctx context.Context) *job {
	j.deadline = j.fn(ctx)
	return j
}

package cron

import (
	"context"
	"sync"
	"time"
)

// Job is one piece of storefront maintenance run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// cadenced jobs run at most once per Every. Jobs without it run every tick.
type cadenced interface {
	Every() time.Duration
}

type schedule struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry holds the jobs and remembers when each last succeeded.
type Registry struct {
	mu      sync.Mutex
	entries []*schedule
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	entry := &schedule{job: job}
	if c, ok := job.(cadenced); ok {
		entry.every = c.Every()
	}
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

// Due lists the jobs whose cadence has elapsed at now, in registration order.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		if e.every <= 0 || e.lastRun.IsZero() || !now.Before(e.lastRun.Add(e.every)) {
			due = append(due, e.job)
		}
	}
	return due
}

// MarkRan records a successful run. Failed jobs stay due.
func (r *Registry) MarkRan(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.job.Name() == name {
			e.lastRun = at
		}
	}
}

func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.job.Name())
	}
	return names
}

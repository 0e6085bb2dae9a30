package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one unit of scheduled work. Name doubles as the metrics label and the -jobs selector.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order, at most one per name.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register appends job, or swaps it in place when a job with the same name exists.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	for i, existing := range r.jobs {
		if existing.Name() == job.Name() {
			r.jobs[i] = job
			return
		}
	}
	r.jobs = append(r.jobs, job)
}

func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}

// Select narrows the registry to the comma separated job names. An empty selector keeps every
// job; an unknown name is an error so a typo in a deploy flag does not silently skip work.
func (r *Registry) Select(selector string) (*Registry, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return NewRegistry(r.jobs...), nil
	}
	byName := make(map[string]Job, len(r.jobs))
	for _, job := range r.jobs {
		byName[job.Name()] = job
	}
	selected := &Registry{}
	for _, name := range strings.Split(selector, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		job, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown cron job %q (have %s)", name, strings.Join(r.Names(), ", "))
		}
		selected.Register(job)
	}
	return selected, nil
}

package cron

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Result summarizes one job run.
type Result struct {
	Purged int64
}

// Job is a housekeeping task executed by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) (Result, error)
}

// Registry holds jobs under unique names, in the order they were added.
type Registry struct {
	order  []string
	byName map[string]Job
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{byName: make(map[string]Job, len(jobs))}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds job. Nil jobs are ignored; a repeated name is an error.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := job.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("cron job %T has no name", job)
	}
	if _, taken := r.byName[name]; taken {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.byName[name] = job
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

func (r *Registry) Jobs() []Job {
	out := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Only narrows the registry to the named jobs, keeping registration order.
func (r *Registry) Only(names ...string) (*Registry, error) {
	subset := &Registry{byName: map[string]Job{}}
	for _, name := range names {
		job, ok := r.byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown cron job %q (have %s)", name, strings.Join(r.order, ", "))
		}
		subset.byName[name] = job
	}
	for _, name := range r.order {
		if _, ok := subset.byName[name]; ok {
			subset.order = append(subset.order, name)
		}
	}
	return subset, nil
}

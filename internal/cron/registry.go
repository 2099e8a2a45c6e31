package cron

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Job is one unit of work run on every cron cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

var ErrUnknownJob = errors.New("unknown cron job")

// Registry holds jobs in run order. Names are unique so they can be used as
// metric labels and on the -jobs flag.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return errors.New("cron job is nil")
	}
	name := job.Name()
	if strings.TrimSpace(name) == "" {
		return errors.New("cron job name is required")
	}
	if r.find(name) != nil {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}

// Subset keeps only the named jobs, preserving registry order. An empty list
// returns the registry unchanged.
func (r *Registry) Subset(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if r.find(name) == nil {
			return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownJob, name, strings.Join(r.Names(), ", "))
		}
		want[name] = true
	}
	subset := &Registry{}
	for _, job := range r.jobs {
		if want[job.Name()] {
			subset.jobs = append(subset.jobs, job)
		}
	}
	return subset, nil
}

func (r *Registry) find(name string) Job {
	for _, job := range r.jobs {
		if job.Name() == name {
			return job
		}
	}
	return nil
}

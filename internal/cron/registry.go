package cron

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// TimeOfDay is a local wall-clock time at which a daily job becomes due.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func At(hour, minute int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute}
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// reached reports whether the local time now is at or past t.
func (t TimeOfDay) reached(now time.Time) bool {
	if now.Hour() != t.Hour {
		return now.Hour() > t.Hour
	}
	return now.Minute() >= t.Minute
}

func (t TimeOfDay) before(other TimeOfDay) bool {
	if t.Hour != other.Hour {
		return t.Hour < other.Hour
	}
	return t.Minute < other.Minute
}

// Job is a daily task run by the cron worker. Run returns the number of
// records it touched.
type Job interface {
	Name() string
	At() TimeOfDay
	Run(ctx context.Context) (int, error)
}

// Registry tracks registered cron jobs.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with the provided jobs.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job to the registry.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
	sort.SliceStable(r.jobs, func(i, j int) bool {
		return r.jobs[i].At().before(r.jobs[j].At())
	})
}

// Jobs returns the registered jobs ordered by their time of day.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

package worker

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDispatcherBusy is returned when the pending job limit is reached.
	ErrDispatcherBusy = errors.New("dispatcher busy")
	// ErrJobCancelled is returned to callers whose queued job was dropped.
	ErrJobCancelled = errors.New("job cancelled")
)

type JobType int

const (
	Run JobType = iota
	Stop
)

func (t JobType) String() string {
	switch t {
	case Run:
		return "run"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("JobType(%d)", int(t))
	}
}

// Job is a unit of work queued under a fairness key.
type Job struct {
	Type JobType
	Key  string

	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

func (j Job) run() {
	defer func() {
		if r := recover(); r != nil {
			j.done <- fmt.Errorf("job panicked: %v", r)
		}
	}()
	// the caller may already have given up while the job sat in the queue
	if err := j.ctx.Err(); err != nil {
		j.done <- err
		return
	}
	j.done <- j.fn(j.ctx)
}

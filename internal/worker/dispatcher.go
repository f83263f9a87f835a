package worker

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type keyQueue struct {
	jobs     []Job
	enqueued bool
}

// Config sizes the dispatcher and its worker pool.
type Config struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

// Dispatcher runs jobs on a bounded worker pool, serving keys round-robin
// so one busy session cannot starve the others.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // entry point for submitted jobs

	submitMu  sync.Mutex
	pending   int
	queueSize int

	mu        sync.Mutex
	queues    map[string]*keyQueue
	ready     *list.List // keys with queued jobs, next to serve at the front
	positions map[string]*list.Element
	quit      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	pool := newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.IdleTimeout)

	d := &Dispatcher{
		queues:    make(map[string]*keyQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		pool:      pool,
		JobQueue:  make(chan Job, cfg.QueueSize),
		queueSize: cfg.QueueSize,
		quit:      make(chan struct{}),
	}

	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Do queues fn under key and waits for it to finish or for ctx to end.
// When ctx ends first the job keeps running in its worker and its result
// is discarded.
func (d *Dispatcher) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	job := Job{Type: Run, Key: key, ctx: ctx, fn: fn, done: make(chan error, 1)}

	d.submitMu.Lock()
	if d.pending >= d.queueSize {
		d.submitMu.Unlock()
		return ErrDispatcherBusy
	}
	d.pending++
	d.JobQueue <- job
	d.submitMu.Unlock()

	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports jobs accepted but not yet handed to a worker.
func (d *Dispatcher) Pending() int {
	d.submitMu.Lock()
	defer d.submitMu.Unlock()
	return d.pending
}

func (d *Dispatcher) release(n int) {
	d.submitMu.Lock()
	d.pending -= n
	d.submitMu.Unlock()
}

// Close stops dispatching. Jobs already running finish on their own.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.quit)
		d.pool.close()
	})
}

func (d *Dispatcher) run() {
	for {
		d.drain()
		if !d.dispatchOne() {
			select {
			case job := <-d.JobQueue:
				d.enqueueJob(job)
			case <-d.quit:
				return
			}
		}
	}
}

// drain moves every submitted job into its key queue without blocking.
func (d *Dispatcher) drain() {
	for {
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		default:
			return
		}
	}
}

// CancelKey drops every queued job for key. Their callers get ErrJobCancelled.
func (d *Dispatcher) CancelKey(key string) {
	d.mu.Lock()
	var dropped []Job
	if q, ok := d.queues[key]; ok {
		dropped = q.jobs
		delete(d.queues, key)
	}
	if elem, ok := d.positions[key]; ok {
		d.ready.Remove(elem)
		delete(d.positions, key)
	}
	d.mu.Unlock()

	if len(dropped) == 0 {
		return
	}
	d.release(len(dropped))
	for _, job := range dropped {
		job.done <- ErrJobCancelled
	}
	debugLog("[dispatcher] cancelled %d jobs for key %s", len(dropped), key)
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.Key]
	if q == nil {
		q = &keyQueue{}
		d.queues[job.Key] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[job.Key] = d.ready.PushBack(job.Key)
}

// dispatchOne hands the next job of the front key to a worker, then moves
// the key to the back if it still has work.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, key)
		delete(d.queues, key)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	debugLog("[dispatcher] assign job %s for key %s to worker-%d", job.Type, key, d.pool.workerID(workerChan))
	workerChan <- job
	d.release(1)
	return true
}

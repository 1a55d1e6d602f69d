// Package workerpool reads joined segments in parallel. Each task owns the
// cursors it creates; the adapters behind them may be shared by all workers.
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Common errors
var (
	ErrPoolClosed  = errors.New("workerpool: pool is closed")
	ErrInvalidSize = errors.New("workerpool: invalid pool size")
	ErrTaskPanic   = errors.New("workerpool: task panicked")
)

// Task is one unit of work run by a worker.
type Task func(ctx context.Context) error

// Config holds worker pool configuration
type Config struct {
	// Size is the number of workers in the pool
	Size int
	// QueueSize is the task queue buffer size (0 = unbuffered)
	QueueSize int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{Size: 4, QueueSize: 100}
}

// Pool runs submitted tasks on a fixed number of workers.
type Pool struct {
	config  Config
	tasks   chan taskWrapper
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  atomic.Bool
	taskCnt atomic.Int64
	errCnt  atomic.Int64
}

type taskWrapper struct {
	ctx    context.Context
	task   Task
	result chan error
}

// New creates a pool and starts its workers.
func New(config Config) (*Pool, error) {
	if config.Size <= 0 {
		return nil, ErrInvalidSize
	}
	p := &Pool{
		config: config,
		tasks:  make(chan taskWrapper, config.QueueSize),
	}
	for i := 0; i < config.Size; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p, nil
}

func (p *Pool) work() {
	defer p.wg.Done()
	for w := range p.tasks {
		err := p.execute(w)
		if err != nil {
			p.errCnt.Add(1)
		}
		w.result <- err
	}
}

// execute runs a task, converting a panic into ErrTaskPanic.
func (p *Pool) execute(w taskWrapper) (err error) {
	p.taskCnt.Add(1)
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrTaskPanic, "%v", r)
		}
	}()
	if err := w.ctx.Err(); err != nil {
		return err
	}
	return w.task(w.ctx)
}

// Submit queues a task and returns a channel receiving its error.
func (p *Pool) Submit(ctx context.Context, task Task) (<-chan error, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	result := make(chan error, 1)
	select {
	case p.tasks <- taskWrapper{ctx: ctx, task: task, result: result}:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run submits every task and waits for all of them. It returns the first
// error in task order.
func (p *Pool) Run(ctx context.Context, tasks []Task) error {
	results := make([]<-chan error, len(tasks))
	for i, task := range tasks {
		ch, err := p.Submit(ctx, task)
		if err != nil {
			for _, submitted := range results[:i] {
				<-submitted
			}
			return err
		}
		results[i] = ch
	}

	var first error
	for _, ch := range results {
		if err := <-ch; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close stops accepting tasks and waits for queued tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed.Swap(true) {
		p.mu.Unlock()
		return
	}
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

// Stats holds pool statistics
type Stats struct {
	Workers       int
	TasksExecuted int64
	TasksFailed   int64
	IsClosed      bool
}

// Stats returns current pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:       p.config.Size,
		TasksExecuted: p.taskCnt.Load(),
		TasksFailed:   p.errCnt.Load(),
		IsClosed:      p.closed.Load(),
	}
}

package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 64
	taskTimeout      = 30 * time.Second
)

// Task is a unit of background work detached from any request lifetime.
// Run receives its own context; request cancellation never propagates here.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool executes tasks on a fixed set of workers. Tasks that fail or panic are
// logged and dropped; nothing a task does can surface to a request handler.
type Pool struct {
	tasks chan Task
	log   *zap.SugaredLogger

	wg       sync.WaitGroup
	inflight sync.WaitGroup
	closed   chan struct{}
	once     sync.Once
}

// NewPool starts the workers immediately.
func NewPool(workers, queueSize int, log *zap.SugaredLogger) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	p := &Pool{
		tasks:  make(chan Task, queueSize),
		log:    log,
		closed: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Submit enqueues a task. When the queue is full the task runs on its own
// goroutine instead, so submission never blocks a response path.
func (p *Pool) Submit(t Task) {
	if t.Run == nil {
		return
	}
	p.inflight.Add(1)
	select {
	case <-p.closed:
		p.inflight.Done()
		return
	default:
	}
	select {
	case p.tasks <- t:
	default:
		go func() {
			defer p.inflight.Done()
			p.execute(t)
		}()
		return
	}
}

// Quiesce blocks until all submitted tasks have finished or ctx expires.
func (p *Pool) Quiesce(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for in-flight work.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() {
		close(p.closed)
	})
	if err := p.Quiesce(ctx); err != nil {
		return err
	}
	close(p.tasks)
	p.wg.Wait()
	return nil
}

func (p *Pool) run() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.execute(t)
		p.inflight.Done()
	}
}

func (p *Pool) execute(t Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("background task panicked", "task", t.Name, "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()
	if err := t.Run(ctx); err != nil {
		p.log.Errorw("background task failed", "task", t.Name, "error", err)
	}
}

package orchestrator

import "sync"

// Pool is a bounded worker pool for per-tool computations. It is the only
// shared mutable resource in an evaluation and is safe by construction: a
// task queue drained by a fixed set of workers.
type Pool struct {
	tasks     chan func()
	size      int
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool starts a pool with the given number of workers.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 4
	}

	p := &Pool{
		tasks: make(chan func()),
		size:  size,
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit blocks until a worker picks up the task.
func (p *Pool) Submit(task func()) {
	p.tasks <- task
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Close stops accepting tasks and waits for in-flight ones to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}

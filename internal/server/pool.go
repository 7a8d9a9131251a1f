package server

import "context"

// workerPool bounds the number of concurrently served connections. The
// saturation policy decides what happens when all slots are taken: "reject"
// turns the connection away immediately, "queue" parks the connection until
// a slot frees, up to queueSize parked connections at a time.
type workerPool struct {
	slots   chan struct{}
	waiting chan struct{}
	queue   bool
}

func newWorkerPool(size, queueSize int, policy string) *workerPool {
	if queueSize < 1 {
		queueSize = 1
	}
	return &workerPool{
		slots:   make(chan struct{}, size),
		waiting: make(chan struct{}, queueSize),
		queue:   policy == "queue",
	}
}

// Acquire claims a slot. It returns false when the pool is saturated under
// the reject policy, when the wait queue is full, or when ctx ends while
// queued.
func (p *workerPool) Acquire(ctx context.Context) bool {
	if p.queue {
		select {
		case p.waiting <- struct{}{}:
		default:
			return false
		}
		defer func() { <-p.waiting }()
		select {
		case p.slots <- struct{}{}:
			return true
		case <-ctx.Done():
			return false
		}
	}
	select {
	case p.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot claimed by Acquire.
func (p *workerPool) Release() {
	<-p.slots
}

// InUse returns the number of claimed slots.
func (p *workerPool) InUse() int {
	return len(p.slots)
}

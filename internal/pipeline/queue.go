package pipeline

import "sync"

// queue is an unbounded FIFO feeding a channel. push never blocks. The
// goroutine forwarding items to out starts with the first call to channel,
// so a queue nobody subscribes to holds no goroutine. out is closed once the
// queue is closed and drained.
type queue[T any] struct {
	mu      sync.Mutex
	items   []T
	closed  bool
	notify  chan struct{}
	out     chan T
	started sync.Once
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{
		notify: make(chan struct{}, 1),
		out:    make(chan T),
	}
}

// channel subscribes to the queue. Items pushed before the first call are
// delivered too.
func (q *queue[T]) channel() <-chan T {
	q.started.Do(func() {
		go q.forward()
	})
	return q.out
}

func (q *queue[T]) push(v T) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.wake()
}

func (q *queue[T]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *queue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue[T]) forward() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.notify
			continue
		}
		v := q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.mu.Unlock()

		q.out <- v
	}
}

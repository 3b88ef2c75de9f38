package buffered

type BufferedPipe[T any] struct {
	ch chan T
}

func New[T any](bufferSize uint64) *BufferedPipe[T] {
	// Enforce minimum capacity of 1 to ensure proper bounded buffer semantics.
	// A zero-capacity Go channel is an unbuffered synchronization primitive,
	// not a zero-capacity buffer, which would cause unexpected behavior.
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &BufferedPipe[T]{
		ch: make(chan T, bufferSize),
	}
}

func (q *BufferedPipe[T]) Send(val T, abort <-chan struct{}) bool {
	select {
	case q.ch <- val:
		return true
	default:
	}
	select {
	case q.ch <- val:
		return true
	case <-abort:
		return false
	}
}

func (q *BufferedPipe[T]) Close() {
	close(q.ch)
}

func (q *BufferedPipe[T]) Recv() <-chan T {
	return q.ch
}

func (q *BufferedPipe[T]) FreeSlots() uint64 {
	return uint64(cap(q.ch) - len(q.ch))
}

func (q *BufferedPipe[T]) UsedSlots() uint64 {
	return uint64(len(q.ch))
}

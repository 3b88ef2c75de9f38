package queue

// Pipe is the bounded channel contract the driver needs: one sending half
// owned by the producer and one receiving half owned by the consumer.
type Pipe[T any] interface {
	// Send blocks while the pipe is full. It returns false without sending
	// if abort is closed first.
	Send(val T, abort <-chan struct{}) bool

	// Close ends the stream. Receivers drain what is buffered and then see
	// the channel closed. Close must be called once, by the sender.
	Close()

	// Recv is the receiving half, usable in select.
	Recv() <-chan T

	// FreeSlots returns how many more elements can be sent before Send blocks.
	FreeSlots() uint64

	// UsedSlots returns how many elements are currently buffered.
	UsedSlots() uint64
}

package websocket

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/eapache/queue"
)

var (
	errQueueClosed = errors.New("websocket: queue closed")
	errSessionDone = errors.New("websocket: session done")
)

// messageQueue is an unbounded FIFO of messages with a single wake-up
// signal. Pushing never blocks.
type messageQueue struct {
	mu     sync.Mutex
	items  *queue.Queue
	ready  chan struct{}
	closed bool
}

func newMessageQueue() *messageQueue {
	return &messageQueue{
		items: queue.New(),
		ready: make(chan struct{}, 1),
	}
}

func (q *messageQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *messageQueue) push(m Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	q.items.Add(m)
	q.signal()
	return nil
}

// close marks the queue closed. Queued messages can still be popped.
func (q *messageQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.signal()
}

func (q *messageQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *messageQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// pop returns the oldest message, waiting until one is available. It
// returns errQueueClosed once the queue is closed and drained, and
// errSessionDone when done is closed first.
func (q *messageQueue) pop(ctx context.Context, done <-chan struct{}) (Message, error) {
	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			m := q.items.Remove().(Message)
			if q.items.Length() > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return m, nil
		}
		if q.closed {
			// Wake any other waiter so it observes the close too.
			q.signal()
			q.mu.Unlock()
			return Message{}, errQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-done:
			return Message{}, errSessionDone
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Inbox delivers messages received from the peer, in wire order.
type Inbox struct {
	q *messageQueue
}

// Receive returns the next message from the peer. It blocks until a message
// arrives, ctx is done, or the session ends. After the session has ended and
// all queued messages were received, Receive returns io.EOF.
func (in *Inbox) Receive(ctx context.Context) (Message, error) {
	m, err := in.q.pop(ctx, nil)
	if errors.Is(err, errQueueClosed) {
		return Message{}, io.EOF
	}
	return m, err
}

// Len returns the number of messages waiting to be received.
func (in *Inbox) Len() int {
	return in.q.len()
}

// Outbox queues messages for the peer. Messages are written in the order
// they were sent.
type Outbox struct {
	q *messageQueue
}

// Send queues m for delivery without blocking. Only text and binary
// messages are accepted. It returns ErrClosed after Close or after the
// session has ended.
func (out *Outbox) Send(m Message) error {
	if m.Type != TextMessage && m.Type != BinaryMessage {
		return ErrInvalidMessageType
	}
	return out.q.push(m)
}

// Close signals that no further messages will be sent. Queued messages are
// still written, then the server starts the closing handshake. Close is
// safe to call more than once.
func (out *Outbox) Close() error {
	out.q.close()
	return nil
}

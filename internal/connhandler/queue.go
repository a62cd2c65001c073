package connhandler

import "github.com/a-khushal/rustboard/internal/wsproto"

// directQueue is a point-to-point outbound queue that never blocks its
// producer. It is fed only by the handler's own receive task, so it is
// self-throttling in practice even though it is logically unbounded.
type directQueue struct {
	in  chan wsproto.ServerMessage
	out chan wsproto.ServerMessage
}

func newDirectQueue() *directQueue {
	q := &directQueue{in: make(chan wsproto.ServerMessage, 1), out: make(chan wsproto.ServerMessage)}
	go q.pump()
	return q
}

func (q *directQueue) pump() {
	var buf []wsproto.ServerMessage
	for {
		if len(buf) == 0 {
			msg, ok := <-q.in
			if !ok {
				close(q.out)
				return
			}
			buf = append(buf, msg)
			continue
		}
		select {
		case msg, ok := <-q.in:
			if !ok {
				for _, m := range buf {
					q.out <- m
				}
				close(q.out)
				return
			}
			buf = append(buf, msg)
		case q.out <- buf[0]:
			buf = buf[1:]
		}
	}
}

// Send enqueues msg for delivery; it does not block on the consumer.
func (q *directQueue) Send(msg wsproto.ServerMessage) { q.in <- msg }

// Close signals no further sends; the pump drains any buffered messages to
// out before closing it.
func (q *directQueue) Close() { close(q.in) }

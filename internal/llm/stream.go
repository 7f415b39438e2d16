package llm

import (
	"context"
	"io"
	"sync"
)

// eventStream adapts a producer goroutine writing to a channel into the
// pull-based Stream interface. The producer function runs in its own
// goroutine; its return value (nil or error) terminates the stream.
type eventStream struct {
	events <-chan Event
	errc   <-chan error
	cancel context.CancelFunc

	mu     sync.Mutex
	err    error
	closed bool
}

// newEventStream starts fn in a goroutine and returns a Stream over the
// events it emits. When fn returns nil the stream ends with io.EOF; when
// fn returns an error, Recv surfaces it after the buffered events drain.
func newEventStream(ctx context.Context, fn func(ctx context.Context, events chan<- Event) error) Stream {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan Event, 16)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		errc <- fn(ctx, events)
	}()

	return &eventStream{
		events: events,
		errc:   errc,
		cancel: cancel,
	}
}

func (s *eventStream) Recv() (Event, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Event{}, io.EOF
	}
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return Event{}, err
	}
	s.mu.Unlock()

	event, ok := <-s.events
	if ok {
		return event, nil
	}

	// Producer finished; its return value decides EOF vs error.
	err := <-s.errc
	s.mu.Lock()
	if err != nil {
		s.err = err
	} else {
		s.err = io.EOF
	}
	err = s.err
	s.mu.Unlock()
	return Event{}, err
}

func (s *eventStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	// Drain so the producer goroutine is not left blocked on send.
	go func() {
		for range s.events {
		}
	}()
	return nil
}

package sequent

import (
	"context"
	"sync"

	"github.com/xraph/sequent/event"
)

// schedulerState is the lifecycle of a per-key serial queue.
type schedulerState int

const (
	// stateIdle: no drain task is scheduled; the next append schedules one.
	stateIdle schedulerState = iota
	// stateDraining: a drain task is scheduled or running on the executor.
	stateDraining
	// stateTerminated: the queue drained to empty and deregistered.
	// Terminal; appends against a terminated scheduler are refused.
	stateTerminated
)

// queuedEvent pairs an event with the context of the Submit call that
// produced it. The context is propagated into the handler invocation.
type queuedEvent struct {
	ctx context.Context
	evt event.Event
}

// scheduler owns the ordered queue of events for one sequence key and the
// single-flight guarantee that at most one drain task consumes that queue
// at any instant. It self-terminates when the queue empties and notifies
// its owner through the shutdown callback.
//
// append and the empty→terminated transition in drain are serialized by mu,
// so for every append/terminate race exactly one of two outcomes occurs:
// the append is accepted and the queue stays alive, or the append is
// refused and the caller re-registers a fresh queue. No event is dropped
// and no event is handled twice.
type scheduler struct {
	key        any
	executor   Executor
	invoke     func(ctx context.Context, e event.Event)
	onShutdown func(*scheduler)

	mu    sync.Mutex
	state schedulerState
	queue []queuedEvent
}

// newScheduler creates a scheduler pre-seeded with its first event. The
// queue starts in stateDraining: the creator must follow up with start to
// submit the initial drain task.
func newScheduler(
	key any,
	first queuedEvent,
	executor Executor,
	invoke func(ctx context.Context, e event.Event),
	onShutdown func(*scheduler),
) *scheduler {
	return &scheduler{
		key:        key,
		executor:   executor,
		invoke:     invoke,
		onShutdown: onShutdown,
		state:      stateDraining,
		queue:      []queuedEvent{first},
	}
}

// start submits the initial drain task to the executor. On failure the
// scheduler is dead: the caller must deregister it and dispose of the
// events abort returns.
func (s *scheduler) start() error {
	return s.executor.Submit(s.drain)
}

// append adds an event to the tail of the queue and ensures a drain task
// is scheduled. It returns false if the scheduler has already terminated,
// in which case the event was not accepted and the caller must retry
// against a fresh scheduler. A non-nil error means the executor refused
// the drain task; the event has been rolled back and will not be handled.
func (s *scheduler) append(item queuedEvent) (bool, error) {
	s.mu.Lock()
	if s.state == stateTerminated {
		s.mu.Unlock()
		return false, nil
	}
	s.queue = append(s.queue, item)
	schedule := s.state == stateIdle
	if schedule {
		s.state = stateDraining
	}
	s.mu.Unlock()

	if schedule {
		if err := s.executor.Submit(s.drain); err != nil {
			s.rollback(item)
			return false, err
		}
	}
	return true, nil
}

// rollback undoes an append whose drain submission was refused: the event
// is removed and the scheduler returns to idle so a later append can
// schedule again. If the queue is left empty the scheduler terminates
// instead, keeping the registry free of dead entries.
func (s *scheduler) rollback(item queuedEvent) {
	s.mu.Lock()
	id := item.evt.EventID().String()
	for i := range s.queue {
		if s.queue[i].evt.EventID().String() == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	if len(s.queue) == 0 {
		s.state = stateTerminated
		s.mu.Unlock()
		s.onShutdown(s)
		return
	}
	s.state = stateIdle
	s.mu.Unlock()
}

// abort terminates the scheduler and returns whatever was queued. Used when
// the initial drain submission fails; returned events were accepted by
// append but will never be handled, so the caller must report them.
func (s *scheduler) abort() []queuedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateTerminated
	pending := s.queue
	s.queue = nil
	return pending
}

// drain is the single-flight task that consumes the queue on the executor.
// It pops and handles events in order until it observes the queue empty,
// then transitions to terminated and fires the shutdown callback. The
// transition happens under mu, so a concurrent append either lands before
// it (the event is drained here) or observes stateTerminated and is refused.
func (s *scheduler) drain() {
	for {
		s.mu.Lock()
		if s.state == stateTerminated {
			// aborted while the drain task sat in the executor queue
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			s.state = stateTerminated
			s.mu.Unlock()
			s.onShutdown(s)
			return
		}
		item := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.invoke(item.ctx, item.evt)
	}
}

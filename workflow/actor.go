// Package workflow hosts the per-session actor that serializes commands
// against one workflow aggregate, and the phase controller that drives
// the planning/review/revision/implementation loop from the resulting
// view.
package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/metjm/planning-agent/domain"
	"github.com/metjm/planning-agent/eventstore"
)

// EventEnvelope pairs a committed event with the sequence number the
// store assigned it, for subscribers that want the raw event stream
// rather than just the folded view.
type EventEnvelope struct {
	AggregateId string
	Sequence    uint64
	Event       domain.WorkflowEvent
}

const broadcastBufferSize = 64

type commandMsg struct {
	cmd   domain.Command
	reply chan<- commandResult
}

type commandResult struct {
	view domain.WorkflowView
	err  error
}

type getViewMsg struct {
	reply chan<- domain.WorkflowView
}

// Actor is a single-writer mailbox around one workflow aggregate. All
// commands against an aggregate_id pass through Actor.SubmitCommand,
// which serializes them onto one goroutine - the aggregate itself never
// needs its own locking.
type Actor struct {
	aggregateID     string
	store           *eventstore.FileEventStore
	aggregate       *domain.WorkflowAggregate
	currentSequence uint64

	mailbox chan any

	viewMu sync.RWMutex
	view   domain.WorkflowView

	subMu       sync.Mutex
	watchers    []chan domain.WorkflowView
	subscribers []chan EventEnvelope
}

// NewActor rehydrates the aggregate for aggregateID from store (snapshot
// plus trailing events) and returns an actor ready to be run.
func NewActor(aggregateID string, store *eventstore.FileEventStore) (*Actor, error) {
	loaded, err := store.LoadAggregate(aggregateID)
	if err != nil {
		return nil, err
	}
	a := &Actor{
		aggregateID:     aggregateID,
		store:           store,
		aggregate:       loaded.Aggregate,
		currentSequence: loaded.CurrentSequence,
		mailbox:         make(chan any, 32),
	}
	a.view = domain.NewView(domain.WorkflowId(aggregateID), a.aggregate)
	return a, nil
}

// Run drains the mailbox until ctx is cancelled. Call it in its own
// goroutine once per actor.
func (a *Actor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.mailbox:
			a.handle(msg)
		}
	}
}

// SubmitCommand enqueues cmd for the actor's goroutine and blocks for the
// resulting view (or error). Safe to call concurrently from many callers.
func (a *Actor) SubmitCommand(ctx context.Context, cmd domain.Command) (domain.WorkflowView, error) {
	reply := make(chan commandResult, 1)
	select {
	case a.mailbox <- commandMsg{cmd: cmd, reply: reply}:
	case <-ctx.Done():
		return domain.WorkflowView{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.view, res.err
	case <-ctx.Done():
		return domain.WorkflowView{}, ctx.Err()
	}
}

// GetView returns the actor's current view without going through command
// validation.
func (a *Actor) GetView(ctx context.Context) (domain.WorkflowView, error) {
	reply := make(chan domain.WorkflowView, 1)
	select {
	case a.mailbox <- getViewMsg{reply: reply}:
	case <-ctx.Done():
		return domain.WorkflowView{}, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return domain.WorkflowView{}, ctx.Err()
	}
}

// WatchView returns a latest-value-wins channel of view snapshots: a slow
// reader never blocks the actor, it just misses intermediate updates and
// always sees the most recent one on its next receive.
func (a *Actor) WatchView() <-chan domain.WorkflowView {
	ch := make(chan domain.WorkflowView, 1)
	a.subMu.Lock()
	a.watchers = append(a.watchers, ch)
	a.subMu.Unlock()
	ch <- a.currentView()
	return ch
}

// SubscribeEvents returns a bounded channel of committed event
// envelopes. A subscriber that falls behind by more than
// broadcastBufferSize entries silently drops the oldest backlog rather
// than blocking the actor - mirroring tokio::sync::broadcast semantics.
func (a *Actor) SubscribeEvents() <-chan EventEnvelope {
	ch := make(chan EventEnvelope, broadcastBufferSize)
	a.subMu.Lock()
	a.subscribers = append(a.subscribers, ch)
	a.subMu.Unlock()
	return ch
}

func (a *Actor) currentView() domain.WorkflowView {
	a.viewMu.RLock()
	defer a.viewMu.RUnlock()
	return a.view
}

func (a *Actor) handle(msg any) {
	switch m := msg.(type) {
	case commandMsg:
		view, err := a.handleCommand(m.cmd)
		m.reply <- commandResult{view: view, err: err}
	case getViewMsg:
		m.reply <- a.currentView()
	}
}

func (a *Actor) handleCommand(cmd domain.Command) (domain.WorkflowView, error) {
	events, err := a.aggregate.Handle(cmd)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPhase) || errors.Is(err, domain.ErrAlreadyInitialized) {
			return a.currentView(), err
		}
		return a.currentView(), domain.NewStorageError("handle command", err)
	}
	if len(events) == 0 {
		return a.currentView(), nil
	}

	stored, err := a.store.Commit(a.aggregateID, events, a.aggregate, a.currentSequence, nil)
	if err != nil {
		return a.currentView(), err
	}
	a.currentSequence += uint64(len(stored))

	view := domain.NewView(domain.WorkflowId(a.aggregateID), a.aggregate)
	a.viewMu.Lock()
	a.view = view
	a.viewMu.Unlock()

	a.publish(stored, view)
	return view, nil
}

func (a *Actor) publish(stored []eventstore.StoredEvent, view domain.WorkflowView) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	for _, w := range a.watchers {
		select {
		case w <- view:
		default:
			select {
			case <-w:
			default:
			}
			w <- view
		}
	}

	for _, record := range stored {
		envelope := EventEnvelope{AggregateId: a.aggregateID, Sequence: record.Sequence, Event: record.Event}
		for _, sub := range a.subscribers {
			select {
			case sub <- envelope:
			default:
				select {
				case <-sub:
				default:
				}
				select {
				case sub <- envelope:
				default:
				}
			}
		}
	}
}

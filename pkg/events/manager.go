package events

import (
	"log/slog"
	"sync"

	"github.com/hausbrain/core/pkg/model"
)

// topic is one event kind's set of subscribers, keyed by an incrementing
// subscriber id mapped to a buffered Go channel — subscribers are other
// in-process goroutines (cmd/homecore's planning loop, tests) rather than remote
// clients.
type topic[T any] struct {
	mu   sync.RWMutex
	subs map[int]chan T
	next int
}

func newTopic[T any]() *topic[T] {
	return &topic[T]{subs: make(map[int]chan T)}
}

// subscribe returns a channel of buffered capacity bufferSize and an
// unsubscribe func. The channel is never closed by publish; callers rely on
// unsubscribe (or context cancellation) to stop receiving.
func (t *topic[T]) subscribe() (<-chan T, func()) {
	t.mu.Lock()
	id := t.next
	t.next++
	ch := make(chan T, bufferSize)
	t.subs[id] = ch
	t.mu.Unlock()

	return ch, func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// publish fans out to every subscriber, dropping on a full buffer rather
// than blocking a slow subscriber.
func (t *topic[T]) publish(v T) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for id, ch := range t.subs {
		select {
		case ch <- v:
		default:
			slog.Warn("events: subscriber buffer full, dropping event", "subscriber", id)
		}
	}
}

// Manager is the process-local broadcaster for the five event kinds. One
// Manager instance per process, shared by the publisher, the dispatcher,
// and any API handler that streams events to a client.
type Manager struct {
	stateChanged     *topic[StateChanged]
	userTriggerAdded *topic[UserTriggerAdded]
	commandAdded     *topic[CommandAdded]
	commandStarted   *topic[CommandStarted]
	commandFinished  *topic[CommandFinished]
}

func NewManager() *Manager {
	return &Manager{
		stateChanged:     newTopic[StateChanged](),
		userTriggerAdded: newTopic[UserTriggerAdded](),
		commandAdded:     newTopic[CommandAdded](),
		commandStarted:   newTopic[CommandStarted](),
		commandFinished:  newTopic[CommandFinished](),
	}
}

func (m *Manager) SubscribeStateChanged() (<-chan StateChanged, func())         { return m.stateChanged.subscribe() }
func (m *Manager) SubscribeUserTriggerAdded() (<-chan UserTriggerAdded, func()) { return m.userTriggerAdded.subscribe() }
func (m *Manager) SubscribeCommandAdded() (<-chan CommandAdded, func())        { return m.commandAdded.subscribe() }
func (m *Manager) SubscribeCommandStarted() (<-chan CommandStarted, func())    { return m.commandStarted.subscribe() }
func (m *Manager) SubscribeCommandFinished() (<-chan CommandFinished, func())  { return m.commandFinished.subscribe() }

func (m *Manager) PublishStateChanged(e StateChanged) { m.stateChanged.publish(e) }

func (m *Manager) PublishUserTrigger(e UserTriggerAdded) { m.userTriggerAdded.publish(e) }

// PublishCommandAdded implements pipeline's commandAddedPublisher.
func (m *Manager) PublishCommandAdded(exec model.CommandExecution) {
	m.commandAdded.publish(CommandAdded{Execution: exec})
}

// PublishCommandStarted implements pipeline's eventPublisher.
func (m *Manager) PublishCommandStarted(exec model.CommandExecution) {
	m.commandStarted.publish(CommandStarted{Execution: exec})
}

// PublishCommandFinished implements pipeline's eventPublisher.
func (m *Manager) PublishCommandFinished(exec model.CommandExecution, state model.ExecutionState, errMsg string) {
	m.commandFinished.publish(CommandFinished{Execution: exec, State: state, ErrorMessage: errMsg})
}


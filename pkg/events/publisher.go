package events

import (
	"sync"
	"time"

	"github.com/hausbrain/core/pkg/model"
)

// DefaultDebounce is the coalescing window applied to a burst of samples
// landing for the same channel in quick succession. An ingest batch can
// write several tags within the same handler tick; without batching that
// would mean one state-changed signal per sample, which in turn means one
// extra planner run per sample.
const DefaultDebounce = 20 * time.Millisecond

// pendingChange tracks the most recent unflushed sample for one channel.
type pendingChange struct {
	latest model.DataPoint
	timer  *time.Timer
}

// Publisher sits in front of Manager and debounces state-changed signals:
// a burst of NotifyStateChanged calls for the same channel within the
// debounce window collapses into a single PublishStateChanged carrying
// only the latest value, per the "batch a burst of state insertions into
// one signal" requirement. User-trigger events are forwarded to the Manager
// untouched (NotifyUserTriggerAdded); command events do not pass through
// Publisher at all.
type Publisher struct {
	mgr      *Manager
	debounce time.Duration

	mu      sync.Mutex
	pending map[model.Channel]*pendingChange
	closed  bool
}

func NewPublisher(mgr *Manager, debounce time.Duration) *Publisher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Publisher{
		mgr:      mgr,
		debounce: debounce,
		pending:  make(map[model.Channel]*pendingChange),
	}
}

// NotifyStateChanged records a new sample for ch and (re)arms its debounce
// timer. Called by the ingest path immediately after a successful
// timestore append, whether or not the append was deduped away.
func (p *Publisher) NotifyStateChanged(ch model.Channel, dp model.DataPoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	pc, ok := p.pending[ch]
	if !ok {
		pc = &pendingChange{}
		p.pending[ch] = pc
	}
	pc.latest = dp
	if pc.timer != nil {
		pc.timer.Stop()
	}
	pc.timer = time.AfterFunc(p.debounce, func() { p.flush(ch) })
}

func (p *Publisher) flush(ch model.Channel) {
	p.mu.Lock()
	pc, ok := p.pending[ch]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.pending, ch)
	p.mu.Unlock()

	p.mgr.PublishStateChanged(StateChanged{
		Channel:   ch,
		Latest:    pc.latest,
		Timestamp: time.Now(),
	})
}

// NotifyUserTriggerAdded forwards straight to the Manager; triggers are
// inserted one at a time by request handlers, never in a batch.
func (p *Publisher) NotifyUserTriggerAdded(rec model.TriggerRecord) {
	p.mgr.PublishUserTrigger(UserTriggerAdded{Trigger: rec})
}

// Close flushes nothing (pending debounces are allowed to lapse) and stops
// every armed timer, so a shutting-down process doesn't leak goroutines or
// fire into a torn-down Manager.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for ch, pc := range p.pending {
		pc.timer.Stop()
		delete(p.pending, ch)
	}
}

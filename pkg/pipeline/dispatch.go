package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hausbrain/core/pkg/model"
)

// ErrNoCommandAvailable is returned by pollAndDispatch when the queue is
// empty, letting Dispatcher distinguish "nothing to do" from a real
// failure.
var ErrNoCommandAvailable = errors.New("pipeline: no command available")

// claimStore is the subset of commandlog.Store the dispatcher drives.
type claimStore interface {
	ClaimOne(ctx context.Context) (model.CommandExecution, bool, error)
	SetState(ctx context.Context, id int64, state model.ExecutionState, errMsg string) error
}

// eventPublisher is the narrow slice of the event bus the dispatcher needs,
// satisfied by *events.Manager once wired at the top level.
type eventPublisher interface {
	PublishCommandStarted(exec model.CommandExecution)
	PublishCommandFinished(exec model.CommandExecution, state model.ExecutionState, errMsg string)
}

// Dispatcher is the background half of the command pipeline: an
// independent poll loop that claims Pending rows and hands them to
// registered outbound adapters in order, generalized from one executor to
// an ordered list of outbound adapters tried in turn.
type Dispatcher struct {
	cl        claimStore
	adapters  []Outbound
	publisher eventPublisher

	pollInterval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Outbound matches adapter.Outbound's shape; declared locally so this
// package does not need to import pkg/adapter just for one method set.
type Outbound interface {
	Execute(ctx context.Context, cmd model.Command) (handled bool, err error)
}

func NewDispatcher(cl claimStore, adapters []Outbound, publisher eventPublisher, pollInterval time.Duration) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Dispatcher{cl: cl, adapters: adapters, publisher: publisher, pollInterval: pollInterval, stopCh: make(chan struct{})}
}

// Start begins the poll loop in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.run(ctx)
}

// Stop signals the loop to exit and waits for it to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	log := slog.With("component", "pipeline.dispatcher")
	log.Info("dispatcher started")

	for {
		select {
		case <-d.stopCh:
			log.Info("dispatcher shutting down")
			return
		case <-ctx.Done():
			return
		default:
			if err := d.pollAndDispatch(ctx); err != nil {
				if errors.Is(err, ErrNoCommandAvailable) {
					d.sleep(d.jitteredInterval())
					continue
				}
				log.Error("dispatch error", "error", err)
				d.sleep(time.Second)
			}
		}
	}
}

func (d *Dispatcher) sleep(dur time.Duration) {
	select {
	case <-d.stopCh:
	case <-time.After(dur):
	}
}

func (d *Dispatcher) jitteredInterval() time.Duration {
	jitter := d.pollInterval / 4
	if jitter <= 0 {
		return d.pollInterval
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return d.pollInterval - jitter + offset
}

// pollAndDispatch claims one Pending command and runs it through the
// registered adapters in order.
func (d *Dispatcher) pollAndDispatch(ctx context.Context) error {
	exec, claimed, err := d.cl.ClaimOne(ctx)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrNoCommandAvailable
	}

	log := slog.With("command_id", exec.ID, "target", exec.Command.Target)
	log.Info("command claimed")
	if d.publisher != nil {
		d.publisher.PublishCommandStarted(exec)
	}

	var handledBy int
	var handled bool
	var execErr error
	for i, a := range d.adapters {
		ok, err := a.Execute(ctx, exec.Command)
		if err != nil {
			execErr = err
			break
		}
		if ok {
			handled = true
			handledBy = i
			break
		}
	}

	switch {
	case execErr != nil:
		if setErr := d.cl.SetState(ctx, exec.ID, model.StateError, execErr.Error()); setErr != nil {
			log.Error("failed to record dispatch error", "error", setErr)
		}
		if d.publisher != nil {
			d.publisher.PublishCommandFinished(exec, model.StateError, execErr.Error())
		}
		return nil
	case handled:
		if setErr := d.cl.SetState(ctx, exec.ID, model.StateSuccess, ""); setErr != nil {
			log.Error("failed to record dispatch success", "error", setErr)
			return setErr
		}
		if d.publisher != nil {
			d.publisher.PublishCommandFinished(exec, model.StateSuccess, "")
		}
		log.Info("command dispatched", "adapter_index", handledBy)
		return nil
	default:
		const msg = "unhandled"
		log.Warn("no adapter handled command")
		if setErr := d.cl.SetState(ctx, exec.ID, model.StateError, msg); setErr != nil {
			log.Error("failed to record unhandled command", "error", setErr)
		}
		if d.publisher != nil {
			d.publisher.PublishCommandFinished(exec, model.StateError, msg)
		}
		return nil
	}
}

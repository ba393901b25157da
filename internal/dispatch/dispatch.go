// Package dispatch implements the Command Dispatcher of spec §4.5: the
// single-threaded logical owner of the Session and State Machine. The
// run loop is the same select-over-channels shape as the upstream
// party-game Hub.run() — one goroutine pops requests off a channel and
// owns every piece of mutable state it touches, so nothing downstream
// needs its own mutex.
package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/neonbeat/back/internal/buzzer"
	"github.com/neonbeat/back/internal/fsm"
	"github.com/neonbeat/back/internal/hubs"
	"github.com/neonbeat/back/internal/persistence"
	"github.com/neonbeat/back/internal/session"
	"github.com/neonbeat/back/internal/store"
)

// command is one unit of work the run loop executes with exclusive
// access to the Dispatcher's fields.
type command struct {
	run   func(d *Dispatcher) (any, error)
	reply chan result
}

type result struct {
	value any
	err   error
}

// Dispatcher owns the Session, the State Machine, the two Hubs, and
// the Buzzer Registry. All mutation is funneled through cmds; Run must
// be started exactly once, typically from cmd/neonbeat/main.go.
type Dispatcher struct {
	log zerolog.Logger

	st      store.Store
	persist *persistence.Coordinator

	sess *session.Session
	fsm  *fsm.StateMachine

	public *hubs.Hub
	admin  *hubs.Hub
	reg    *buzzer.Registry

	cmds chan command
}

// New builds a Dispatcher. The buzzer.Registry is wired up separately
// by the caller once it has a Dispatcher to hand it, since Registry
// needs a Dispatcher (via the buzzer.Dispatcher interface) and
// Dispatcher needs a Registry to send outbound patterns — see
// SetRegistry.
func New(st store.Store, persist *persistence.Coordinator, public, admin *hubs.Hub, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		log:     log,
		st:      st,
		persist: persist,
		sess:    session.New(),
		fsm:     fsm.New(),
		public:  public,
		admin:   admin,
		cmds:    make(chan command, 64),
	}
}

// SetRegistry completes the Dispatcher<->Registry wiring. Must be
// called before Run.
func (d *Dispatcher) SetRegistry(reg *buzzer.Registry) {
	d.reg = reg
}

// Run executes the command queue until ctx is cancelled. It must run
// on its own goroutine; every exported method funnels through it.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-d.cmds:
			v, err := cmd.run(d)
			cmd.reply <- result{value: v, err: err}
		}
	}
}

// submit enqueues fn and blocks for its result, respecting ctx
// cancellation on both the enqueue and the reply wait.
func submit[T any](ctx context.Context, d *Dispatcher, fn func(d *Dispatcher) (T, error)) (T, error) {
	var zero T
	reply := make(chan result, 1)
	cmd := command{
		run: func(d *Dispatcher) (any, error) {
			v, err := fn(d)
			return v, err
		},
		reply: reply,
	}

	select {
	case d.cmds <- cmd:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-reply:
		if r.err != nil {
			return zero, r.err
		}
		v, _ := r.value.(T)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// HandleBuzz satisfies buzzer.Dispatcher. It is fire-and-forget: the
// device gets its response pattern, if any, via the Registry from
// inside the command handler, not via a return value.
func (d *Dispatcher) HandleBuzz(buzzerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	go func() {
		defer cancel()
		_, _ = submit(ctx, d, func(d *Dispatcher) (struct{}, error) {
			d.handleBuzzerSignal(buzzerID)
			return struct{}{}, nil
		})
	}()
}

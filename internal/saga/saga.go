// Package saga keeps the platform, metadata and object stores consistent
// without a distributed transaction. Every multi-store operation is an ordered
// list of steps, each with an optional compensation; when a step fails, or
// the context is cancelled, the compensations of the completed steps run in
// reverse order and the triggering error is returned.
package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/archivia/internal/common"
)

// Step is one forward action and the action that undoes it. Undo may be nil
// when the step leaves nothing behind to clean up.
type Step struct {
	Name string
	Do   func(ctx context.Context) error
	Undo func(ctx context.Context) error
}

// Error is returned by Run when a step fails. It unwraps to the error of the
// failed step; compensation failures are attached but never unwrapped.
type Error struct {
	Saga         string
	Step         string
	Err          error
	Compensation []error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("saga %s: step %s: %v", e.Saga, e.Step, e.Err)
	if n := len(e.Compensation); n > 0 {
		msg += fmt.Sprintf(" (%d compensation failures)", n)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Run results used as metric labels.
const (
	ResultOK                 = "ok"
	ResultCompensated        = "compensated"
	ResultCompensationFailed = "compensation_failed"
)

// Run executes steps in order. On failure it compensates and returns *Error.
func (c *Coordinator) Run(ctx context.Context, name string, steps []Step) error {
	start := c.now()
	log := c.log.With("saga", name)

	done := make([]Step, 0, len(steps))
	for _, step := range steps {
		err := ctx.Err()
		if err == nil {
			log.Debug(ctx, "step started", "step", step.Name)
			err = step.Do(ctx)
		}
		if err != nil {
			if common.IsClientError(err) {
				log.Warn(ctx, "step rejected", "step", step.Name, "error", err)
			} else {
				log.Error(ctx, "step failed", "step", step.Name, "error", err)
			}
			sagaErr := &Error{Saga: name, Step: step.Name, Err: err}
			sagaErr.Compensation = c.compensate(ctx, name, done)

			result := ResultCompensated
			if len(sagaErr.Compensation) > 0 {
				result = ResultCompensationFailed
			}
			c.metrics.ObserveRun(name, result, c.now().Sub(start).Seconds())
			return sagaErr
		}
		done = append(done, step)
	}

	c.metrics.ObserveRun(name, ResultOK, c.now().Sub(start).Seconds())
	return nil
}

// compensate undoes done in reverse order. Compensations run on a context
// that is not cancelled with the request.
func (c *Coordinator) compensate(ctx context.Context, name string, done []Step) []error {
	undoCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.undoTimeout)
	defer cancel()

	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Undo == nil {
			continue
		}
		if err := step.Undo(undoCtx); err != nil {
			c.log.Error(ctx, "compensation failed", "saga", name, "step", step.Name, "error", err)
			c.metrics.IncCompensation(name, ResultCompensationFailed)
			errs = append(errs, fmt.Errorf("undo %s: %w", step.Name, err))
			continue
		}
		c.log.Info(ctx, "step compensated", "saga", name, "step", step.Name)
		c.metrics.IncCompensation(name, ResultOK)
	}
	return errs
}

const defaultUndoTimeout = 30 * time.Second

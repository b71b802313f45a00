// Package saga runs a short sequence of side-effecting steps, undoing the
// completed ones in reverse order when a later step fails.
package saga

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type Step struct {
	Name   string
	Action func(ctx context.Context) error
	// Compensate may be nil for steps that leave nothing to undo.
	Compensate func(ctx context.Context) error
}

// StepError names the step that failed. Compensation failures are logged,
// never returned, so Err is always the original cause.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func Run(ctx context.Context, log *zap.Logger, steps ...Step) error {
	for i, step := range steps {
		if err := step.Action(ctx); err != nil {
			compensate(ctx, log, steps[:i])
			return &StepError{Step: step.Name, Err: err}
		}
	}
	return nil
}

func compensate(ctx context.Context, log *zap.Logger, done []Step) {
	// The request may already be cancelled; cleanup must still reach the store.
	ctx = context.WithoutCancel(ctx)

	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			log.Error("compensation failed, manual cleanup required",
				zap.String("step", step.Name),
				zap.Error(err),
			)
		}
	}
}

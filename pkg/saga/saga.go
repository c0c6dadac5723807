// Package saga runs multi-step mutations with compensating actions.
package saga

import (
	"context"
	"errors"
	"fmt"

	"money-ledger/pkg/logging"
	"money-ledger/pkg/metrics"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrCompensationFailed is part of a StepError chain when at least one undo failed,
// meaning the ledger may be inconsistent and needs reconciliation.
var ErrCompensationFailed = errors.New("saga: compensation failed")

// Step is one forward action and its inverse.
type Step struct {
	Name string
	Do   func(ctx context.Context) error
	// Undo reverts Do. Nil means the step has nothing to revert.
	Undo func(ctx context.Context) error
}

// StepError reports the step that failed and the outcome of compensation.
type StepError struct {
	Saga            string
	Step            string
	Err             error
	CompensationErr error
}

func (e *StepError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("%s: step %s: %v (compensation failed: %v)", e.Saga, e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("%s: step %s: %v", e.Saga, e.Step, e.Err)
}

// Unwrap exposes the step error and, when compensation failed, ErrCompensationFailed.
func (e *StepError) Unwrap() []error {
	if e.CompensationErr != nil {
		return []error{e.Err, ErrCompensationFailed, e.CompensationErr}
	}
	return []error{e.Err}
}

// Saga is an ordered list of steps.
type Saga struct {
	name    string
	steps   []Step
	logger  *logging.Logger
	metrics metrics.MetricsCollector
}

// New creates an empty saga.
func New(name string, logger *logging.Logger, collector metrics.MetricsCollector) *Saga {
	if logger == nil {
		logger = logging.Global().Named("saga")
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Saga{name: name, logger: logger, metrics: collector}
}

// Add appends a step.
func (s *Saga) Add(name string, do, undo func(ctx context.Context) error) *Saga {
	s.steps = append(s.steps, Step{Name: name, Do: do, Undo: undo})
	return s
}

// Run executes steps in order. When step N fails, the undos of steps 1..N-1
// run in reverse order on a context that ignores the caller's cancellation,
// then a *StepError is returned.
func (s *Saga) Run(ctx context.Context) error {
	for i, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return s.fail(ctx, i, step.Name, err)
		}
		if err := step.Do(ctx); err != nil {
			return s.fail(ctx, i, step.Name, err)
		}
	}
	return nil
}

func (s *Saga) fail(ctx context.Context, failed int, stepName string, err error) error {
	stepErr := &StepError{Saga: s.name, Step: stepName, Err: err}
	if failed == 0 {
		return stepErr
	}

	s.logger.Warn("saga step failed, compensating",
		zap.String("saga", s.name),
		zap.String("step", stepName),
		zap.Int("completed_steps", failed),
		zap.Error(err),
	)

	undoCtx := context.WithoutCancel(ctx)
	var compErr error
	for i := failed - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Undo == nil {
			continue
		}
		if uerr := step.Undo(undoCtx); uerr != nil {
			compErr = multierr.Append(compErr, fmt.Errorf("undo %s: %w", step.Name, uerr))
		}
	}

	s.metrics.RecordCompensation(s.name, compErr == nil)
	if compErr != nil {
		stepErr.CompensationErr = compErr
		s.logger.Error("saga compensation failed, ledger needs reconciliation",
			zap.String("saga", s.name),
			zap.String("step", stepName),
			zap.Error(compErr),
		)
	}
	return stepErr
}

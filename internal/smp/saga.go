package smp

import (
	"context"
	"log/slog"
)

// SagaStep is one (action, compensation) pair in an ordered multi-system
// mutation. Compensate undoes the effect of a completed Action when a
// later step fails; it is nil for steps that need no undo.
type SagaStep struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga runs steps in order. When step N fails, the compensations of
// steps N-1..0 run in reverse order and the original error is returned.
// Compensation failures are logged and do not mask the original error;
// there is no retry at this layer.
type Saga struct {
	Name   string
	Steps  []SagaStep
	Logger *slog.Logger
}

// Run executes the saga.
func (s *Saga) Run(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for i, step := range s.Steps {
		if err := step.Action(ctx); err != nil {
			logger.Warn("saga step failed, compensating",
				"saga", s.Name,
				"step", step.Name,
				"error", err,
			)
			for j := i - 1; j >= 0; j-- {
				comp := s.Steps[j].Compensate
				if comp == nil {
					continue
				}
				if cerr := comp(ctx); cerr != nil {
					// The pair of systems is now inconsistent until an
					// operator intervenes; all we can do is record it.
					logger.Error("saga compensation failed",
						"saga", s.Name,
						"step", s.Steps[j].Name,
						"error", cerr,
					)
				}
			}
			return err
		}
	}
	return nil
}

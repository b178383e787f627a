package smp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSagaRunsAllStepsOnSuccess(t *testing.T) {
	var order []string
	step := func(name string) SagaStep {
		return SagaStep{
			Name:       name,
			Action:     func(ctx context.Context) error { order = append(order, name); return nil },
			Compensate: func(ctx context.Context) error { order = append(order, "undo-"+name); return nil },
		}
	}

	saga := &Saga{Name: "test", Steps: []SagaStep{step("a"), step("b"), step("c")}}
	require.NoError(t, saga.Run(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestSagaCompensatesInReverseOrder(t *testing.T) {
	var order []string
	boom := errors.New("boom")

	saga := &Saga{
		Name: "test",
		Steps: []SagaStep{
			{
				Name:       "a",
				Action:     func(ctx context.Context) error { order = append(order, "a"); return nil },
				Compensate: func(ctx context.Context) error { order = append(order, "undo-a"); return nil },
			},
			{
				Name:       "b",
				Action:     func(ctx context.Context) error { order = append(order, "b"); return nil },
				Compensate: func(ctx context.Context) error { order = append(order, "undo-b"); return nil },
			},
			{
				Name:   "c",
				Action: func(ctx context.Context) error { return boom },
			},
		},
	}

	err := saga.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b", "undo-b", "undo-a"}, order)
}

func TestSagaFirstStepFailureCompensatesNothing(t *testing.T) {
	var compensated bool
	boom := errors.New("boom")

	saga := &Saga{
		Name: "test",
		Steps: []SagaStep{
			{
				Name:       "a",
				Action:     func(ctx context.Context) error { return boom },
				Compensate: func(ctx context.Context) error { compensated = true; return nil },
			},
			{
				Name:   "b",
				Action: func(ctx context.Context) error { t.Fatal("step b must not run"); return nil },
			},
		},
	}

	err := saga.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, compensated, "the failed step itself must not be compensated")
}

func TestSagaCompensationFailureKeepsOriginalError(t *testing.T) {
	boom := errors.New("boom")

	saga := &Saga{
		Name: "test",
		Steps: []SagaStep{
			{
				Name:       "a",
				Action:     func(ctx context.Context) error { return nil },
				Compensate: func(ctx context.Context) error { return errors.New("undo failed") },
			},
			{
				Name:   "b",
				Action: func(ctx context.Context) error { return boom },
			},
		},
	}

	assert.ErrorIs(t, saga.Run(context.Background()), boom)
}

func TestSagaSkipsNilCompensations(t *testing.T) {
	boom := errors.New("boom")

	saga := &Saga{
		Name: "test",
		Steps: []SagaStep{
			{Name: "a", Action: func(ctx context.Context) error { return nil }},
			{Name: "b", Action: func(ctx context.Context) error { return boom }},
		},
	}

	assert.ErrorIs(t, saga.Run(context.Background()), boom)
}

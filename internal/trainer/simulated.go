package trainer

import (
	"context"
	"fmt"
	"time"
)

// Simulated stands in for real training: it only spends Steps x StepCost of
// wall time. It deliberately ignores ctx so a started job always finishes.
type Simulated struct {
	StepCost time.Duration
}

func NewSimulated(stepCost time.Duration) *Simulated {
	if stepCost < 0 {
		stepCost = 0
	}
	return &Simulated{StepCost: stepCost}
}

func (s *Simulated) Train(_ context.Context, job Job) error {
	if job.Steps < 0 {
		return fmt.Errorf("simulated trainer: negative step count %d", job.Steps)
	}
	d := time.Duration(job.Steps) * s.StepCost
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	<-t.C
	return nil
}

// SimulatedFactory returns a Factory handing out one shared Simulated trainer.
func SimulatedFactory(stepCost time.Duration) Factory {
	sim := NewSimulated(stepCost)
	return func(ctx context.Context, model string) (Trainer, error) {
		_ = ctx
		_ = model
		return sim, nil
	}
}

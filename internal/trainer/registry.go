package trainer

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Job is the part of a submitted module a trainer needs to run it.
type Job struct {
	ID           string
	Model        string
	Steps        int
	LearningRate float64
}

type Trainer interface {
	Train(ctx context.Context, job Job) error
}

type Factory func(ctx context.Context, model string) (Trainer, error)

// Registry routes a model variant to the factory that builds its trainer.
// Variants without a dedicated factory use the fallback, if one is set.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	fallback  Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(model string, f Factory) {
	model = strings.ToLower(strings.TrimSpace(model))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[model] = f
}

func (r *Registry) SetFallback(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = f
}

func (r *Registry) Get(ctx context.Context, model string) (Trainer, error) {
	key := strings.ToLower(strings.TrimSpace(model))
	r.mu.RLock()
	f, ok := r.factories[key]
	if !ok {
		f = r.fallback
	}
	r.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("no trainer for model: %s", model)
	}
	return f(ctx, model)
}

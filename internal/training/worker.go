package training

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/suPer8Hu/ai-training/internal/trainer"
	"gorm.io/gorm"
)

const defaultPollInterval = 5 * time.Second

// Event describes one persisted status transition.
type Event struct {
	ModuleID string    `json:"module_id"`
	UserID   uint64    `json:"user_id"`
	Status   Status    `json:"status"`
	At       time.Time `json:"at"`
}

// Notifier is told about every transition after it has been stored.
// Errors are logged and otherwise ignored.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// ModuleLister is what startup recovery reads from.
type ModuleLister interface {
	ListByStatus(ctx context.Context, status Status) ([]Module, error)
}

// Worker is the single consumer of a Queue. It runs one module at a time
// from pending through training to ready or error.
type Worker struct {
	queue        *Queue
	store        Store
	trainers     *trainer.Registry
	pollInterval time.Duration
	notifiers    []Notifier
}

type WorkerOption func(*Worker)

// WithPollInterval bounds how long an idle worker waits before looking at
// the queue again.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func WithNotifier(n Notifier) WorkerOption {
	return func(w *Worker) {
		if n != nil {
			w.notifiers = append(w.notifiers, n)
		}
	}
}

func NewWorker(queue *Queue, store Store, trainers *trainer.Registry, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:        queue,
		store:        store,
		trainers:     trainers,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the queue until ctx is cancelled (nil) or a status write fails
// (non-nil). Cancellation is only observed between modules.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("[training] worker started poll=%s", w.pollInterval)

	for {
		if ctx.Err() != nil {
			log.Printf("[training] worker stopping")
			return nil
		}

		m, ok := w.queue.Dequeue()
		if !ok {
			w.idle(ctx)
			continue
		}

		if err := w.process(ctx, m); err != nil {
			log.Printf("[training] worker halted module=%s user=%d err=%v", m.ID, m.UserID, err)
			return err
		}
	}
}

func (w *Worker) idle(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-w.queue.Wake():
	case <-t.C:
	}
}

func (w *Worker) process(ctx context.Context, m *Module) error {
	// a dequeued module always runs to a terminal status, shutdown or not
	jctx := context.WithoutCancel(ctx)
	jobStart := time.Now()

	cur, err := w.transition(jctx, m, StatusPending, StatusTraining)
	if err != nil {
		return err
	}

	t0 := time.Now()
	trainErr := w.train(jctx, cur)
	trainCost := time.Since(t0)

	final := StatusReady
	if trainErr != nil {
		final = StatusError
		log.Printf("[training] module=%s user=%d train failed cost=%s err=%v", m.ID, m.UserID, trainCost, trainErr)
	}

	done, err := w.transition(jctx, cur, StatusTraining, final)
	if err != nil {
		return err
	}
	if done.Status.Terminal() {
		w.queue.Release(m.UserID)
	}

	log.Printf("[training] module=%s user=%d steps=%d status=%s train=%s total=%s",
		m.ID, m.UserID, m.Steps, final, trainCost, time.Since(jobStart),
	)
	return nil
}

func (w *Worker) train(ctx context.Context, m *Module) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trainer panic: %v", r)
		}
	}()

	t, err := w.trainers.Get(ctx, string(m.Model))
	if err != nil {
		return err
	}
	return t.Train(ctx, trainer.Job{
		ID:           m.ID,
		Model:        string(m.Model),
		Steps:        m.Steps,
		LearningRate: m.LearningRate,
	})
}

// transition writes one status change. Any failure is fatal for the worker:
// a missing row means queue and store diverged, anything else means the
// status of the module is unknown.
func (w *Worker) transition(ctx context.Context, m *Module, from, to Status) (*Module, error) {
	updated, err := w.store.UpdateStatus(ctx, m.ID, from, to)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && updated == nil) {
		return nil, fmt.Errorf("%w: module %s missing on %s -> %s", ErrConsistencyViolation, m.ID, from, to)
	}
	if err != nil {
		return nil, fmt.Errorf("training: module %s %s -> %s: %w", m.ID, from, to, err)
	}

	w.notify(ctx, updated)
	return updated, nil
}

func (w *Worker) notify(ctx context.Context, m *Module) {
	ev := Event{
		ModuleID: m.ID,
		UserID:   m.UserID,
		Status:   m.Status,
		At:       m.LastUpdatedAt,
	}
	for _, n := range w.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			log.Printf("[training] notify failed module=%s status=%s err=%v", m.ID, m.Status, err)
		}
	}
}

// Recover rebuilds queue state after a restart. Modules left in training by
// a previous process can never finish and are moved to error; pending ones
// are queued again in submission order. A second pending module for an owner
// that already has one restored is moved to error as well.
func (w *Worker) Recover(ctx context.Context, src ModuleLister) (restored int, err error) {
	stuck, err := src.ListByStatus(ctx, StatusTraining)
	if err != nil {
		return 0, err
	}
	for i := range stuck {
		if _, err := w.transition(ctx, &stuck[i], StatusTraining, StatusError); err != nil {
			return 0, err
		}
		log.Printf("[training] recover: module=%s interrupted while training, marked error", stuck[i].ID)
	}

	pending, err := src.ListByStatus(ctx, StatusPending)
	if err != nil {
		return 0, err
	}
	for i := range pending {
		m := &pending[i]
		if err := w.queue.Restore(m); err != nil {
			// the owner already has a restored module; this one would never run
			if _, terr := w.transition(ctx, m, StatusPending, StatusError); terr != nil {
				return restored, terr
			}
			log.Printf("[training] recover: module=%s user=%d not restored, marked error: %v", m.ID, m.UserID, err)
			continue
		}
		restored++
	}
	return restored, nil
}

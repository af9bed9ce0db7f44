package training

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/ai-training/internal/trainer"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&Module{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newPending(id string, userID uint64, steps int) *Module {
	return &Module{
		ID:            id,
		UserID:        userID,
		Steps:         steps,
		LearningRate:  0.0001,
		Model:         Model6Bv4,
		Status:        StatusPending,
		LastUpdatedAt: time.Now(),
	}
}

// memStore is an in-memory Store that records every status it persisted.
type memStore struct {
	mu sync.Mutex

	rows      map[string]*Module
	history   map[string][]Status
	started   []string
	changedAt map[string]map[Status]time.Time

	inserts   int
	insertErr error
	updateErr error

	active    int
	maxActive int
}

func newMemStore() *memStore {
	return &memStore{
		rows:      make(map[string]*Module),
		history:   make(map[string][]Status),
		changedAt: make(map[string]map[Status]time.Time),
	}
}

func (s *memStore) Insert(ctx context.Context, m *Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, dup := s.rows[m.ID]; dup {
		return errors.New("duplicate primary key")
	}
	cp := *m
	s.rows[m.ID] = &cp
	s.inserts++
	s.record(m.ID, m.Status)
	return nil
}

func (s *memStore) UpdateStatus(ctx context.Context, id string, from, to Status) (*Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	row, ok := s.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if row.Status != from || !from.CanTransitionTo(to) {
		return nil, ErrInvalidTransition
	}
	row.Status = to
	row.LastUpdatedAt = time.Now()
	s.record(id, to)

	switch to {
	case StatusTraining:
		s.started = append(s.started, id)
		s.active++
		if s.active > s.maxActive {
			s.maxActive = s.active
		}
	case StatusReady, StatusError:
		if from == StatusTraining {
			s.active--
		}
	}

	cp := *row
	return &cp, nil
}

func (s *memStore) ListByStatus(ctx context.Context, status Status) ([]Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Module
	for _, r := range s.rows {
		if r.Status == status {
			out = append(out, *r)
		}
	}
	// ids in tests are chosen to sort in submission order
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (s *memStore) record(id string, st Status) {
	s.history[id] = append(s.history[id], st)
	if s.changedAt[id] == nil {
		s.changedAt[id] = make(map[Status]time.Time)
	}
	s.changedAt[id][st] = time.Now()
}

func (s *memStore) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
}

func (s *memStore) status(id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[id]; ok {
		return r.Status
	}
	return ""
}

func (s *memStore) historyOf(id string) []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Status(nil), s.history[id]...)
}

func (s *memStore) startedOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.started...)
}

func (s *memStore) at(id string, st Status) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changedAt[id][st]
}

func (s *memStore) insertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) snapshot() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

type failingTrainer struct{}

func (failingTrainer) Train(ctx context.Context, job trainer.Job) error {
	return errors.New("loss diverged")
}

type panickingTrainer struct{}

func (panickingTrainer) Train(ctx context.Context, job trainer.Job) error {
	panic("boom")
}

func simulatedRegistry(stepCost time.Duration) *trainer.Registry {
	reg := trainer.NewRegistry()
	reg.SetFallback(trainer.SimulatedFactory(stepCost))
	return reg
}

// startWorker runs w in the background and stops it when the test ends.
func startWorker(t *testing.T, w *Worker) <-chan error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-errc:
		case <-time.After(5 * time.Second):
			t.Errorf("worker did not stop")
		}
	})
	return errc
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

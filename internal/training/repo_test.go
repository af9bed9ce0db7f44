package training

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"gorm.io/gorm"
)

func TestRepo_InsertAndGetCarriesPayload(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	m := newPending("01TESTMODULE0000000000000A", 1, 10)
	m.Name = "my module"
	m.Description = "trained on poems"
	m.LossHistory = []float64{2.5, 1.75}
	if err := repo.Insert(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != 1 || got.Steps != 10 || got.Model != Model6Bv4 || got.Status != StatusPending {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.Name != "my module" || got.Description != "trained on poems" {
		t.Fatalf("payload not carried: name=%q description=%q", got.Name, got.Description)
	}
	if !reflect.DeepEqual([]float64(got.LossHistory), []float64{2.5, 1.75}) {
		t.Fatalf("unexpected loss history: %v", got.LossHistory)
	}
}

func TestRepo_UpdateStatusIsConditional(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	m := newPending("01TESTMODULE0000000000000B", 1, 1)
	m.LastUpdatedAt = time.Now().Add(-time.Hour)
	if err := repo.Insert(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.UpdateStatus(ctx, m.ID, StatusPending, StatusTraining)
	if err != nil {
		t.Fatalf("pending -> training: %v", err)
	}
	if got.Status != StatusTraining {
		t.Fatalf("expected training, got %s", got.Status)
	}
	if !got.LastUpdatedAt.After(m.LastUpdatedAt) {
		t.Fatalf("last_updated_at not advanced: %s", got.LastUpdatedAt)
	}

	// stale "from" must not write
	if _, err := repo.UpdateStatus(ctx, m.ID, StatusPending, StatusError); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for stale from, got %v", err)
	}

	if _, err := repo.UpdateStatus(ctx, m.ID, StatusTraining, StatusReady); err != nil {
		t.Fatalf("training -> ready: %v", err)
	}

	// backwards edges are refused before touching the db
	if _, err := repo.UpdateStatus(ctx, m.ID, StatusReady, StatusPending); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for ready -> pending, got %v", err)
	}

	final, err := repo.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != StatusReady {
		t.Fatalf("expected ready, got %s", final.Status)
	}
}

func TestRepo_UpdateStatusMissing(t *testing.T) {
	repo := NewRepo(openTestDB(t))

	_, err := repo.UpdateStatus(context.Background(), "nope", StatusPending, StatusTraining)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected gorm.ErrRecordNotFound, got %v", err)
	}
}

func TestRepo_ListByUserPagesNewestFirst(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.Insert(ctx, newPending(fmt.Sprintf("01TESTMODULE000000000000%02d", i), 1, 1)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := repo.Insert(ctx, newPending("01TESTMODULE000000000OTHER", 2, 1)); err != nil {
		t.Fatalf("insert other: %v", err)
	}

	page, err := repo.ListByUser(ctx, 1, 3, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 3 || page[0].ID != "01TESTMODULE00000000000004" || page[2].ID != "01TESTMODULE00000000000002" {
		t.Fatalf("unexpected first page: %v", ids(page))
	}

	next, err := repo.ListByUser(ctx, 1, 3, page[2].ID)
	if err != nil {
		t.Fatalf("list next: %v", err)
	}
	if len(next) != 2 || next[0].ID != "01TESTMODULE00000000000001" {
		t.Fatalf("unexpected second page: %v", ids(next))
	}
}

func TestRepo_ListByStatusInSubmissionOrder(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i, id := range []string{"01TESTMODULE0000000000000Z", "01TESTMODULE0000000000000Y", "01TESTMODULE0000000000000X"} {
		m := newPending(id, uint64(i+1), 1)
		m.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := repo.Insert(ctx, m); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, err := repo.UpdateStatus(ctx, "01TESTMODULE0000000000000Y", StatusPending, StatusTraining); err != nil {
		t.Fatalf("update: %v", err)
	}

	pending, err := repo.ListByStatus(ctx, StatusPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"01TESTMODULE0000000000000Z", "01TESTMODULE0000000000000X"}
	if !reflect.DeepEqual(ids(pending), want) {
		t.Fatalf("expected %v, got %v", want, ids(pending))
	}
}

func ids(ms []Module) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}

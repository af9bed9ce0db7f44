package training

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store is the persistence the queue and worker depend on.
// UpdateStatus returns gorm.ErrRecordNotFound when no module has that id.
type Store interface {
	Insert(ctx context.Context, m *Module) error
	UpdateStatus(ctx context.Context, id string, from, to Status) (*Module, error)
}

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Insert(ctx context.Context, m *Module) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Module, error) {
	var m Module
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateStatus moves a module from -> to, conditional on its current status
// being from. The stored row is returned after the write.
func (r *Repo) UpdateStatus(ctx context.Context, id string, from, to Status) (*Module, error) {
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	res := r.db.WithContext(ctx).Model(&Module{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":          to,
			"last_updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: module %s is %s, expected %s", ErrInvalidTransition, id, m.Status, from)
	}
	return m, nil
}

// ListByUser returns modules in DESC id order (newest -> oldest).
func (r *Repo) ListByUser(ctx context.Context, userID uint64, limit int, beforeID string) ([]Module, error) {
	if limit <= 0 {
		limit = 20
	}
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit)

	if beforeID != "" {
		q = q.Where("id < ?", beforeID)
	}

	var out []Module
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByStatus returns modules in submission order.
func (r *Repo) ListByStatus(ctx context.Context, status Status) ([]Module, error) {
	var out []Module
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

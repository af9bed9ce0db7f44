package training

import (
	"context"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/suPer8Hu/ai-training/internal/common"
	"gorm.io/gorm"
)

const (
	maxNameLen        = 64
	maxDescriptionLen = 256
)

type SubmitRequest struct {
	Model        ModelVariant `json:"model"`
	Steps        int          `json:"steps"`
	LearningRate float64      `json:"learning_rate"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
}

func (r SubmitRequest) validate() error {
	switch {
	case !r.Model.Valid():
		return fmt.Errorf("%w: unknown model %q", ErrInvalidRequest, r.Model)
	case r.Steps < 0:
		return fmt.Errorf("%w: steps must be >= 0", ErrInvalidRequest)
	case math.IsNaN(r.LearningRate) || math.IsInf(r.LearningRate, 0) || r.LearningRate < 0:
		return fmt.Errorf("%w: learning_rate must be a finite number >= 0", ErrInvalidRequest)
	case utf8.RuneCountInString(r.Name) > maxNameLen:
		return fmt.Errorf("%w: name longer than %d", ErrInvalidRequest, maxNameLen)
	case utf8.RuneCountInString(r.Description) > maxDescriptionLen:
		return fmt.Errorf("%w: description longer than %d", ErrInvalidRequest, maxDescriptionLen)
	}
	return nil
}

type Service struct {
	repo  *Repo
	queue *Queue
}

func NewService(repo *Repo, queue *Queue) *Service {
	return &Service{repo: repo, queue: queue}
}

// Submit creates a pending module for userID and enqueues it.
func (s *Service) Submit(ctx context.Context, userID uint64, req SubmitRequest) (*Module, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidRequest)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	m := &Module{
		ID:            id,
		UserID:        userID,
		Steps:         req.Steps,
		LearningRate:  req.LearningRate,
		Model:         req.Model,
		Name:          req.Name,
		Description:   req.Description,
		LossHistory:   []float64{},
		Status:        StatusPending,
		LastUpdatedAt: time.Now(),
	}
	if err := s.queue.Enqueue(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Get hides modules owned by someone else behind gorm.ErrRecordNotFound.
func (s *Service) Get(ctx context.Context, userID uint64, id string) (*Module, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, userID uint64, limit int, beforeID string) ([]Module, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, userID, limit, beforeID)
}

// Outstanding reports whether userID has a module that is not terminal yet.
func (s *Service) Outstanding(userID uint64) bool {
	return s.queue.Outstanding(userID)
}

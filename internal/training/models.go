package training

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusTraining Status = "training"
	StatusReady    Status = "ready"
	StatusError    Status = "error"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusError
}

// CanTransitionTo encodes the forward-only lifecycle:
// pending -> training -> ready, with error reachable from pending or training.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusTraining || next == StatusError
	case StatusTraining:
		return next == StatusReady || next == StatusError
	default:
		return false
	}
}

type ModelVariant string

const (
	Model2_7B          ModelVariant = "2.7B"
	Model6Bv4          ModelVariant = "6B-v4"
	ModelEuterpeV2     ModelVariant = "euterpe-v2"
	ModelGenjiPython6B ModelVariant = "genji-python-6b"
	ModelGenjiJP6B     ModelVariant = "genji-jp-6b"
	ModelGenjiJP6Bv2   ModelVariant = "genji-jp-6b-v2"
	ModelKrakeV2       ModelVariant = "krake-v2"
	ModelHypebot       ModelVariant = "hypebot"
	ModelInfill        ModelVariant = "infillmodel"
)

var knownModels = map[ModelVariant]struct{}{
	Model2_7B:          {},
	Model6Bv4:          {},
	ModelEuterpeV2:     {},
	ModelGenjiPython6B: {},
	ModelGenjiJP6B:     {},
	ModelGenjiJP6Bv2:   {},
	ModelKrakeV2:       {},
	ModelHypebot:       {},
	ModelInfill:        {},
}

func (m ModelVariant) Valid() bool {
	_, ok := knownModels[m]
	return ok
}

// Module is one submitted training job.
type Module struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	UserID uint64 `gorm:"index;not null" json:"-"`

	Steps        int          `gorm:"not null" json:"steps"`
	LearningRate float64      `gorm:"not null" json:"learning_rate"`
	Model        ModelVariant `gorm:"type:varchar(32);not null" json:"model"`
	Name         string       `gorm:"type:varchar(64)" json:"name"`
	Description  string       `gorm:"type:varchar(256)" json:"description"`

	LossHistory datatypes.JSONSlice[float64] `json:"loss_history"`

	Status        Status    `gorm:"type:varchar(16);index;not null" json:"status"`
	LastUpdatedAt time.Time `gorm:"not null" json:"last_updated_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Module) TableName() string { return "ai_modules" }

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/SonianW/MetaPrompter/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique row (such as a prompt's
	// statistics) already exists.
	ErrConflict = errors.New("already exists")
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

type PromptFilter struct {
	UserID     *uuid.UUID
	Category   string
	PublicOnly bool
	Search     string // matched against title and content
	Limit      int
	Offset     int
}

type HistoryFilter struct {
	PromptID  *uuid.UUID
	Operation models.OperationType
	Limit     int
	Offset    int
}

// Store persists prompts, their history and their statistics. Callers set
// IDs and timestamps; the store writes them as given.
type Store interface {
	// WithTx runs fn in a transaction carried by the context passed to fn.
	// Nested calls join the outer transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreatePrompt(ctx context.Context, p *models.Prompt) error
	GetPrompt(ctx context.Context, id uuid.UUID) (*models.Prompt, error)
	// UpdatePrompt writes the editable fields of p and refreshes p from the
	// stored row. usage_count and average_score are never written here.
	UpdatePrompt(ctx context.Context, p *models.Prompt) error
	// SetAverageScore overwrites average_score and returns the updated prompt.
	SetAverageScore(ctx context.Context, id uuid.UUID, avg float64, at time.Time) (*models.Prompt, error)
	// IncrementUsage adds one to usage_count and returns the updated prompt.
	IncrementUsage(ctx context.Context, id uuid.UUID, at time.Time) (*models.Prompt, error)
	ListPrompts(ctx context.Context, f PromptFilter) ([]models.Prompt, error)
	// ListPopularPublic returns public prompts ordered by weekly usage.
	ListPopularPublic(ctx context.Context, limit int) ([]models.Prompt, error)

	AppendHistory(ctx context.Context, e *models.HistoryEntry) error
	ListHistory(ctx context.Context, f HistoryFilter) ([]models.HistoryEntry, error)
	CountHistorySince(ctx context.Context, promptID uuid.UUID, op models.OperationType, since time.Time) (int, error)

	GetStatistics(ctx context.Context, promptID uuid.UUID) (*models.PromptStatistics, error)
	CreateStatistics(ctx context.Context, s *models.PromptStatistics) error
	UpdateStatistics(ctx context.Context, s *models.PromptStatistics) error
	ListStatistics(ctx context.Context, promptID *uuid.UUID) ([]models.PromptStatistics, error)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

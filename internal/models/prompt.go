package models

import (
	"time"

	"github.com/google/uuid"
)

// Prompt is a stored prompt artifact.
type Prompt struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Title        string     `json:"title" db:"title"`
	Content      string     `json:"content" db:"content"`
	Description  string     `json:"description,omitempty" db:"description"`
	Category     string     `json:"category,omitempty" db:"category"`
	Tags         string     `json:"tags,omitempty" db:"tags"` // comma separated
	UserID       *uuid.UUID `json:"user,omitempty" db:"user_id"`
	UsageCount   int        `json:"usage_count" db:"usage_count"`
	AverageScore float64    `json:"average_score" db:"average_score"`
	IsPublic     bool       `json:"is_public" db:"is_public"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

type OperationType string

const (
	OpCreate   OperationType = "create"
	OpUpdate   OperationType = "update"
	OpUse      OperationType = "use"
	OpOptimize OperationType = "optimize"
	OpGenerate OperationType = "generate"
	OpEvaluate OperationType = "evaluate"
)

func (o OperationType) Valid() bool {
	switch o {
	case OpCreate, OpUpdate, OpUse, OpOptimize, OpGenerate, OpEvaluate:
		return true
	}
	return false
}

// HistoryEntry records that an operation was performed on a prompt. Entries
// are never modified once written.
type HistoryEntry struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	PromptID      uuid.UUID     `json:"prompt" db:"prompt_id"`
	Content       string        `json:"content" db:"content"`
	OperationType OperationType `json:"operation_type" db:"operation_type"`
	UserID        *uuid.UUID    `json:"user,omitempty" db:"user_id"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// PromptStatistics is the denormalized usage summary of one prompt. The
// windowed usage counters are recomputed from history on every use event.
type PromptStatistics struct {
	ID                             uuid.UUID `json:"id" db:"id"`
	PromptID                       uuid.UUID `json:"prompt" db:"prompt_id"`
	TotalUsage                     int       `json:"total_usage" db:"total_usage"`
	DailyUsage                     int       `json:"daily_usage" db:"daily_usage"`
	WeeklyUsage                    int       `json:"weekly_usage" db:"weekly_usage"`
	MonthlyUsage                   int       `json:"monthly_usage" db:"monthly_usage"`
	TotalScore                     float64   `json:"total_score" db:"total_score"`
	ScoreCount                     int       `json:"score_count" db:"score_count"`
	OptimizationCount              int       `json:"optimization_count" db:"optimization_count"`
	AverageOptimizationImprovement float64   `json:"average_optimization_improvement" db:"average_optimization_improvement"`
	GenerationCount                int       `json:"generation_count" db:"generation_count"`
	UpdatedAt                      time.Time `json:"updated_at" db:"updated_at"`
}

func (s *PromptStatistics) AverageScore() float64 {
	if s.ScoreCount == 0 {
		return 0
	}
	return s.TotalScore / float64(s.ScoreCount)
}

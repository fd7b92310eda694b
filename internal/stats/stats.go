// Package stats keeps each prompt's PromptStatistics row in step with its
// history log.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SonianW/MetaPrompter/internal/metrics"
	"github.com/SonianW/MetaPrompter/internal/models"
	"github.com/SonianW/MetaPrompter/internal/store"
)

// OptimizationSample is the improvement recorded for every optimization.
// Optimizations are not scored, so every sample is the same constant.
const OptimizationSample = 0.1

const MaxScore = 10.0

var ErrInvalidScore = errors.New("score must be between 0 and 10")

type Aggregator struct {
	store store.Store
	now   func() time.Time
	loc   *time.Location
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLocation sets the timezone that day, week and month windows start in.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

func NewAggregator(s store.Store, opts ...Option) *Aggregator {
	a := &Aggregator{store: s, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Now() time.Time { return a.now() }

// Init creates an empty statistics row for a new prompt. An existing row is
// left alone.
func (a *Aggregator) Init(ctx context.Context, promptID uuid.UUID) error {
	_, _, err := a.loadOrCreate(ctx, promptID, func(*models.PromptStatistics) {})
	return err
}

// RecordUse counts one use of a prompt: it bumps the prompt's usage counter,
// logs a use history entry and recomputes the windowed counters from
// history, all in one transaction.
func (a *Aggregator) RecordUse(ctx context.Context, promptID uuid.UUID, userID *uuid.UUID) (*models.PromptStatistics, error) {
	var out *models.PromptStatistics
	err := a.store.WithTx(ctx, func(ctx context.Context) error {
		now := a.now()

		p, err := a.store.IncrementUsage(ctx, promptID, now)
		if err != nil {
			return fmt.Errorf("increment usage: %w", err)
		}

		entry := &models.HistoryEntry{
			ID:            uuid.New(),
			PromptID:      promptID,
			Content:       p.Content,
			OperationType: models.OpUse,
			UserID:        userID,
			CreatedAt:     now,
		}
		if err := a.store.AppendHistory(ctx, entry); err != nil {
			return fmt.Errorf("append use history: %w", err)
		}

		st, created, err := a.loadOrCreate(ctx, promptID, func(st *models.PromptStatistics) {
			st.TotalUsage = 1
			st.DailyUsage = 1
			st.WeeklyUsage = 1
			st.MonthlyUsage = 1
		})
		if err != nil {
			return err
		}
		if created {
			out = st
			return nil
		}

		st.TotalUsage++
		if err := a.recomputeWindows(ctx, st, now); err != nil {
			return err
		}
		st.UpdatedAt = now
		if err := a.store.UpdateStatistics(ctx, st); err != nil {
			return fmt.Errorf("update statistics: %w", err)
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.HistoryEntriesTotal.WithLabelValues(string(models.OpUse)).Inc()
	slog.Debug("recorded prompt use", "prompt_id", promptID, "total", out.TotalUsage,
		"daily", out.DailyUsage, "weekly", out.WeeklyUsage, "monthly", out.MonthlyUsage)
	return out, nil
}

func (a *Aggregator) recomputeWindows(ctx context.Context, st *models.PromptStatistics, now time.Time) error {
	windows := []struct {
		since time.Time
		dst   *int
	}{
		{DayStart(now, a.loc), &st.DailyUsage},
		{WeekStart(now, a.loc), &st.WeeklyUsage},
		{MonthStart(now, a.loc), &st.MonthlyUsage},
	}
	for _, w := range windows {
		n, err := a.store.CountHistorySince(ctx, st.PromptID, models.OpUse, w.since)
		if err != nil {
			return fmt.Errorf("count uses since %s: %w", w.since.Format(time.RFC3339), err)
		}
		*w.dst = n
	}
	return nil
}

// RecordOptimization adds one OptimizationSample to the running average of
// optimization improvement.
func (a *Aggregator) RecordOptimization(ctx context.Context, promptID uuid.UUID) (*models.PromptStatistics, error) {
	return a.update(ctx, promptID,
		func(st *models.PromptStatistics) {
			st.OptimizationCount = 1
			st.AverageOptimizationImprovement = OptimizationSample
		},
		func(st *models.PromptStatistics) {
			n := float64(st.OptimizationCount)
			st.AverageOptimizationImprovement = (st.AverageOptimizationImprovement*n + OptimizationSample) / (n + 1)
			st.OptimizationCount++
		},
	)
}

func (a *Aggregator) RecordGeneration(ctx context.Context, promptID uuid.UUID) (*models.PromptStatistics, error) {
	return a.update(ctx, promptID,
		func(st *models.PromptStatistics) { st.GenerationCount = 1 },
		func(st *models.PromptStatistics) { st.GenerationCount++ },
	)
}

// RecordScore adds a 0-10 rating and refreshes the prompt's average score.
func (a *Aggregator) RecordScore(ctx context.Context, promptID uuid.UUID, score float64) (*models.PromptStatistics, error) {
	if score < 0 || score > MaxScore {
		return nil, ErrInvalidScore
	}

	var out *models.PromptStatistics
	err := a.store.WithTx(ctx, func(ctx context.Context) error {
		st, err := a.update(ctx, promptID,
			func(st *models.PromptStatistics) {
				st.TotalScore = score
				st.ScoreCount = 1
			},
			func(st *models.PromptStatistics) {
				st.TotalScore += score
				st.ScoreCount++
			},
		)
		if err != nil {
			return err
		}

		if _, err := a.store.SetAverageScore(ctx, promptID, st.AverageScore(), st.UpdatedAt); err != nil {
			return fmt.Errorf("update average score: %w", err)
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// update applies fresh to a newly created row, or apply to an existing one.
func (a *Aggregator) update(ctx context.Context, promptID uuid.UUID, fresh, apply func(*models.PromptStatistics)) (*models.PromptStatistics, error) {
	var out *models.PromptStatistics
	err := a.store.WithTx(ctx, func(ctx context.Context) error {
		st, created, err := a.loadOrCreate(ctx, promptID, fresh)
		if err != nil {
			return err
		}
		if !created {
			apply(st)
			st.UpdatedAt = a.now()
			if err := a.store.UpdateStatistics(ctx, st); err != nil {
				return fmt.Errorf("update statistics: %w", err)
			}
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// loadOrCreate returns the prompt's statistics row, creating it with fresh
// applied when absent. created reports whether the row was inserted here.
func (a *Aggregator) loadOrCreate(ctx context.Context, promptID uuid.UUID, fresh func(*models.PromptStatistics)) (*models.PromptStatistics, bool, error) {
	st, err := a.store.GetStatistics(ctx, promptID)
	if err == nil {
		return st, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("load statistics: %w", err)
	}

	st = &models.PromptStatistics{ID: uuid.New(), PromptID: promptID, UpdatedAt: a.now()}
	fresh(st)
	err = a.store.CreateStatistics(ctx, st)
	switch {
	case err == nil:
		return st, true, nil
	case errors.Is(err, store.ErrConflict):
		// Lost a race with another writer creating the row.
		st, err = a.store.GetStatistics(ctx, promptID)
		if err != nil {
			return nil, false, fmt.Errorf("reload statistics: %w", err)
		}
		return st, false, nil
	default:
		return nil, false, fmt.Errorf("create statistics: %w", err)
	}
}

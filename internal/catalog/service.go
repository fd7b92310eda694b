// Package catalog is the persistence boundary for prompts. It validates and
// stores artifacts, runs the LLM-backed lifecycle operations on them and
// keeps their history and statistics in step.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SonianW/MetaPrompter/internal/auth"
	"github.com/SonianW/MetaPrompter/internal/cache"
	"github.com/SonianW/MetaPrompter/internal/metrics"
	"github.com/SonianW/MetaPrompter/internal/models"
	"github.com/SonianW/MetaPrompter/internal/prompt"
	"github.com/SonianW/MetaPrompter/internal/stats"
	"github.com/SonianW/MetaPrompter/internal/store"
)

const (
	DefaultGeneratedTitle       = "Generated Prompt"
	DefaultGeneratedDescription = "Automatically generated prompt"

	DefaultPublicLimit = 10
	publicCacheKey     = "public_prompts:top"

	evaluationPreviewLength = 100
)

// Outcome is the result of an LLM-backed catalog operation. A failed
// lifecycle call is reported here rather than as an error; nothing is
// persisted in that case.
type Outcome struct {
	prompt.Result
	Prompt   *models.Prompt
	Original string // content before optimization
}

type Service struct {
	store     store.Store
	lifecycle *prompt.Lifecycle
	stats     *stats.Aggregator
	cache     cache.Cache
	cacheTTL  time.Duration
}

type Option func(*Service)

// WithCache caches the default public listing for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func NewService(st store.Store, lc *prompt.Lifecycle, agg *stats.Aggregator, opts ...Option) *Service {
	s := &Service{store: st, lifecycle: lc, stats: agg, cacheTTL: time.Minute}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Lifecycle() *prompt.Lifecycle { return s.lifecycle }

type CreateInput struct {
	Title       string
	Content     string
	Description string
	Category    string
	Tags        string
	IsPublic    bool
}

func (in CreateInput) validate() error {
	errs := fieldErrors{}
	requireText(errs, "title", in.Title)
	requireText(errs, "content", in.Content)
	if _, ok := errs["title"]; !ok {
		maxLength(errs, "title", in.Title, MaxTitleLength)
	}
	maxLength(errs, "category", in.Category, MaxCategoryLength)
	maxLength(errs, "tags", in.Tags, MaxTagsLength)
	return errs.err()
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Prompt, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.stats.Now()
	p := &models.Prompt{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(in.Title),
		Content:     in.Content,
		Description: in.Description,
		Category:    in.Category,
		Tags:        in.Tags,
		UserID:      auth.UserIDFromContext(ctx),
		IsPublic:    in.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreatePrompt(ctx, p); err != nil {
			return fmt.Errorf("create prompt: %w", err)
		}
		if err := s.appendHistory(ctx, p, models.OpCreate, p.Content); err != nil {
			return err
		}
		return s.stats.Init(ctx, p.ID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidatePublic(ctx)
	return p, nil
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Content     *string
	Description *string
	Category    *string
	Tags        *string
	IsPublic    *bool
}

func (in UpdateInput) validate() error {
	errs := fieldErrors{}
	if in.Title != nil {
		requireText(errs, "title", *in.Title)
		if _, ok := errs["title"]; !ok {
			maxLength(errs, "title", *in.Title, MaxTitleLength)
		}
	}
	if in.Content != nil {
		requireText(errs, "content", *in.Content)
	}
	if in.Category != nil {
		maxLength(errs, "category", *in.Category, MaxCategoryLength)
	}
	if in.Tags != nil {
		maxLength(errs, "tags", *in.Tags, MaxTagsLength)
	}
	return errs.err()
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Prompt, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var p *models.Prompt
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.store.GetPrompt(ctx, id)
		if err != nil {
			return err
		}

		if in.Title != nil {
			p.Title = strings.TrimSpace(*in.Title)
		}
		if in.Content != nil {
			p.Content = *in.Content
		}
		if in.Description != nil {
			p.Description = *in.Description
		}
		if in.Category != nil {
			p.Category = *in.Category
		}
		if in.Tags != nil {
			p.Tags = *in.Tags
		}
		if in.IsPublic != nil {
			p.IsPublic = *in.IsPublic
		}
		p.UpdatedAt = s.stats.Now()

		if err := s.store.UpdatePrompt(ctx, p); err != nil {
			return fmt.Errorf("update prompt: %w", err)
		}
		return s.appendHistory(ctx, p, models.OpUpdate, p.Content)
	})
	if err != nil {
		return nil, err
	}

	s.invalidatePublic(ctx)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	return s.store.GetPrompt(ctx, id)
}

func (s *Service) List(ctx context.Context, f store.PromptFilter) ([]models.Prompt, error) {
	return s.store.ListPrompts(ctx, f)
}

// ListPublic returns public prompts ordered by weekly usage. The default
// listing is served from cache when one is configured.
func (s *Service) ListPublic(ctx context.Context, limit int) ([]models.Prompt, error) {
	if limit <= 0 {
		limit = DefaultPublicLimit
	}
	cacheable := s.cache != nil && limit == DefaultPublicLimit

	if cacheable {
		var cached []models.Prompt
		err := s.cache.Get(ctx, publicCacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("public prompt cache read failed", "error", err)
		}
	}

	list, err := s.store.ListPopularPublic(ctx, limit)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := s.cache.Set(ctx, publicCacheKey, list, s.cacheTTL); err != nil {
			slog.Warn("public prompt cache write failed", "error", err)
		}
	}
	return list, nil
}

func (s *Service) History(ctx context.Context, f store.HistoryFilter) ([]models.HistoryEntry, error) {
	return s.store.ListHistory(ctx, f)
}

func (s *Service) Statistics(ctx context.Context, promptID *uuid.UUID) ([]models.PromptStatistics, error) {
	return s.store.ListStatistics(ctx, promptID)
}

type GenerateInput struct {
	Requirement string
	Model       string
	Title       string
	Description string
}

// Generate asks the model for a new prompt and stores it. Nothing is stored
// when generation fails.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (Outcome, error) {
	if strings.TrimSpace(in.Requirement) == "" {
		return Outcome{}, &ValidationError{Fields: map[string]string{"requirement": "Requirement is required"}}
	}
	if in.Title == "" {
		in.Title = DefaultGeneratedTitle
	}
	if in.Description == "" {
		in.Description = DefaultGeneratedDescription
	}

	res := s.lifecycle.Generate(ctx, in.Requirement, in.Model)
	if !res.OK() {
		return Outcome{Result: res}, nil
	}

	create := CreateInput{Title: in.Title, Content: res.Text, Description: in.Description}
	if err := create.validate(); err != nil {
		return Outcome{}, err
	}

	now := s.stats.Now()
	p := &models.Prompt{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(in.Title),
		Content:     res.Text,
		Description: in.Description,
		UserID:      auth.UserIDFromContext(ctx),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreatePrompt(ctx, p); err != nil {
			return fmt.Errorf("create prompt: %w", err)
		}
		if err := s.appendHistory(ctx, p, models.OpGenerate, p.Content); err != nil {
			return err
		}
		_, err := s.stats.RecordGeneration(ctx, p.ID)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Result: res, Prompt: p}, nil
}

// Optimize replaces a prompt's content with an optimized rewrite. Only the
// content is written back; counters changed during the model call survive.
func (s *Service) Optimize(ctx context.Context, id uuid.UUID, model string) (Outcome, error) {
	p, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	original := p.Content

	res := s.lifecycle.Optimize(ctx, original, model)
	if !res.OK() {
		return Outcome{Result: res, Prompt: p, Original: original}, nil
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		p.Content = res.Text
		p.UpdatedAt = s.stats.Now()
		if err := s.store.UpdatePrompt(ctx, p); err != nil {
			return fmt.Errorf("update prompt: %w", err)
		}
		if err := s.appendHistory(ctx, p, models.OpOptimize, res.Text); err != nil {
			return err
		}
		_, err := s.stats.RecordOptimization(ctx, p.ID)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	s.invalidatePublic(ctx)
	return Outcome{Result: res, Prompt: p, Original: original}, nil
}

// Evaluate runs a quality analysis of the prompt's content. Authenticated
// callers get an evaluate history entry with a preview of the report.
func (s *Service) Evaluate(ctx context.Context, id uuid.UUID, detailed bool, model string) (Outcome, error) {
	p, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return Outcome{}, err
	}

	res := s.lifecycle.AnalyzeQuality(ctx, p.Content, detailed, model)
	if !res.OK() || auth.UserIDFromContext(ctx) == nil {
		return Outcome{Result: res, Prompt: p}, nil
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		return s.appendHistory(ctx, p, models.OpEvaluate, evaluationPreview(res.Text))
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Result: res, Prompt: p}, nil
}

func evaluationPreview(report string) string {
	r := []rune(report)
	if len(r) > evaluationPreviewLength {
		r = r[:evaluationPreviewLength]
	}
	return "Evaluation: " + string(r) + "..."
}

// Use records one use of a prompt.
func (s *Service) Use(ctx context.Context, id uuid.UUID) (*models.PromptStatistics, error) {
	st, err := s.stats.RecordUse(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return nil, err
	}
	s.invalidatePublic(ctx)
	return st, nil
}

// Score adds a 0-10 rating to a prompt.
func (s *Service) Score(ctx context.Context, id uuid.UUID, score float64) (*models.PromptStatistics, error) {
	st, err := s.stats.RecordScore(ctx, id, score)
	if err != nil {
		if errors.Is(err, stats.ErrInvalidScore) {
			return nil, &ValidationError{Fields: map[string]string{"score": err.Error()}}
		}
		return nil, err
	}
	s.invalidatePublic(ctx)
	return st, nil
}

func (s *Service) appendHistory(ctx context.Context, p *models.Prompt, op models.OperationType, content string) error {
	e := &models.HistoryEntry{
		ID:            uuid.New(),
		PromptID:      p.ID,
		Content:       content,
		OperationType: op,
		UserID:        auth.UserIDFromContext(ctx),
		CreatedAt:     s.stats.Now(),
	}
	if err := s.store.AppendHistory(ctx, e); err != nil {
		return fmt.Errorf("append %s history: %w", op, err)
	}
	metrics.HistoryEntriesTotal.WithLabelValues(string(op)).Inc()
	return nil
}

func (s *Service) invalidatePublic(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, publicCacheKey); err != nil {
		slog.Warn("public prompt cache invalidation failed", "error", err)
	}
}

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SonianW/MetaPrompter/internal/models"
)

type memTxKey struct{}

// Memory is an in-process Store. Transactions are serialized and rolled back
// by restoring a snapshot, so every write should go through WithTx.
type Memory struct {
	txMu sync.Mutex

	mu      sync.RWMutex
	prompts map[uuid.UUID]models.Prompt
	history []models.HistoryEntry
	stats   map[uuid.UUID]models.PromptStatistics // keyed by prompt ID
}

func NewMemory() *Memory {
	return &Memory{
		prompts: make(map[uuid.UUID]models.Prompt),
		stats:   make(map[uuid.UUID]models.PromptStatistics),
	}
}

type memSnapshot struct {
	prompts map[uuid.UUID]models.Prompt
	history []models.HistoryEntry
	stats   map[uuid.UUID]models.PromptStatistics
}

func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) snapshot() memSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := memSnapshot{
		prompts: make(map[uuid.UUID]models.Prompt, len(m.prompts)),
		history: append([]models.HistoryEntry(nil), m.history...),
		stats:   make(map[uuid.UUID]models.PromptStatistics, len(m.stats)),
	}
	for k, v := range m.prompts {
		s.prompts[k] = v
	}
	for k, v := range m.stats {
		s.stats[k] = v
	}
	return s
}

func (m *Memory) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = s.prompts
	m.history = s.history
	m.stats = s.stats
}

func (m *Memory) CreatePrompt(_ context.Context, p *models.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prompts[p.ID]; ok {
		return ErrConflict
	}
	m.prompts[p.ID] = *p
	return nil
}

func (m *Memory) GetPrompt(_ context.Context, id uuid.UUID) (*models.Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) UpdatePrompt(_ context.Context, p *models.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.prompts[p.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Title = p.Title
	cur.Content = p.Content
	cur.Description = p.Description
	cur.Category = p.Category
	cur.Tags = p.Tags
	cur.IsPublic = p.IsPublic
	cur.UpdatedAt = p.UpdatedAt
	m.prompts[p.ID] = cur
	*p = cur
	return nil
}

func (m *Memory) SetAverageScore(_ context.Context, id uuid.UUID, avg float64, at time.Time) (*models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.AverageScore = avg
	p.UpdatedAt = at
	m.prompts[id] = p
	return &p, nil
}

func (m *Memory) IncrementUsage(_ context.Context, id uuid.UUID, at time.Time) (*models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.UsageCount++
	p.UpdatedAt = at
	m.prompts[id] = p
	return &p, nil
}

func (m *Memory) ListPrompts(_ context.Context, f PromptFilter) ([]models.Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(f.Search)
	var out []models.Prompt
	for _, p := range m.prompts {
		if f.UserID != nil && (p.UserID == nil || *p.UserID != *f.UserID) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.PublicOnly && !p.IsPublic {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Content), search) {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Offset, clampLimit(f.Limit)), nil
}

func (m *Memory) ListPopularPublic(_ context.Context, limit int) ([]models.Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Prompt
	for _, p := range m.prompts {
		if p.IsPublic {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		wi, wj := m.stats[out[i].ID].WeeklyUsage, m.stats[out[j].ID].WeeklyUsage
		if wi != wj {
			return wi > wj
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, 0, clampLimit(limit)), nil
}

func (m *Memory) AppendHistory(_ context.Context, e *models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prompts[e.PromptID]; !ok {
		return ErrNotFound
	}
	m.history = append(m.history, *e)
	return nil
}

func (m *Memory) ListHistory(_ context.Context, f HistoryFilter) ([]models.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.HistoryEntry
	for i := len(m.history) - 1; i >= 0; i-- {
		e := m.history[i]
		if f.PromptID != nil && e.PromptID != *f.PromptID {
			continue
		}
		if f.Operation != "" && e.OperationType != f.Operation {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Offset, clampLimit(f.Limit)), nil
}

func (m *Memory) CountHistorySince(_ context.Context, promptID uuid.UUID, op models.OperationType, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.history {
		if e.PromptID == promptID && e.OperationType == op && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) GetStatistics(_ context.Context, promptID uuid.UUID) (*models.PromptStatistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[promptID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) CreateStatistics(_ context.Context, s *models.PromptStatistics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prompts[s.PromptID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.stats[s.PromptID]; ok {
		return ErrConflict
	}
	m.stats[s.PromptID] = *s
	return nil
}

func (m *Memory) UpdateStatistics(_ context.Context, s *models.PromptStatistics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stats[s.PromptID]; !ok {
		return ErrNotFound
	}
	m.stats[s.PromptID] = *s
	return nil
}

func (m *Memory) ListStatistics(_ context.Context, promptID *uuid.UUID) ([]models.PromptStatistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.PromptStatistics
	for id, s := range m.stats {
		if promptID != nil && id != *promptID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

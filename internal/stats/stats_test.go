package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SonianW/MetaPrompter/internal/models"
	"github.com/SonianW/MetaPrompter/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func setup(t *testing.T, start time.Time) (*Aggregator, *store.Memory, *fakeClock, *models.Prompt) {
	t.Helper()
	mem := store.NewMemory()
	clock := &fakeClock{t: start}
	p := &models.Prompt{ID: uuid.New(), Title: "Summariser", Content: "Summarise {{text}}", CreatedAt: start, UpdatedAt: start}
	require.NoError(t, mem.CreatePrompt(context.Background(), p))
	return NewAggregator(mem, WithClock(clock.Now), WithLocation(time.UTC)), mem, clock, p
}

func TestRecordUse_FirstUseCreatesRow(t *testing.T) {
	agg, mem, _, p := setup(t, time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()
	user := uuid.New()

	st, err := agg.RecordUse(ctx, p.ID, &user)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalUsage)
	assert.Equal(t, 1, st.DailyUsage)
	assert.Equal(t, 1, st.WeeklyUsage)
	assert.Equal(t, 1, st.MonthlyUsage)

	got, _ := mem.GetPrompt(ctx, p.ID)
	assert.Equal(t, 1, got.UsageCount)

	h, _ := mem.ListHistory(ctx, store.HistoryFilter{PromptID: &p.ID})
	require.Len(t, h, 1)
	assert.Equal(t, models.OpUse, h[0].OperationType)
	assert.Equal(t, p.Content, h[0].Content)
	assert.Equal(t, &user, h[0].UserID)
}

func TestRecordUse_DailyWindowResetsAtMidnight(t *testing.T) {
	agg, _, clock, p := setup(t, time.Date(2024, 5, 14, 23, 50, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := agg.RecordUse(ctx, p.ID, nil)
	require.NoError(t, err)

	clock.Set(time.Date(2024, 5, 15, 0, 10, 0, 0, time.UTC))
	st, err := agg.RecordUse(ctx, p.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, st.TotalUsage)
	assert.Equal(t, 1, st.DailyUsage)
	assert.Equal(t, 2, st.WeeklyUsage, "Tuesday and Wednesday share a week")
	assert.Equal(t, 2, st.MonthlyUsage)
}

func TestRecordUse_WeekStartsMonday(t *testing.T) {
	// 2024-05-19 is a Sunday.
	agg, _, clock, p := setup(t, time.Date(2024, 5, 19, 22, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := agg.RecordUse(ctx, p.ID, nil)
	require.NoError(t, err)

	clock.Set(time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC))
	st, err := agg.RecordUse(ctx, p.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, st.WeeklyUsage)
	assert.Equal(t, 2, st.MonthlyUsage)
}

func TestRecordUse_MonthWindow(t *testing.T) {
	agg, _, clock, p := setup(t, time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := agg.RecordUse(ctx, p.ID, nil)
	require.NoError(t, err)

	clock.Set(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	st, err := agg.RecordUse(ctx, p.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, st.MonthlyUsage)
	assert.Equal(t, 2, st.WeeklyUsage, "Friday and Saturday share a week")
	assert.Equal(t, 2, st.TotalUsage)
}

func TestRecordUse_WindowsFollowLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	mem := store.NewMemory()
	clock := &fakeClock{t: time.Date(2024, 5, 14, 14, 0, 0, 0, time.UTC)} // 23:00 JST
	p := &models.Prompt{ID: uuid.New(), Title: "t", Content: "c"}
	require.NoError(t, mem.CreatePrompt(context.Background(), p))
	agg := NewAggregator(mem, WithClock(clock.Now), WithLocation(tokyo))

	_, err := agg.RecordUse(context.Background(), p.ID, nil)
	require.NoError(t, err)

	clock.Set(time.Date(2024, 5, 14, 16, 0, 0, 0, time.UTC)) // 01:00 JST next day
	st, err := agg.RecordUse(context.Background(), p.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, st.DailyUsage)
}

func TestRecordUse_UnknownPrompt(t *testing.T) {
	agg, mem, _, _ := setup(t, time.Now())

	_, err := agg.RecordUse(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, _ := mem.ListStatistics(context.Background(), nil)
	assert.Empty(t, all)
}

func TestRecordUse_ExistingEmptyRow(t *testing.T) {
	agg, _, _, p := setup(t, time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()
	require.NoError(t, agg.Init(ctx, p.ID))

	st, err := agg.RecordUse(ctx, p.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalUsage)
	assert.Equal(t, 1, st.DailyUsage)
}

func TestRecordOptimization_RunningAverage(t *testing.T) {
	agg, _, _, p := setup(t, time.Now())
	ctx := context.Background()

	st, err := agg.RecordOptimization(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.OptimizationCount)
	assert.InDelta(t, 0.1, st.AverageOptimizationImprovement, 1e-9)

	for i := 0; i < 4; i++ {
		st, err = agg.RecordOptimization(ctx, p.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, st.OptimizationCount)
	assert.InDelta(t, 0.1, st.AverageOptimizationImprovement, 1e-9)
}

func TestRecordOptimization_FromNonZeroAverage(t *testing.T) {
	agg, mem, _, p := setup(t, time.Now())
	ctx := context.Background()
	require.NoError(t, mem.CreateStatistics(ctx, &models.PromptStatistics{
		ID: uuid.New(), PromptID: p.ID, OptimizationCount: 3, AverageOptimizationImprovement: 0.5,
	}))

	st, err := agg.RecordOptimization(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, st.OptimizationCount)
	assert.InDelta(t, (0.5*3+0.1)/4, st.AverageOptimizationImprovement, 1e-9)
}

func TestRecordGeneration(t *testing.T) {
	agg, _, _, p := setup(t, time.Now())
	ctx := context.Background()

	st, err := agg.RecordGeneration(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.GenerationCount)
	assert.Zero(t, st.TotalUsage)

	st, err = agg.RecordGeneration(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.GenerationCount)
}

func TestRecordScore(t *testing.T) {
	agg, mem, _, p := setup(t, time.Now())
	ctx := context.Background()

	_, err := agg.RecordScore(ctx, p.ID, 8)
	require.NoError(t, err)
	st, err := agg.RecordScore(ctx, p.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, 2, st.ScoreCount)
	assert.InDelta(t, 7.0, st.AverageScore(), 1e-9)

	got, _ := mem.GetPrompt(ctx, p.ID)
	assert.InDelta(t, 7.0, got.AverageScore, 1e-9)

	_, err = agg.RecordScore(ctx, p.ID, 11)
	assert.ErrorIs(t, err, ErrInvalidScore)
}

func TestRecordUse_Concurrent(t *testing.T) {
	agg, mem, _, p := setup(t, time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := agg.RecordUse(ctx, p.ID, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, _ := mem.GetPrompt(ctx, p.ID)
	assert.Equal(t, 20, got.UsageCount)
	st, _ := mem.GetStatistics(ctx, p.ID)
	assert.Equal(t, 20, st.DailyUsage)
}

func TestWindows(t *testing.T) {
	wed := time.Date(2024, 5, 15, 13, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), DayStart(wed, time.UTC))
	assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), WeekStart(wed, time.UTC))
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), MonthStart(wed, time.UTC))

	mon := time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, mon, WeekStart(mon, time.UTC))

	sun := time.Date(2024, 5, 19, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, mon, WeekStart(sun, time.UTC))
}

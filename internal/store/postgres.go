package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/SonianW/MetaPrompter/internal/models"
)

// Conn is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is a Conn that can open transactions.
type DB interface {
	Conn
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

const uniqueViolation = "23505"

type Postgres struct {
	db DB
}

func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func txFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// conn returns the transaction carried by ctx, or the pool.
func (s *Postgres) conn(ctx context.Context) Conn {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

type scanner interface {
	Scan(dest ...any) error
}

const promptColumns = `id, title, content, description, category, tags, user_id, usage_count, average_score, is_public, created_at, updated_at`

func scanPrompt(row scanner) (*models.Prompt, error) {
	var p models.Prompt
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Description, &p.Category, &p.Tags, &p.UserID,
		&p.UsageCount, &p.AverageScore, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Postgres) CreatePrompt(ctx context.Context, p *models.Prompt) error {
	_, err := s.conn(ctx).Exec(ctx,
		`INSERT INTO prompts (`+promptColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.Title, p.Content, p.Description, p.Category, p.Tags, p.UserID,
		p.UsageCount, p.AverageScore, p.IsPublic, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert prompt: %w", err)
	}
	return nil
}

func (s *Postgres) GetPrompt(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	p, err := scanPrompt(s.conn(ctx).QueryRow(ctx,
		`SELECT `+promptColumns+` FROM prompts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get prompt: %w", err)
	}
	return p, nil
}

func (s *Postgres) UpdatePrompt(ctx context.Context, p *models.Prompt) error {
	updated, err := scanPrompt(s.conn(ctx).QueryRow(ctx,
		`UPDATE prompts SET title = $2, content = $3, description = $4, category = $5, tags = $6,
		 is_public = $7, updated_at = $8
		 WHERE id = $1 RETURNING `+promptColumns,
		p.ID, p.Title, p.Content, p.Description, p.Category, p.Tags, p.IsPublic, p.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update prompt: %w", err)
	}
	*p = *updated
	return nil
}

func (s *Postgres) SetAverageScore(ctx context.Context, id uuid.UUID, avg float64, at time.Time) (*models.Prompt, error) {
	p, err := scanPrompt(s.conn(ctx).QueryRow(ctx,
		`UPDATE prompts SET average_score = $2, updated_at = $3
		 WHERE id = $1 RETURNING `+promptColumns, id, avg, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("set average score: %w", err)
	}
	return p, nil
}

func (s *Postgres) IncrementUsage(ctx context.Context, id uuid.UUID, at time.Time) (*models.Prompt, error) {
	p, err := scanPrompt(s.conn(ctx).QueryRow(ctx,
		`UPDATE prompts SET usage_count = usage_count + 1, updated_at = $2
		 WHERE id = $1 RETURNING `+promptColumns, id, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("increment usage: %w", err)
	}
	return p, nil
}

func (s *Postgres) ListPrompts(ctx context.Context, f PromptFilter) ([]models.Prompt, error) {
	query := `SELECT ` + promptColumns + ` FROM prompts WHERE 1=1`
	var args []any
	argIdx := 1

	if f.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, *f.UserID)
		argIdx++
	}
	if f.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, f.Category)
		argIdx++
	}
	if f.PublicOnly {
		query += " AND is_public"
	}
	if f.Search != "" {
		query += fmt.Sprintf(" AND (title ILIKE $%d OR content ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+f.Search+"%")
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))

	return s.queryPrompts(ctx, query, args...)
}

func (s *Postgres) ListPopularPublic(ctx context.Context, limit int) ([]models.Prompt, error) {
	return s.queryPrompts(ctx,
		`SELECT p.id, p.title, p.content, p.description, p.category, p.tags, p.user_id,
		        p.usage_count, p.average_score, p.is_public, p.created_at, p.updated_at
		 FROM prompts p
		 LEFT JOIN prompt_statistics s ON s.prompt_id = p.id
		 WHERE p.is_public
		 ORDER BY COALESCE(s.weekly_usage, 0) DESC, p.created_at DESC
		 LIMIT $1`, clampLimit(limit))
}

func (s *Postgres) queryPrompts(ctx context.Context, query string, args ...any) ([]models.Prompt, error) {
	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}
	defer rows.Close()

	var out []models.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Postgres) AppendHistory(ctx context.Context, e *models.HistoryEntry) error {
	_, err := s.conn(ctx).Exec(ctx,
		`INSERT INTO prompt_history (id, prompt_id, content, operation_type, user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.PromptID, e.Content, string(e.OperationType), e.UserID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (s *Postgres) ListHistory(ctx context.Context, f HistoryFilter) ([]models.HistoryEntry, error) {
	query := `SELECT id, prompt_id, content, operation_type, user_id, created_at FROM prompt_history WHERE 1=1`
	var args []any
	argIdx := 1

	if f.PromptID != nil {
		query += fmt.Sprintf(" AND prompt_id = $%d", argIdx)
		args = append(args, *f.PromptID)
		argIdx++
	}
	if f.Operation != "" {
		query += fmt.Sprintf(" AND operation_type = $%d", argIdx)
		args = append(args, string(f.Operation))
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		var op string
		if err := rows.Scan(&e.ID, &e.PromptID, &e.Content, &op, &e.UserID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.OperationType = models.OperationType(op)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) CountHistorySince(ctx context.Context, promptID uuid.UUID, op models.OperationType, since time.Time) (int, error) {
	var n int
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM prompt_history
		 WHERE prompt_id = $1 AND operation_type = $2 AND created_at >= $3`,
		promptID, string(op), since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

const statsColumns = `id, prompt_id, total_usage, daily_usage, weekly_usage, monthly_usage, total_score, score_count,
	optimization_count, average_optimization_improvement, generation_count, updated_at`

func scanStatistics(row scanner) (*models.PromptStatistics, error) {
	var st models.PromptStatistics
	err := row.Scan(&st.ID, &st.PromptID, &st.TotalUsage, &st.DailyUsage, &st.WeeklyUsage, &st.MonthlyUsage,
		&st.TotalScore, &st.ScoreCount, &st.OptimizationCount, &st.AverageOptimizationImprovement,
		&st.GenerationCount, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Postgres) GetStatistics(ctx context.Context, promptID uuid.UUID) (*models.PromptStatistics, error) {
	st, err := scanStatistics(s.conn(ctx).QueryRow(ctx,
		`SELECT `+statsColumns+` FROM prompt_statistics WHERE prompt_id = $1`, promptID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get statistics: %w", err)
	}
	return st, nil
}

func (s *Postgres) CreateStatistics(ctx context.Context, st *models.PromptStatistics) error {
	// ON CONFLICT keeps an enclosing transaction usable when another writer
	// created the row first.
	tag, err := s.conn(ctx).Exec(ctx,
		`INSERT INTO prompt_statistics (`+statsColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (prompt_id) DO NOTHING`,
		st.ID, st.PromptID, st.TotalUsage, st.DailyUsage, st.WeeklyUsage, st.MonthlyUsage,
		st.TotalScore, st.ScoreCount, st.OptimizationCount, st.AverageOptimizationImprovement,
		st.GenerationCount, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert statistics: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Postgres) UpdateStatistics(ctx context.Context, st *models.PromptStatistics) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE prompt_statistics SET total_usage = $2, daily_usage = $3, weekly_usage = $4, monthly_usage = $5,
		 total_score = $6, score_count = $7, optimization_count = $8, average_optimization_improvement = $9,
		 generation_count = $10, updated_at = $11
		 WHERE prompt_id = $1`,
		st.PromptID, st.TotalUsage, st.DailyUsage, st.WeeklyUsage, st.MonthlyUsage,
		st.TotalScore, st.ScoreCount, st.OptimizationCount, st.AverageOptimizationImprovement,
		st.GenerationCount, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update statistics: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ListStatistics(ctx context.Context, promptID *uuid.UUID) ([]models.PromptStatistics, error) {
	query := `SELECT ` + statsColumns + ` FROM prompt_statistics`
	var args []any
	if promptID != nil {
		query += " WHERE prompt_id = $1"
		args = append(args, *promptID)
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query statistics: %w", err)
	}
	defer rows.Close()

	var out []models.PromptStatistics
	for rows.Next() {
		st, err := scanStatistics(rows)
		if err != nil {
			return nil, fmt.Errorf("scan statistics: %w", err)
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

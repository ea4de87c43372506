// Package postgres provides Postgres-backed persistence for the problem catalog.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codecatalog/harvester/internal/catalog"
)

// ProblemStoreConfig controls the Postgres connection pool.
type ProblemStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ProblemStore persists problems and tags in Postgres.
type ProblemStore struct {
	pool pgxPool
}

// NewProblemStore creates a Postgres-backed ProblemStore using the provided config.
func NewProblemStore(ctx context.Context, cfg ProblemStoreConfig) (*ProblemStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ProblemStore{pool: pool}, nil
}

// NewProblemStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewProblemStoreWithPool(pool pgxPool) (*ProblemStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ProblemStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ProblemStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const upsertProblemSQL = `
INSERT INTO problems (
	problem_id,
	title,
	slug,
	difficulty,
	is_premium,
	content,
	acceptance_rate,
	submission_count,
	accepted_count,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()
)
ON CONFLICT (problem_id) DO UPDATE SET
	title = EXCLUDED.title,
	slug = EXCLUDED.slug,
	difficulty = EXCLUDED.difficulty,
	is_premium = EXCLUDED.is_premium,
	content = EXCLUDED.content,
	acceptance_rate = EXCLUDED.acceptance_rate,
	submission_count = EXCLUDED.submission_count,
	accepted_count = EXCLUDED.accepted_count,
	updated_at = NOW()`

// Tag names are set at creation only; later runs never overwrite them.
// Concurrent creators race to the unique slug and the loser no-ops.
const insertTagSQL = `
INSERT INTO tags (slug, name) VALUES ($1, $2)
ON CONFLICT (slug) DO NOTHING`

const deleteProblemTagsSQL = `DELETE FROM problem_tags WHERE problem_id = $1`

const insertProblemTagSQL = `
INSERT INTO problem_tags (problem_id, tag_slug, position) VALUES ($1, $2, $3)`

// UpsertProblem writes the problem and its tags inside one transaction.
// The problem row is fully replaced by problem_id; tags are get-or-create by
// slug; the problem's tag links are replaced to match the source order.
// All writes for one problem are all-or-nothing.
func (s *ProblemStore) UpsertProblem(ctx context.Context, problem catalog.Problem, tags []catalog.Tag) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("problem store is not configured")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, upsertProblemSQL,
		problem.ProblemID,
		problem.Title,
		problem.Slug,
		string(problem.Difficulty),
		problem.IsPremium,
		problem.Content,
		problem.AcceptanceRate,
		problem.SubmissionCount,
		problem.AcceptedCount,
	); err != nil {
		return fmt.Errorf("upsert problem %d: %w", problem.ProblemID, err)
	}

	for _, tag := range tags {
		if _, err := tx.Exec(ctx, insertTagSQL, tag.Slug, tag.Name); err != nil {
			return fmt.Errorf("get-or-create tag %q: %w", tag.Slug, err)
		}
	}

	if _, err := tx.Exec(ctx, deleteProblemTagsSQL, problem.ProblemID); err != nil {
		return fmt.Errorf("clear tag links for %d: %w", problem.ProblemID, err)
	}
	for i, slug := range problem.TagSlugs {
		if _, err := tx.Exec(ctx, insertProblemTagSQL, problem.ProblemID, slug, i); err != nil {
			return fmt.Errorf("link tag %q to %d: %w", slug, problem.ProblemID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert for %d: %w", problem.ProblemID, err)
	}
	return nil
}

const selectProblemSQL = `
SELECT
	p.problem_id,
	p.title,
	p.slug,
	p.difficulty,
	p.is_premium,
	p.content,
	p.acceptance_rate,
	p.submission_count,
	p.accepted_count,
	COALESCE(
		ARRAY_AGG(pt.tag_slug ORDER BY pt.position) FILTER (WHERE pt.tag_slug IS NOT NULL),
		'{}'
	) AS tag_slugs
FROM problems p
LEFT JOIN problem_tags pt ON pt.problem_id = p.problem_id`

const problemGroupBySQL = `
GROUP BY p.problem_id, p.title, p.slug, p.difficulty, p.is_premium,
	p.content, p.acceptance_rate, p.submission_count, p.accepted_count`

// GetProblem returns one problem by slug, or catalog.ErrNotFound.
func (s *ProblemStore) GetProblem(ctx context.Context, slug string) (catalog.Problem, error) {
	query := selectProblemSQL + `
WHERE p.slug = $1` + problemGroupBySQL
	row := s.pool.QueryRow(ctx, query, slug)
	problem, err := scanProblem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Problem{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Problem{}, fmt.Errorf("get problem %q: %w", slug, err)
	}
	return problem, nil
}

// ListProblems returns a page of problems ordered by problem_id.
func (s *ProblemStore) ListProblems(ctx context.Context, limit, offset int) ([]catalog.Problem, error) {
	query := selectProblemSQL + problemGroupBySQL + `
ORDER BY p.problem_id
LIMIT $1 OFFSET $2`
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	defer rows.Close()

	var problems []catalog.Problem
	for rows.Next() {
		problem, err := scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		problems = append(problems, problem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate problems: %w", err)
	}
	return problems, nil
}

// ListTags returns every known tag ordered by slug.
func (s *ProblemStore) ListTags(ctx context.Context) ([]catalog.Tag, error) {
	rows, err := s.pool.Query(ctx, `SELECT slug, name FROM tags ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []catalog.Tag
	for rows.Next() {
		var tag catalog.Tag
		if err := rows.Scan(&tag.Slug, &tag.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

func scanProblem(row pgx.Row) (catalog.Problem, error) {
	var p catalog.Problem
	var difficulty string
	if err := row.Scan(
		&p.ProblemID,
		&p.Title,
		&p.Slug,
		&difficulty,
		&p.IsPremium,
		&p.Content,
		&p.AcceptanceRate,
		&p.SubmissionCount,
		&p.AcceptedCount,
		&p.TagSlugs,
	); err != nil {
		return catalog.Problem{}, err
	}
	p.Difficulty = catalog.Difficulty(difficulty)
	return p, nil
}

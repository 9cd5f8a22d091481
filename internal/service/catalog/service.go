package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/pearcircuitmike/replicate-codex/internal/models"
	"github.com/pearcircuitmike/replicate-codex/internal/redis"

	"go.uber.org/zap"
)

const defaultPageSize = 20

// Service reads the paper/model catalog and keeps view counters in redis.
// Counter reads fail open: a missing cache means a count of zero, never an
// error surfaced to the page.
type Service struct {
	db    *sql.DB
	cache *redis.Client
	log   *zap.SugaredLogger
}

func NewService(db *sql.DB, cache *redis.Client, log *zap.SugaredLogger) *Service {
	return &Service{db: db, cache: cache, log: log}
}

// ListPapers returns a page of papers ordered by publication date.
func (s *Service) ListPapers(ctx context.Context, limit, offset int) ([]models.Paper, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, abstract, authors, url, slug, published_at FROM papers ORDER BY published_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	defer rows.Close()

	var papers []models.Paper
	for rows.Next() {
		var p models.Paper
		if err := rows.Scan(&p.ID, &p.Title, &p.Abstract, &p.Authors, &p.URL, &p.Slug, &p.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// GetPaper fetches a single paper by id.
func (s *Service) GetPaper(ctx context.Context, id string) (*models.Paper, error) {
	var p models.Paper
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, abstract, authors, url, slug, published_at FROM papers WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.Abstract, &p.Authors, &p.URL, &p.Slug, &p.PublishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get paper: %w", err)
	}
	return &p, nil
}

// ListModels returns a page of models ordered by creation date.
func (s *Service) ListModels(ctx context.Context, limit, offset int) ([]models.Model, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, creator, url, slug, created_at FROM models ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var out []models.Model
	for rows.Next() {
		var m models.Model
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.Creator, &m.URL, &m.Slug, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetModel fetches a single model by id.
func (s *Service) GetModel(ctx context.Context, id string) (*models.Model, error) {
	var m models.Model
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, creator, url, slug, created_at FROM models WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.Description, &m.Creator, &m.URL, &m.Slug, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get model: %w", err)
	}
	return &m, nil
}

// RecordView bumps the view counter for a resource. Best effort.
func (s *Service) RecordView(ctx context.Context, resourceType, id string) {
	if _, err := s.cache.Incr(ctx, viewKey(resourceType, id)); err != nil {
		s.log.Debugw("record view failed", "resource", resourceType, "id", id, "error", err)
	}
}

// ViewCount returns the current view counter, degrading to zero when the
// cache is unreachable.
func (s *Service) ViewCount(ctx context.Context, resourceType, id string) int64 {
	raw, err := s.cache.Get(ctx, viewKey(resourceType, id))
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.Debugw("view count lookup failed", "resource", resourceType, "id", id, "error", err)
		}
		return 0
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return count
}

func viewKey(resourceType, id string) string {
	return "views:" + resourceType + ":" + id
}

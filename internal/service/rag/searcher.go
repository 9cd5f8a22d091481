package rag

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pearcircuitmike/replicate-codex/internal/models"

	"github.com/pgvector/pgvector-go"
)

// PGSearcher runs pgvector cosine-similarity queries. Postgres only; the
// sqlite test database never reaches this code path.
type PGSearcher struct {
	db *sql.DB
}

func NewPGSearcher(db *sql.DB) *PGSearcher {
	return &PGSearcher{db: db}
}

func (s *PGSearcher) SimilarPapers(ctx context.Context, vec []float32, opts SearchOptions) ([]models.Paper, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, abstract, authors, url, slug, published_at,
		       1 - (embedding <=> $1) AS similarity
		FROM papers
		WHERE embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(vec), opts.Threshold, opts.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search papers: %w", err)
	}
	defer rows.Close()

	var out []models.Paper
	for rows.Next() {
		var p models.Paper
		if err := rows.Scan(&p.ID, &p.Title, &p.Abstract, &p.Authors, &p.URL, &p.Slug, &p.PublishedAt, &p.Similarity); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGSearcher) SimilarModels(ctx context.Context, vec []float32, opts SearchOptions) ([]models.Model, error) {
	query := `
		SELECT id, name, description, creator, url, slug, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM models
		WHERE embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) >= $2`
	args := []any{pgvector.NewVector(vec), opts.Threshold}
	if !opts.Since.IsZero() {
		query += ` AND created_at >= $3
		ORDER BY embedding <=> $1
		LIMIT $4`
		args = append(args, opts.Since, opts.Limit)
	} else {
		query += `
		ORDER BY embedding <=> $1
		LIMIT $3`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search models: %w", err)
	}
	defer rows.Close()

	var out []models.Model
	for rows.Next() {
		var m models.Model
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.Creator, &m.URL, &m.Slug, &m.CreatedAt, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

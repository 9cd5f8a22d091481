package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pearcircuitmike/replicate-codex/internal/models"

	"github.com/google/uuid"
)

// ErrNotOwner is returned when a user tries to change a record that
// belongs to someone else.
var ErrNotOwner = errors.New("resource belongs to another user")

// Service covers the user's personal library: highlights, notes on papers,
// and bookmark folders.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateHighlight stores a quote selection on a paper.
func (s *Service) CreateHighlight(ctx context.Context, h models.Highlight) (*models.Highlight, error) {
	if h.UserID == "" || h.PaperID == "" {
		return nil, errors.New("user_id and paper_id are required")
	}
	if strings.TrimSpace(h.Quote) == "" {
		return nil, errors.New("quote cannot be empty")
	}
	h.ID = uuid.NewString()
	h.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO highlights (id, user_id, paper_id, quote, prefix, suffix, text_offset, context, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		h.ID, h.UserID, h.PaperID, h.Quote, h.Prefix, h.Suffix, h.Offset, h.Context, h.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert highlight: %w", err)
	}
	return &h, nil
}

// ListHighlights returns every highlight on a paper, oldest first.
func (s *Service) ListHighlights(ctx context.Context, paperID string) ([]models.Highlight, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, paper_id, quote, prefix, suffix, text_offset, context, created_at
		 FROM highlights WHERE paper_id = $1 ORDER BY created_at ASC`,
		paperID,
	)
	if err != nil {
		return nil, fmt.Errorf("list highlights: %w", err)
	}
	defer rows.Close()

	var out []models.Highlight
	for rows.Next() {
		var h models.Highlight
		if err := rows.Scan(&h.ID, &h.UserID, &h.PaperID, &h.Quote, &h.Prefix, &h.Suffix, &h.Offset, &h.Context, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan highlight: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// DeleteHighlight removes a highlight. Only the owner may delete it.
func (s *Service) DeleteHighlight(ctx context.Context, userID, highlightID string) error {
	var ownerID string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM highlights WHERE id = $1`, highlightID,
	).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lookup highlight: %w", err)
	}
	if ownerID != userID {
		return ErrNotOwner
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM highlights WHERE id = $1`, highlightID); err != nil {
		return fmt.Errorf("delete highlight: %w", err)
	}
	return nil
}

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

// ErrParentMismatch is returned when a reply references a note on a
// different paper.
var ErrParentMismatch = errors.New("parent note belongs to a different paper")

// CreateNote stores a top-level note or a reply. A reply's parent must be a
// note on the same paper.
func (s *Service) CreateNote(ctx context.Context, n models.Note) (*models.Note, error) {
	if n.UserID == "" || n.PaperID == "" {
		return nil, errors.New("user_id and paper_id are required")
	}
	if strings.TrimSpace(n.Text) == "" {
		return nil, errors.New("note text cannot be empty")
	}
	if n.ParentID != nil {
		var parentPaper string
		err := s.db.QueryRowContext(ctx,
			`SELECT paper_id FROM notes WHERE id = $1`, *n.ParentID,
		).Scan(&parentPaper)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("parent note %s: %w", *n.ParentID, err)
			}
			return nil, fmt.Errorf("lookup parent note: %w", err)
		}
		if parentPaper != n.PaperID {
			return nil, ErrParentMismatch
		}
	}
	n.ID = uuid.NewString()
	n.IsHidden = false
	n.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, paper_id, user_id, parent_id, body, is_hidden, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.PaperID, n.UserID, n.ParentID, n.Text, n.IsHidden, n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return &n, nil
}

// ListNotes returns the visible notes on a paper, oldest first. Hidden
// notes are skipped; their replies still come back so threads keep shape.
func (s *Service) ListNotes(ctx context.Context, paperID string) ([]models.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, paper_id, user_id, parent_id, body, is_hidden, created_at
		 FROM notes WHERE paper_id = $1 AND is_hidden = FALSE ORDER BY created_at ASC`,
		paperID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.PaperID, &n.UserID, &n.ParentID, &n.Text, &n.IsHidden, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UpdateNote replaces the body of the user's own note.
func (s *Service) UpdateNote(ctx context.Context, userID, noteID, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("note text cannot be empty")
	}
	ownerID, err := s.noteOwner(ctx, noteID)
	if err != nil {
		return err
	}
	if ownerID != userID {
		return ErrNotOwner
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE notes SET body = $1 WHERE id = $2`, text, noteID); err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	return nil
}

// HideNote soft-deletes a note. The row stays so replies keep their parent;
// readers just stop seeing the body.
func (s *Service) HideNote(ctx context.Context, userID, noteID string) error {
	ownerID, err := s.noteOwner(ctx, noteID)
	if err != nil {
		return err
	}
	if ownerID != userID {
		return ErrNotOwner
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE notes SET is_hidden = TRUE WHERE id = $1`, noteID); err != nil {
		return fmt.Errorf("hide note: %w", err)
	}
	return nil
}

func (s *Service) noteOwner(ctx context.Context, noteID string) (string, error) {
	var ownerID string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM notes WHERE id = $1`, noteID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("lookup note: %w", err)
	}
	return ownerID, nil
}

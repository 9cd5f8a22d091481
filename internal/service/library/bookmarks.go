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

// ErrDefaultFolder is returned on attempts to delete the Uncategorized
// folder.
var ErrDefaultFolder = errors.New("the default folder cannot be deleted")

// EnsureUncategorizedFolder creates the user's default folder if it does
// not exist yet and returns it. Safe to call repeatedly.
func (s *Service) EnsureUncategorizedFolder(ctx context.Context, userID string) (*models.Folder, error) {
	var f models.Folder
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, color, position, is_default, created_at
		 FROM folders WHERE user_id = $1 AND is_default = TRUE`,
		userID,
	).Scan(&f.ID, &f.UserID, &f.Name, &f.Color, &f.Position, &f.IsDefault, &f.CreatedAt)
	if err == nil {
		return &f, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup default folder: %w", err)
	}

	f = models.Folder{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      models.UncategorizedFolderName,
		IsDefault: true,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO folders (id, user_id, name, color, position, is_default, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.UserID, f.Name, f.Color, f.Position, f.IsDefault, f.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create default folder: %w", err)
	}
	return &f, nil
}

// CreateFolder adds a user folder. The reserved default name is refused so
// there is only ever one Uncategorized folder per user.
func (s *Service) CreateFolder(ctx context.Context, userID, name, color string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("folder name cannot be empty")
	}
	if strings.EqualFold(name, models.UncategorizedFolderName) {
		return nil, fmt.Errorf("%q is a reserved folder name", models.UncategorizedFolderName)
	}
	var position int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM folders WHERE user_id = $1`, userID,
	).Scan(&position); err != nil {
		return nil, fmt.Errorf("next folder position: %w", err)
	}
	f := models.Folder{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Color:     color,
		Position:  position,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO folders (id, user_id, name, color, position, is_default, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.UserID, f.Name, f.Color, f.Position, f.IsDefault, f.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	return &f, nil
}

// ListFolders returns the user's folders in display order.
func (s *Service) ListFolders(ctx context.Context, userID string) ([]models.Folder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, color, position, is_default, created_at
		 FROM folders WHERE user_id = $1 ORDER BY position ASC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var out []models.Folder
	for rows.Next() {
		var f models.Folder
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &f.Color, &f.Position, &f.IsDefault, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFolder removes a folder and moves its bookmarks into the user's
// default folder. The default folder itself is not deletable.
func (s *Service) DeleteFolder(ctx context.Context, userID, folderID string) error {
	folder, err := s.folderForUser(ctx, userID, folderID)
	if err != nil {
		return err
	}
	if folder.IsDefault {
		return ErrDefaultFolder
	}
	def, err := s.EnsureUncategorizedFolder(ctx, userID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`UPDATE bookmarks SET folder_id = $1 WHERE folder_id = $2`, def.ID, folderID,
	); err != nil {
		return fmt.Errorf("reassign bookmarks: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, folderID); err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete folder: %w", err)
	}
	return nil
}

// AddBookmark saves a catalog resource into one of the user's folders. An
// empty folder id targets the default folder.
func (s *Service) AddBookmark(ctx context.Context, userID, folderID, resourceID, resourceType string) (*models.Bookmark, error) {
	if resourceType != models.ResourcePaper && resourceType != models.ResourceModel {
		return nil, fmt.Errorf("unknown resource type %q", resourceType)
	}
	if folderID == "" {
		def, err := s.EnsureUncategorizedFolder(ctx, userID)
		if err != nil {
			return nil, err
		}
		folderID = def.ID
	} else if _, err := s.folderForUser(ctx, userID, folderID); err != nil {
		return nil, err
	}

	b := models.Bookmark{
		ID:           uuid.NewString(),
		UserID:       userID,
		FolderID:     folderID,
		ResourceID:   resourceID,
		ResourceType: resourceType,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookmarks (id, user_id, folder_id, resource_id, resource_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.UserID, b.FolderID, b.ResourceID, b.ResourceType, b.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert bookmark: %w", err)
	}
	return &b, nil
}

// ListBookmarks returns the bookmarks in one of the user's folders.
func (s *Service) ListBookmarks(ctx context.Context, userID, folderID string) ([]models.Bookmark, error) {
	if _, err := s.folderForUser(ctx, userID, folderID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, folder_id, resource_id, resource_type, created_at
		 FROM bookmarks WHERE folder_id = $1 ORDER BY created_at DESC`,
		folderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	var out []models.Bookmark
	for rows.Next() {
		var b models.Bookmark
		if err := rows.Scan(&b.ID, &b.UserID, &b.FolderID, &b.ResourceID, &b.ResourceType, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// MoveBookmark relocates the user's bookmark into another of their folders.
func (s *Service) MoveBookmark(ctx context.Context, userID, bookmarkID, folderID string) error {
	if _, err := s.folderForUser(ctx, userID, folderID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookmarks SET folder_id = $1 WHERE id = $2 AND user_id = $3`,
		folderID, bookmarkID, userID,
	)
	if err != nil {
		return fmt.Errorf("move bookmark: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bookmark rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RemoveBookmark deletes the user's bookmark.
func (s *Service) RemoveBookmark(ctx context.Context, userID, bookmarkID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE id = $1 AND user_id = $2`, bookmarkID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove bookmark: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bookmark rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Service) folderForUser(ctx context.Context, userID, folderID string) (*models.Folder, error) {
	var f models.Folder
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, color, position, is_default, created_at
		 FROM folders WHERE id = $1`,
		folderID,
	).Scan(&f.ID, &f.UserID, &f.Name, &f.Color, &f.Position, &f.IsDefault, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup folder: %w", err)
	}
	if f.UserID != userID {
		return nil, ErrNotOwner
	}
	return &f, nil
}

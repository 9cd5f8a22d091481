package library

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/pearcircuitmike/replicate-codex/internal/config"
	"github.com/pearcircuitmike/replicate-codex/internal/models"
	"github.com/pearcircuitmike/replicate-codex/internal/storage"

	"github.com/google/uuid"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *sql.DB) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO profiles (id, username, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		id, "user-"+id[:8], "hash", time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func seedPaper(t *testing.T, db *sql.DB) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO papers (id, title, published_at) VALUES ($1, $2, $3)`,
		id, "Paper "+id[:8], time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("seed paper: %v", err)
	}
	return id
}

func TestHighlightLifecycle(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	userID := seedUser(t, db)
	paperID := seedPaper(t, db)

	created, err := svc.CreateHighlight(ctx, models.Highlight{
		UserID:  userID,
		PaperID: paperID,
		Quote:   "a striking result",
		Offset:  42,
	})
	if err != nil {
		t.Fatalf("create highlight: %v", err)
	}

	highlights, err := svc.ListHighlights(ctx, paperID)
	if err != nil {
		t.Fatalf("list highlights: %v", err)
	}
	if len(highlights) != 1 || highlights[0].ID != created.ID {
		t.Fatalf("unexpected highlights: %+v", highlights)
	}
	if highlights[0].Offset != 42 {
		t.Errorf("offset = %d", highlights[0].Offset)
	}

	if err := svc.DeleteHighlight(ctx, userID, created.ID); err != nil {
		t.Fatalf("delete highlight: %v", err)
	}
	highlights, err = svc.ListHighlights(ctx, paperID)
	if err != nil {
		t.Fatalf("list highlights: %v", err)
	}
	if len(highlights) != 0 {
		t.Fatal("highlight not deleted")
	}
}

func TestDeleteHighlightNotOwner(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	owner := seedUser(t, db)
	other := seedUser(t, db)
	paperID := seedPaper(t, db)

	created, err := svc.CreateHighlight(ctx, models.Highlight{UserID: owner, PaperID: paperID, Quote: "q"})
	if err != nil {
		t.Fatalf("create highlight: %v", err)
	}
	if err := svc.DeleteHighlight(ctx, other, created.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestNoteRepliesAndHiding(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	author := seedUser(t, db)
	replier := seedUser(t, db)
	paperID := seedPaper(t, db)

	parent, err := svc.CreateNote(ctx, models.Note{UserID: author, PaperID: paperID, Text: "interesting"})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	reply, err := svc.CreateNote(ctx, models.Note{UserID: replier, PaperID: paperID, ParentID: &parent.ID, Text: "agreed"})
	if err != nil {
		t.Fatalf("create reply: %v", err)
	}

	if err := svc.HideNote(ctx, author, parent.ID); err != nil {
		t.Fatalf("hide note: %v", err)
	}

	notes, err := svc.ListNotes(ctx, paperID)
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("got %d visible notes, want the reply only", len(notes))
	}
	if notes[0].ID != reply.ID {
		t.Errorf("visible note = %s, want reply %s", notes[0].ID, reply.ID)
	}
	if notes[0].ParentID == nil || *notes[0].ParentID != parent.ID {
		t.Error("reply lost its parent reference")
	}
}

func TestCreateNoteParentOnOtherPaper(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	userID := seedUser(t, db)
	paperA := seedPaper(t, db)
	paperB := seedPaper(t, db)

	parent, err := svc.CreateNote(ctx, models.Note{UserID: userID, PaperID: paperA, Text: "on A"})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	_, err = svc.CreateNote(ctx, models.Note{UserID: userID, PaperID: paperB, ParentID: &parent.ID, Text: "reply on B"})
	if !errors.Is(err, ErrParentMismatch) {
		t.Fatalf("expected ErrParentMismatch, got %v", err)
	}
}

func TestUpdateNoteOwnerOnly(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	owner := seedUser(t, db)
	other := seedUser(t, db)
	paperID := seedPaper(t, db)

	note, err := svc.CreateNote(ctx, models.Note{UserID: owner, PaperID: paperID, Text: "v1"})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if err := svc.UpdateNote(ctx, other, note.ID, "hacked"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := svc.UpdateNote(ctx, owner, note.ID, "v2"); err != nil {
		t.Fatalf("owner update: %v", err)
	}
}

func TestEnsureUncategorizedFolderIdempotent(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	userID := seedUser(t, db)

	first, err := svc.EnsureUncategorizedFolder(ctx, userID)
	if err != nil {
		t.Fatalf("ensure default folder: %v", err)
	}
	second, err := svc.EnsureUncategorizedFolder(ctx, userID)
	if err != nil {
		t.Fatalf("ensure default folder again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("default folder duplicated")
	}
	if first.Name != models.UncategorizedFolderName || !first.IsDefault {
		t.Errorf("unexpected default folder: %+v", first)
	}
}

func TestDeleteDefaultFolderRefused(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	userID := seedUser(t, db)

	def, err := svc.EnsureUncategorizedFolder(ctx, userID)
	if err != nil {
		t.Fatalf("ensure default folder: %v", err)
	}
	if err := svc.DeleteFolder(ctx, userID, def.ID); !errors.Is(err, ErrDefaultFolder) {
		t.Fatalf("expected ErrDefaultFolder, got %v", err)
	}
}

func TestCreateFolderReservedName(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	userID := seedUser(t, db)

	if _, err := svc.CreateFolder(context.Background(), userID, "uncategorized", ""); err == nil {
		t.Fatal("reserved name accepted")
	}
}

func TestDeleteFolderReassignsBookmarks(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	userID := seedUser(t, db)
	paperID := seedPaper(t, db)

	def, err := svc.EnsureUncategorizedFolder(ctx, userID)
	if err != nil {
		t.Fatalf("ensure default folder: %v", err)
	}
	reading, err := svc.CreateFolder(ctx, userID, "Reading list", "blue")
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.AddBookmark(ctx, userID, reading.ID, paperID, models.ResourcePaper); err != nil {
			t.Fatalf("add bookmark %d: %v", i, err)
		}
	}

	if err := svc.DeleteFolder(ctx, userID, reading.ID); err != nil {
		t.Fatalf("delete folder: %v", err)
	}

	moved, err := svc.ListBookmarks(ctx, userID, def.ID)
	if err != nil {
		t.Fatalf("list bookmarks: %v", err)
	}
	if len(moved) != 3 {
		t.Fatalf("%d bookmarks landed in default folder, want 3", len(moved))
	}
	folders, err := svc.ListFolders(ctx, userID)
	if err != nil {
		t.Fatalf("list folders: %v", err)
	}
	if len(folders) != 1 {
		t.Fatalf("deleted folder still listed: %+v", folders)
	}
}

func TestAddBookmarkDefaultsToUncategorized(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	userID := seedUser(t, db)
	paperID := seedPaper(t, db)

	bookmark, err := svc.AddBookmark(ctx, userID, "", paperID, models.ResourcePaper)
	if err != nil {
		t.Fatalf("add bookmark: %v", err)
	}
	def, err := svc.EnsureUncategorizedFolder(ctx, userID)
	if err != nil {
		t.Fatalf("ensure default folder: %v", err)
	}
	if bookmark.FolderID != def.ID {
		t.Fatal("bookmark did not land in the default folder")
	}
}

func TestBookmarkForeignFolderRejected(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	owner := seedUser(t, db)
	other := seedUser(t, db)
	paperID := seedPaper(t, db)

	folder, err := svc.CreateFolder(ctx, owner, "Mine", "")
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	if _, err := svc.AddBookmark(ctx, other, folder.ID, paperID, models.ResourcePaper); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestMoveBookmark(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	userID := seedUser(t, db)
	paperID := seedPaper(t, db)

	a, err := svc.CreateFolder(ctx, userID, "A", "")
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	b, err := svc.CreateFolder(ctx, userID, "B", "")
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	bookmark, err := svc.AddBookmark(ctx, userID, a.ID, paperID, models.ResourcePaper)
	if err != nil {
		t.Fatalf("add bookmark: %v", err)
	}
	if err := svc.MoveBookmark(ctx, userID, bookmark.ID, b.ID); err != nil {
		t.Fatalf("move bookmark: %v", err)
	}
	inB, err := svc.ListBookmarks(ctx, userID, b.ID)
	if err != nil {
		t.Fatalf("list bookmarks: %v", err)
	}
	if len(inB) != 1 {
		t.Fatalf("bookmark not moved, folder B has %d", len(inB))
	}
}

package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/pearcircuitmike/replicate-codex/internal/config"
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

func TestIssueAndValidateToken(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, time.Hour)
	ctx := context.Background()
	userID := seedUser(t, db)

	token, err := svc.IssueToken(ctx, userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("token length = %d", len(token))
	}

	got, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if got != userID {
		t.Fatalf("validated user = %s, want %s", got, userID)
	}
}

func TestValidateUnknownToken(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, time.Hour)

	if _, err := svc.ValidateToken(context.Background(), "bogus"); err == nil {
		t.Fatal("unknown token accepted")
	}
}

func TestValidateExpiredToken(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, time.Hour)
	ctx := context.Background()
	userID := seedUser(t, db)

	token, err := svc.IssueToken(ctx, userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := db.Exec(`UPDATE user_tokens SET expires_at = $1 WHERE token = $2`,
		time.Now().UTC().Add(-time.Minute), token); err != nil {
		t.Fatalf("backdate token: %v", err)
	}

	if _, err := svc.ValidateToken(ctx, token); err == nil {
		t.Fatal("expired token accepted")
	}

	// Expired tokens are reaped on sight.
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM user_tokens WHERE token = $1`, token).Scan(&count); err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if count != 0 {
		t.Fatal("expired token row not removed")
	}
}

func TestRevokeToken(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, time.Hour)
	ctx := context.Background()
	userID := seedUser(t, db)

	token, err := svc.IssueToken(ctx, userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if err := svc.RevokeToken(ctx, token); err != nil {
		t.Fatalf("revoke token: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, token); err == nil {
		t.Fatal("revoked token accepted")
	}
}

func TestRevokeUserTokens(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, time.Hour)
	ctx := context.Background()
	userID := seedUser(t, db)

	first, err := svc.IssueToken(ctx, userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	second, err := svc.IssueToken(ctx, userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if err := svc.RevokeUserTokens(ctx, userID); err != nil {
		t.Fatalf("revoke user tokens: %v", err)
	}
	for _, token := range []string{first, second} {
		if _, err := svc.ValidateToken(ctx, token); err == nil {
			t.Fatal("revoked token accepted")
		}
	}
}

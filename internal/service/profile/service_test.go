package profile

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/pearcircuitmike/replicate-codex/internal/config"
	"github.com/pearcircuitmike/replicate-codex/internal/models"
	"github.com/pearcircuitmike/replicate-codex/internal/storage"
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

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	created, err := svc.Register(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.SubscriptionStatus != models.SubscriptionNone {
		t.Errorf("new account subscription = %q", created.SubscriptionStatus)
	}
	if created.PaperDigest != DigestWeekly || created.ModelDigest != DigestWeekly {
		t.Errorf("digest defaults = %q/%q", created.PaperDigest, created.ModelDigest)
	}

	got, err := svc.Authenticate(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != created.ID {
		t.Fatal("authenticated as a different account")
	}

	if _, err := svc.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	if _, err := svc.Register(ctx, "bob", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "bob", "other"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestUpdateDigestPrefs(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	p, err := svc.Register(ctx, "carol", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.UpdateDigestPrefs(ctx, p.ID, DigestDaily, DigestNone); err != nil {
		t.Fatalf("update digests: %v", err)
	}
	got, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PaperDigest != DigestDaily || got.ModelDigest != DigestNone {
		t.Errorf("digests = %q/%q", got.PaperDigest, got.ModelDigest)
	}

	if err := svc.UpdateDigestPrefs(ctx, p.ID, "hourly", DigestNone); !errors.Is(err, ErrBadCadence) {
		t.Fatalf("expected ErrBadCadence, got %v", err)
	}
}

func TestSetSubscriptionAndLookupByCustomer(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	p, err := svc.Register(ctx, "dave", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.SetSubscription(ctx, p.ID, models.SubscriptionActive, "cus_123"); err != nil {
		t.Fatalf("set subscription: %v", err)
	}

	got, err := svc.ByStripeCustomer(ctx, "cus_123")
	if err != nil {
		t.Fatalf("by customer: %v", err)
	}
	if got.ID != p.ID || got.SubscriptionStatus != models.SubscriptionActive {
		t.Fatalf("unexpected profile: %+v", got)
	}

	// A status-only update must not clear the stored customer id.
	if err := svc.SetSubscription(ctx, p.ID, models.SubscriptionPastDue, ""); err != nil {
		t.Fatalf("set subscription: %v", err)
	}
	got, err = svc.ByStripeCustomer(ctx, "cus_123")
	if err != nil {
		t.Fatalf("customer id lost: %v", err)
	}
	if got.SubscriptionStatus != models.SubscriptionPastDue {
		t.Errorf("status = %q", got.SubscriptionStatus)
	}
}

func TestUpdateDisplayUnknownUser(t *testing.T) {
	svc := NewService(openTestDB(t))
	if err := svc.UpdateDisplay(context.Background(), "missing", "Name", ""); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

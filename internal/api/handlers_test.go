package api

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pearcircuitmike/replicate-codex/internal/auth"
	"github.com/pearcircuitmike/replicate-codex/internal/config"
	"github.com/pearcircuitmike/replicate-codex/internal/service/billing"
	"github.com/pearcircuitmike/replicate-codex/internal/service/catalog"
	"github.com/pearcircuitmike/replicate-codex/internal/service/chat"
	"github.com/pearcircuitmike/replicate-codex/internal/service/community"
	"github.com/pearcircuitmike/replicate-codex/internal/service/library"
	"github.com/pearcircuitmike/replicate-codex/internal/service/profile"
	"github.com/pearcircuitmike/replicate-codex/internal/service/rag"
	"github.com/pearcircuitmike/replicate-codex/internal/storage"
	"github.com/pearcircuitmike/replicate-codex/internal/worker"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

func init() {
	gin.SetMode(gin.TestMode)
}

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

// fakeStreamer feeds scripted deltas into the chat handler.
type fakeStreamer struct {
	deltas []string
	err    error
}

func (f *fakeStreamer) StreamChat(_ context.Context, _ string, _ []*schema.Message, onDelta func(string) error) error {
	for _, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return f.err
}

// fakeRetriever returns fixed results.
type fakeRetriever struct {
	results rag.Results
}

func (f *fakeRetriever) Retrieve(context.Context, string, int) rag.Results {
	return f.results
}

type fixedEmbedder struct{}

func (fixedEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2}
	}
	return out, nil
}

type testEnv struct {
	router   *gin.Engine
	handler  *Handler
	db       *sql.DB
	pool     *worker.Pool
	profiles *profile.Service
	auth     *auth.Service
	library  *library.Service
	sessions *chat.Service
}

func newTestEnv(t *testing.T, mutate func(*HandlerConfig)) *testEnv {
	t.Helper()
	db := openTestDB(t)
	log := zap.NewNop().Sugar()

	profiles := profile.NewService(db)
	authSvc := auth.NewService(db, nil, time.Hour)
	sessions := chat.NewService(db)
	librarySvc := library.NewService(db)
	pool := worker.NewPool(1, 8, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pool.Shutdown(ctx)
	})

	cfg := HandlerConfig{
		Log:         log,
		Auth:        authSvc,
		Profiles:    profiles,
		Sessions:    sessions,
		Streamer:    &fakeStreamer{deltas: []string{"Hello ", "world"}},
		Billing:     billing.NewService(profiles, testWebhookSecret, log),
		Library:     librarySvc,
		Communities: community.NewService(db, log),
		Catalog:     catalog.NewService(db, nil, log),
		Pool:        pool,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h := NewHandler(cfg)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	h.RegisterRoutes(router)

	return &testEnv{
		router:   router,
		handler:  h,
		db:       db,
		pool:     pool,
		profiles: profiles,
		auth:     authSvc,
		library:  librarySvc,
		sessions: sessions,
	}
}

// registerUser creates an account through the service layer and returns the
// user id and a valid bearer token.
func (e *testEnv) registerUser(t *testing.T, username string) (string, string) {
	t.Helper()
	p, err := e.profiles.Register(context.Background(), username, "pw")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	token, err := e.auth.IssueToken(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return p.ID, token
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := doJSON(t, env.router, http.MethodGet, "/api/profile", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := doJSON(t, env.router, http.MethodDelete, "/api/login", "", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env.router, http.MethodPost, "/api/register", "", `{"username":"alice","password":"pw"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, env.router, http.MethodPost, "/api/login", "", `{"username":"alice","password":"pw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"token"`) {
		t.Fatal("login response missing token")
	}

	rec = doJSON(t, env.router, http.MethodPost, "/api/login", "", `{"username":"alice","password":"nope"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", rec.Code)
	}
}

func TestRegisterCreatesDefaultFolder(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env.router, http.MethodPost, "/api/register", "", `{"username":"bob","password":"pw"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}

	p, err := env.profiles.Authenticate(context.Background(), "bob", "pw")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	folders, err := env.library.ListFolders(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("list folders: %v", err)
	}
	if len(folders) != 1 || !folders[0].IsDefault {
		t.Fatalf("default folder missing: %+v", folders)
	}
}

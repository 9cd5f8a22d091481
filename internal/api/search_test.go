package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/pearcircuitmike/replicate-codex/internal/models"
	"github.com/pearcircuitmike/replicate-codex/internal/service/rag"

	"go.uber.org/zap"
)

type cannedSearcher struct {
	papers   []models.Paper
	aiModels []models.Model
	err      error
}

func (s *cannedSearcher) SimilarPapers(context.Context, []float32, rag.SearchOptions) ([]models.Paper, error) {
	return s.papers, s.err
}

func (s *cannedSearcher) SimilarModels(context.Context, []float32, rag.SearchOptions) ([]models.Model, error) {
	return s.aiModels, s.err
}

func searchEnv(t *testing.T, s rag.Searcher) *testEnv {
	t.Helper()
	return newTestEnv(t, func(cfg *HandlerConfig) {
		cfg.Searcher = rag.NewRetriever(openTestDB(t), fixedEmbedder{}, s, zap.NewNop().Sugar())
	})
}

func TestSearchPapersReturnsData(t *testing.T) {
	env := searchEnv(t, &cannedSearcher{papers: []models.Paper{{ID: "p1", Title: "Found"}}})

	rec := doJSON(t, env.router, http.MethodPost, "/api/search/papers", "", `{"query":"attention"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if body == "" || body == `{"data":[]}` {
		t.Fatalf("expected results, got %s", body)
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	env := searchEnv(t, &cannedSearcher{})

	rec := doJSON(t, env.router, http.MethodPost, "/api/search/papers", "", `{"query":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSearchClientAbortReports499(t *testing.T) {
	env := searchEnv(t, &cannedSearcher{err: context.Canceled})

	rec := doJSON(t, env.router, http.MethodPost, "/api/search/models", "", `{"query":"whisper"}`)
	if rec.Code != statusClientClosedRequest {
		t.Fatalf("status = %d, want %d", rec.Code, statusClientClosedRequest)
	}
}

func TestSearchEmptyResultSetIsValid(t *testing.T) {
	env := searchEnv(t, &cannedSearcher{})

	rec := doJSON(t, env.router, http.MethodPost, "/api/search/models", "", `{"query":"obscure"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"data":[]}` {
		t.Fatalf("body = %s, want empty data array", got)
	}
}

package rag

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pearcircuitmike/replicate-codex/internal/models"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"
)

const (
	// DefaultSimilarityThreshold is the fixed floor for retrieval matches.
	DefaultSimilarityThreshold = 0.75
	// DefaultMatchCount bounds retrieval when the caller passes no limit.
	DefaultMatchCount = 10
	// modelRecencyYears is the recency floor applied to model search only.
	modelRecencyYears = 4
)

// SearchOptions tunes one similarity search.
type SearchOptions struct {
	Threshold float64
	Limit     int
	Since     time.Time
}

// Searcher runs vector similarity queries against stored embeddings.
type Searcher interface {
	SimilarPapers(ctx context.Context, vec []float32, opts SearchOptions) ([]models.Paper, error)
	SimilarModels(ctx context.Context, vec []float32, opts SearchOptions) ([]models.Model, error)
}

// Results is what retrieval hands the prompt builder. Empty result sets are a
// valid steady state, not an error.
type Results struct {
	Papers []models.Paper `json:"papers"`
	Models []models.Model `json:"models"`
}

// Retriever embeds a query and fans out to per-type similarity searches.
type Retriever struct {
	db       *sql.DB
	embedder embedding.Embedder
	searcher Searcher
	log      *zap.SugaredLogger
}

func NewRetriever(db *sql.DB, embedder embedding.Embedder, searcher Searcher, log *zap.SugaredLogger) *Retriever {
	return &Retriever{db: db, embedder: embedder, searcher: searcher, log: log}
}

// Retrieve never fails: every external call degrades to empty result sets so
// the chat pipeline proceeds without context instead of erroring.
func (r *Retriever) Retrieve(ctx context.Context, query string, maxResults int) Results {
	empty := Results{Papers: []models.Paper{}, Models: []models.Model{}}
	if query == "" {
		return empty
	}
	if maxResults <= 0 {
		maxResults = DefaultMatchCount
	}

	if err := r.probe(ctx); err != nil {
		r.log.Warnw("retrieval database probe failed", "error", err)
		return empty
	}

	vec, err := r.embedQuery(ctx, query)
	if err != nil {
		r.log.Warnw("query embedding failed", "error", err)
		return empty
	}

	paperQuota, modelQuota := splitQuota(maxResults)
	out := empty

	if paperQuota > 0 {
		papers, err := r.searcher.SimilarPapers(ctx, vec, SearchOptions{
			Threshold: DefaultSimilarityThreshold,
			Limit:     paperQuota,
		})
		if err != nil {
			r.log.Warnw("paper similarity search failed", "error", err)
		} else {
			out.Papers = papers
		}
	}
	if modelQuota > 0 {
		found, err := r.searcher.SimilarModels(ctx, vec, SearchOptions{
			Threshold: DefaultSimilarityThreshold,
			Limit:     modelQuota,
			Since:     time.Now().UTC().AddDate(-modelRecencyYears, 0, 0),
		})
		if err != nil {
			r.log.Warnw("model similarity search failed", "error", err)
		} else {
			out.Models = found
		}
	}
	return out
}

// SearchPapers backs the paper search endpoint; unlike Retrieve, errors surface.
func (r *Retriever) SearchPapers(ctx context.Context, query string, opts SearchOptions) ([]models.Paper, error) {
	vec, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.searcher.SimilarPapers(ctx, vec, fillDefaults(opts))
}

// SearchModels backs the model search endpoint; unlike Retrieve, errors surface.
func (r *Retriever) SearchModels(ctx context.Context, query string, opts SearchOptions) ([]models.Model, error) {
	vec, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.searcher.SimilarModels(ctx, vec, fillDefaults(opts))
}

func fillDefaults(opts SearchOptions) SearchOptions {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultSimilarityThreshold
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultMatchCount
	}
	return opts
}

// probe is a cheap reachability check so an unreachable database fails open
// before any paid embedding call is made.
func (r *Retriever) probe(ctx context.Context) error {
	var one int
	return r.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one)
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := r.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, errors.New("empty embedding response")
	}
	out := make([]float32, len(vecs[0]))
	for i, v := range vecs[0] {
		out[i] = float32(v)
	}
	return out, nil
}

// splitQuota gives papers 60% of the budget rounded up, models the rest.
func splitQuota(maxResults int) (paperQuota, modelQuota int) {
	paperQuota = (3*maxResults + 4) / 5
	return paperQuota, maxResults - paperQuota
}

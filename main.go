package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/pearcircuitmike/replicate-codex/internal/api"
	"github.com/pearcircuitmike/replicate-codex/internal/auth"
	"github.com/pearcircuitmike/replicate-codex/internal/config"
	"github.com/pearcircuitmike/replicate-codex/internal/redis"
	"github.com/pearcircuitmike/replicate-codex/internal/service/ai"
	"github.com/pearcircuitmike/replicate-codex/internal/service/billing"
	"github.com/pearcircuitmike/replicate-codex/internal/service/catalog"
	"github.com/pearcircuitmike/replicate-codex/internal/service/chat"
	"github.com/pearcircuitmike/replicate-codex/internal/service/community"
	"github.com/pearcircuitmike/replicate-codex/internal/service/library"
	"github.com/pearcircuitmike/replicate-codex/internal/service/profile"
	"github.com/pearcircuitmike/replicate-codex/internal/service/rag"
	"github.com/pearcircuitmike/replicate-codex/internal/service/speech"
	"github.com/pearcircuitmike/replicate-codex/internal/storage"
	"github.com/pearcircuitmike/replicate-codex/internal/worker"

	openaiembed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CODEX_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := buildLogger(cfg.BasicConfig.LogMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	dbType := os.Getenv("CODEX_DB")
	if dbType == "" {
		dbType = "postgres"
	}
	sugar.Infow("opening database", "driver", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		sugar.Fatalw("open database", "error", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		sugar.Fatalw("migrate database", "error", err)
	}

	// The cache is optional: a down redis costs view counters and the token
	// cache, nothing else.
	rdb, err := redis.NewClient(cfg)
	if err != nil {
		sugar.Warnw("redis unavailable, continuing without cache", "error", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	ctx := context.Background()

	aiService, err := ai.NewService(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalw("init chat models", "error", err)
	}

	retriever := buildRetriever(ctx, cfg, db, dbType, sugar)

	var relay *speech.Relay
	if cfg.Speech.APIKey != "" {
		relay = speech.NewRelay(speech.NewOpenAISynthesizer(cfg.Speech), sugar)
	} else {
		sugar.Warnw("speech api key missing, tts disabled")
	}

	authService := auth.NewService(db, rdb, 24*time.Hour)
	profileService := profile.NewService(db)
	sessionService := chat.NewService(db)
	libraryService := library.NewService(db)
	catalogService := catalog.NewService(db, rdb, sugar)
	communityService := community.NewService(db, sugar)
	billingService := billing.NewService(profileService, cfg.Billing.WebhookSecret, sugar)

	pool := worker.NewPool(cfg.BasicConfig.SaveWorkers, cfg.BasicConfig.SaveQueueSize, sugar)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pool.Shutdown(shutdownCtx); err != nil {
			sugar.Warnw("worker pool shutdown incomplete", "error", err)
		}
	}()

	sweepCtx, sweepCancel := context.WithCancel(ctx)
	defer sweepCancel()
	sweepInterval := time.Duration(cfg.BasicConfig.InviteSweepInterval) * time.Minute
	communityService.StartInviteSweeper(sweepCtx, sweepInterval)

	handlerCfg := api.HandlerConfig{
		Log:         sugar,
		Auth:        authService,
		Profiles:    profileService,
		Sessions:    sessionService,
		Streamer:    aiService,
		Searcher:    retriever,
		Relay:       relay,
		Billing:     billingService,
		Library:     libraryService,
		Communities: communityService,
		Catalog:     catalogService,
		Pool:        pool,
	}
	if retriever != nil {
		handlerCfg.Retriever = retriever
	}
	handlers := api.NewHandler(handlerCfg)

	router := gin.Default()
	router.HandleMethodNotAllowed = true
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	sugar.Infow("server starting", "addr", addr)
	if err := router.Run(addr); err != nil {
		sugar.Fatalw("server stopped", "error", err)
	}
}

func buildLogger(mode string) (*zap.Logger, error) {
	if mode == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildRetriever wires semantic retrieval when the backend supports it.
// Similarity search needs pgvector, so sqlite deployments run without it.
func buildRetriever(ctx context.Context, cfg *config.Config, db *sql.DB, dbType string, sugar *zap.SugaredLogger) *rag.Retriever {
	if dbType != "postgres" {
		sugar.Warnw("similarity search disabled, requires postgres", "driver", dbType)
		return nil
	}
	if cfg.Embedding.APIKey == "" {
		sugar.Warnw("embedding api key missing, retrieval disabled")
		return nil
	}
	embedder, err := openaiembed.NewEmbedder(ctx, &openaiembed.EmbeddingConfig{
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
		BaseURL: cfg.Embedding.BaseURL,
	})
	if err != nil {
		sugar.Warnw("embedder init failed, retrieval disabled", "error", err)
		return nil
	}
	return rag.NewRetriever(db, embedder, rag.NewPGSearcher(db), sugar)
}

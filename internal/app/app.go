// Package app assembles the dashboard's services from configuration. The
// API server, the queue worker and labctl share it.
package app

import (
	"context"
	"fmt"

	"lab-dashboard/internal/ai"
	"lab-dashboard/internal/config"
	"lab-dashboard/internal/corpus"
	"lab-dashboard/internal/logger"
	"lab-dashboard/internal/queue"
	"lab-dashboard/internal/retrieval"
	"lab-dashboard/internal/store"
	"lab-dashboard/internal/telemetry"
	"lab-dashboard/internal/vectorstore"
	"lab-dashboard/services"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
)

type App struct {
	Config  *config.Config
	Metrics *telemetry.Metrics

	Redis  *redis.Client
	Mongo  *mongo.Client
	Gemini *ai.GeminiClient
	Queue  *queue.Client

	Repository *store.Repository
	Corpus     *corpus.Cache
	Vectors    *vectorstore.Store
	Engine     *retrieval.Engine

	Documents  *services.DocumentService
	Chat       *services.ChatService
	Summarizer *services.SummarizationService
	Exporter   *services.ExportService

	closers []func()
}

type Options struct {
	Metrics *telemetry.Metrics
	// UseQueue hands vectorization to the asynq worker when QUEUE_ENABLED is set.
	// The worker itself builds its App without it.
	UseQueue bool
}

// New connects the configured backends and builds every service. Redis and
// Mongo are optional: an unreachable backend is logged and left out, and the
// in-memory backend always serves.
func New(cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, Metrics: opts.Metrics}

	backends := []store.Backend{store.NewMemoryBackend()}
	var versions store.VersionStore
	var kv vectorstore.KV = vectorstore.NewMemoryKV()

	if cfg.RedisEnabled {
		rdb, err := config.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without the key-value backend", "error", err)
		} else {
			a.Redis = rdb
			a.closers = append(a.closers, func() { rdb.Close() })
			backends = append(backends, store.NewRedisBackend(rdb))
			versions = store.NewRedisVersions(rdb)
			kv = vectorstore.NewRedisKV(rdb)
		}
	}

	if cfg.MongoEnabled {
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			logger.Warn("MongoDB unavailable, continuing without the blob backend", "error", err)
		} else {
			a.Mongo = client
			a.closers = append(a.closers, func() { client.Disconnect(context.Background()) })
			collection := client.Database(cfg.DBName).Collection(config.DocumentsCollection)
			backends = append(backends, store.NewMongoBackend(collection))
		}
	}

	a.Repository = store.NewRepository(versions, backends...)
	logger.Info("Document store ready", "backends", a.Repository.Backends())

	seed, err := corpus.LoadSeed(cfg.SeedCorpusPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load seed corpus: %w", err)
	}
	a.Corpus = corpus.NewCache(corpus.NewLoader(seed, a.Repository), a.Repository, cfg.CorpusCacheTTL,
		corpus.WithMetrics(opts.Metrics))

	tables := retrieval.DefaultTables()
	if cfg.RetrievalTablesPath != "" {
		if tables, err = retrieval.LoadTables(cfg.RetrievalTablesPath); err != nil {
			a.Close()
			return nil, fmt.Errorf("load retrieval tables: %w", err)
		}
	}

	a.Vectors = vectorstore.New(kv, cfg.VectorChunkSize)

	// interfaces stay nil, not typed-nil, without credentials
	var completer ai.Completer
	var embedder ai.Embedder
	if cfg.HasGeminiKey() {
		gc, err := ai.NewGeminiClient(cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		gc.OnStateChange = func(_, to gobreaker.State) {
			opts.Metrics.RecordCircuitBreakerState("gemini", to.String())
		}
		a.Gemini = gc
		a.closers = append(a.closers, func() { gc.Close() })
		completer, embedder = gc, gc
	} else {
		logger.Warn("GEMINI_API_KEY not set; chat answers and embeddings are disabled")
	}

	engineCfg := retrieval.DefaultEngineConfig()
	engineCfg.Tables = tables
	engineCfg.SimilarityFloor = cfg.SimilarityFloor
	engineCfg.ChunkSize = cfg.VectorChunkSize
	a.Engine = retrieval.NewEngine(a.Corpus, a.Vectors, embedder, engineCfg)
	a.Engine.SetMetrics(opts.Metrics)

	var vq services.VectorizeQueue
	if opts.UseQueue && cfg.QueueEnabled && a.Redis != nil {
		redisOpt, err := queue.RedisConnOpt(cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("queue redis options: %w", err)
		}
		a.Queue = queue.NewClient(redisOpt)
		a.closers = append(a.closers, func() { a.Queue.Close() })
		vq = a.Queue
	}

	a.Documents = services.NewDocumentService(services.DocumentServiceConfig{
		Repository: a.Repository,
		Corpus:     a.Corpus,
		Tables:     tables,
		Vectors:    a.Vectors,
		Embedder:   embedder,
		Queue:      vq,
		Metrics:    opts.Metrics,
	})

	tokens := services.NewTokenCounter("")
	a.Chat = services.NewChatService(a.Engine, completer, tokens, cfg.ChatContextTokens)
	a.Chat.SetMetrics(opts.Metrics)
	a.Summarizer = services.NewSummarizationService(completer, tokens, a.Documents)
	a.Exporter = services.NewExportService(a.Documents)

	return a, nil
}

// Health pings every configured dependency
func (a *App) Health(ctx context.Context) map[string]string {
	status := map[string]string{
		"redis":  "disabled",
		"mongo":  "disabled",
		"gemini": "disabled",
	}
	if a.Redis != nil {
		status["redis"] = pingResult(a.Redis.Ping(ctx).Err())
	}
	if a.Mongo != nil {
		status["mongo"] = pingResult(a.Mongo.Ping(ctx, nil))
	}
	if a.Gemini != nil {
		status["gemini"] = "ok"
	}
	return status
}

func pingResult(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}

// Close releases clients in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

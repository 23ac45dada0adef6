package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"docugraph-backend/internal/ai"
	"docugraph-backend/internal/config"
	"docugraph-backend/internal/graph"
	"docugraph-backend/internal/logger"
	"docugraph-backend/internal/telemetry"
	"docugraph-backend/middleware"
	"docugraph-backend/routes"
	"docugraph-backend/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("docugraph-backend", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
		metrics = nil
	}

	// Connect to Neo4j. The API stays up without it: reads come back empty
	// and writes return 503 until the graph is reachable again.
	var store *graph.Store
	driver, err := config.ConnectNeo4j(cfg)
	if err != nil {
		logger.Error("Neo4j unavailable, starting in degraded mode", "error", err)
		store = graph.NewStore(nil)
	} else {
		client := graph.NewClient(driver, cfg.Neo4jDatabase)
		store = graph.NewStore(client)
		defer client.Close(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		store.EnsureConstraints(ctx)
		cancel()
	}

	// Redis backs the answer cache and the asynq queue; both are optional.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, answer cache and queue disabled", "error", err)
		rdb = nil
	}

	var queueClient *asynq.Client
	if rdb != nil {
		queueClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer queueClient.Close()
	}

	// Gemini clients. Missing API key means degraded mode, not failure.
	embedder, err := ai.NewEmbeddingClient(context.Background(), cfg.GeminiAPIKey, cfg.EmbeddingsModel)
	if err != nil {
		logger.Warn("embeddings disabled", "error", err)
		embedder = nil
	} else {
		defer embedder.Close()
	}

	completer, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTier)
	if err != nil {
		logger.Warn("answer synthesis disabled", "error", err)
		completer = nil
	} else {
		defer completer.Close()
	}

	// Wire services.
	chunker := services.NewChunkingService(cfg.ChunkSize, cfg.ChunkOverlap)
	pdfExtractor := services.NewPDFExtractorService()
	ocrClient := services.NewOCRClient(cfg.OCRServiceURL, cfg.OCRServiceEnabled)
	urlExtractor := services.NewURLExtractorService(int64(cfg.URLMaxSizeMB))

	var indexerEmbedder services.Embedder
	if embedder != nil {
		indexerEmbedder = embedder
	}
	indexer := services.NewIndexerService(store, indexerEmbedder, cfg.VectorIndexName, cfg.VectorDimensions, metrics)
	if store.Available() && embedder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := indexer.EnsureIndex(ctx); err != nil {
			logger.Warn("vector index creation failed", "error", err)
		}
		cancel()
	}

	ingestion := services.NewIngestionService(store, indexer, chunker, pdfExtractor, ocrClient, urlExtractor, metrics)
	retrieval := services.NewRetrievalService(store, indexerEmbedder, cfg.PerFileChunkCap, cfg.GlobalChunkCap, cfg.SimilarityTopK, cfg.MinSimilarity)

	var qaCompleter services.Completer
	if completer != nil {
		qaCompleter = completer
	}
	qa := services.NewQAService(retrieval, qaCompleter, cfg.MaxContextChars, cfg.AnswerMaxTokens, metrics)
	traversal := services.NewTraversalService(store)
	cache := services.NewAnswerCache(rdb, time.Duration(cfg.AnswerCacheTTLSec)*time.Second)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.MaxMultipartMemory = cfg.MaxFileSize

	deps := routes.KnowledgeDeps{
		Cfg:       cfg,
		Store:     store,
		Ingestion: ingestion,
		Indexer:   indexer,
		QA:        qa,
		Traversal: traversal,
		Cache:     cache,
		Queue:     queueClient,
	}
	routes.SetupKnowledgeRoutes(router, deps)
	routes.SetupHealthRoutes(router, deps, embedder != nil, completer != nil)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

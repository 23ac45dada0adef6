package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"docugraph-backend/internal/ai"
	"docugraph-backend/internal/config"
	"docugraph-backend/internal/graph"
	"docugraph-backend/internal/logger"
	"docugraph-backend/internal/queue"
	"docugraph-backend/services"
)

// The worker drains the asynq queues: embedding backfills and deferred URL
// ingestions. It shares the service wiring with the API but needs a live
// graph connection to be useful.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	driver, err := config.ConnectNeo4j(cfg)
	if err != nil {
		log.Fatal("Worker requires Neo4j:", err)
	}
	client := graph.NewClient(driver, cfg.Neo4jDatabase)
	store := graph.NewStore(client)
	defer client.Close(context.Background())

	embedder, err := ai.NewEmbeddingClient(context.Background(), cfg.GeminiAPIKey, cfg.EmbeddingsModel)
	if err != nil {
		logger.Warn("embeddings disabled, backfill tasks will be skipped", "error", err)
		embedder = nil
	} else {
		defer embedder.Close()
	}

	var indexerEmbedder services.Embedder
	if embedder != nil {
		indexerEmbedder = embedder
	}

	chunker := services.NewChunkingService(cfg.ChunkSize, cfg.ChunkOverlap)
	pdfExtractor := services.NewPDFExtractorService()
	ocrClient := services.NewOCRClient(cfg.OCRServiceURL, cfg.OCRServiceEnabled)
	urlExtractor := services.NewURLExtractorService(int64(cfg.URLMaxSizeMB))
	indexer := services.NewIndexerService(store, indexerEmbedder, cfg.VectorIndexName, cfg.VectorDimensions, nil)
	ingestion := services.NewIngestionService(store, indexer, chunker, pdfExtractor, ocrClient, urlExtractor, nil)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ShutdownTimeout: 30 * time.Second,
		},
	)

	mux := asynq.NewServeMux()
	queue.NewProcessor(indexer, ingestion).Register(mux)

	go func() {
		logger.Info("Worker starting", "concurrency", 5)
		if err := srv.Run(mux); err != nil {
			log.Fatalf("Worker failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker")
	srv.Shutdown()
}

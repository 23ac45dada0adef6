package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"docugraph-backend/internal/config"
	"docugraph-backend/internal/graph"
	"docugraph-backend/internal/logger"
	"docugraph-backend/internal/queue"
	"docugraph-backend/models"
	"docugraph-backend/services"
	"docugraph-backend/utils"
)

const (
	uploadTimeout = 120 * time.Second
	qaTimeout     = 60 * time.Second
	readTimeout   = 15 * time.Second
)

// KnowledgeDeps bundles everything the knowledge endpoints need.
type KnowledgeDeps struct {
	Cfg       *config.Config
	Store     *graph.Store
	Ingestion *services.IngestionService
	Indexer   *services.IndexerService
	QA        *services.QAService
	Traversal *services.TraversalService
	Cache     *services.AnswerCache
	Queue     *asynq.Client
}

// SetupKnowledgeRoutes registers the document knowledge endpoints.
func SetupKnowledgeRoutes(r *gin.Engine, deps KnowledgeDeps) {
	kg := r.Group("/knowledge")
	{
		kg.POST("/file-upload", handleFileUpload(deps))
		kg.POST("/url-upload", handleURLUpload(deps))
		kg.POST("/qa", handleQA(deps))
		kg.GET("/files", handleListFiles(deps))
		kg.DELETE("/files/:filename", handleDeleteFile(deps))
		kg.DELETE("/files", handleDeleteAllFiles(deps))
		kg.DELETE("/user", handleDeleteUser(deps))
		kg.GET("/url-list", handleURLList(deps))
		kg.GET("/url-info", handleURLInfo(deps))
		kg.DELETE("/url-delete", handleURLDelete(deps))
		kg.POST("/regenerate-embeddings", handleRegenerateEmbeddings(deps))
	}
}

func requireUserID(c *gin.Context) (string, bool) {
	userID := c.Query("user_id")
	if userID == "" {
		userID = c.PostForm("user_id")
	}
	if userID == "" {
		utils.RespondWithBadRequest(c, "user_id is required", nil)
		return "", false
	}
	return userID, true
}

func requireStore(c *gin.Context, deps KnowledgeDeps) bool {
	if !deps.Store.Available() {
		utils.RespondWithServiceUnavailable(c, "Knowledge graph is not available")
		return false
	}
	return true
}

func handleFileUpload(deps KnowledgeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		if !requireStore(c, deps) {
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", nil)
			return
		}
		defer file.Close()

		if header.Size > deps.Cfg.MaxFileSize {
			utils.RespondWithPayloadTooLarge(c, "File size exceeds maximum limit")
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, deps.Cfg.MaxFileSize+1))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read uploaded file", nil)
			return
		}
		if int64(len(data)) > deps.Cfg.MaxFileSize {
			utils.RespondWithPayloadTooLarge(c, "File size exceeds maximum limit")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), uploadTimeout)
		defer cancel()

		result, err := deps.Ingestion.IngestFile(ctx, userID, header.Filename, data)
		if err != nil {
			logger.Error("file ingestion failed", "filename", header.Filename, "error", err)
			utils.RespondWithInternalError(c, "Failed to process file", gin.H{"details": result.Error})
			return
		}

		deps.Cache.Invalidate(ctx, userID)
		c.JSON(http.StatusOK, result)
	}
}

func handleURLUpload(deps KnowledgeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id" binding:"required"`
			URL    string `json:"url" binding:"required"`
			Async  bool   `json:"async"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "user_id and url are required", nil)
			return
		}
		if !requireStore(c, deps) {
			return
		}

		parsed, err := url.Parse(req.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			utils.RespondWithBadRequest(c, "A valid http or https URL is required", nil)
			return
		}

		if req.Async && deps.Queue != nil {
			task, err := queue.NewIngestURLTask(req.UserID, req.URL)
			if err == nil {
				if _, err = deps.Queue.Enqueue(task); err == nil {
					c.JSON(http.StatusAccepted, gin.H{
						"status":  "queued",
						"message": "URL queued for processing",
					})
					return
				}
			}
			logger.Warn("failed to queue URL ingestion, processing inline", "url", req.URL, "error", err)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), uploadTimeout)
		defer cancel()

		result, err := deps.Ingestion.IngestURL(ctx, req.UserID, req.URL)
		if err != nil {
			logger.Error("URL ingestion failed", "url", req.URL, "error", err)
			utils.RespondWithInternalError(c, "Failed to process URL", gin.H{"details": result.Error})
			return
		}

		deps.Cache.Invalidate(ctx, req.UserID)
		c.JSON(http.StatusOK, result)
	}
}

func handleQA(deps KnowledgeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID    string   `json:"user_id" binding:"required"`
			Question  string   `json:"question" binding:"required"`
			Filenames []string `json:"filenames"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "user_id and question are required", nil)
			return
		}
		question := strings.TrimSpace(req.Question)
		if question == "" {
			utils.RespondWithBadRequest(c, "question must not be blank", nil)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), qaTimeout)
		defer cancel()

		if cached := deps.Cache.Get(ctx, req.UserID, question, req.Filenames); cached != nil {
			c.JSON(http.StatusOK, qaResponse(ctx, deps, req.UserID, *cached))
			return
		}

		result := deps.QA.Answer(ctx, req.UserID, question, req.Filenames)
		deps.Cache.Put(ctx, req.UserID, question, req.Filenames, result)

		c.JSON(http.StatusOK, qaResponse(ctx, deps, req.UserID, result))
	}
}

// qaResponse attaches the traversal subgraph when the answer has sources.
func qaResponse(ctx context.Context, deps KnowledgeDeps, userID string, result models.AnswerResult) gin.H {
	resp := gin.H{
		"status":        result.Status,
		"answer":        result.Answer,
		"question":      result.Question,
		"sources":       result.Sources,
		"total_sources": result.TotalSources,
	}
	if result.Strategy != "" {
		resp["strategy"] = result.Strategy
	}
	if result.Error != "" {
		resp["error"] = result.Error
	}
	if result.Status == "success" && len(result.Sources) > 0 {
		resp["traversal_path"] = deps.Traversal.BuildPath(ctx, userID, result.Sources)
	}
	return resp
}

func handleListFiles(deps KnowledgeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		if !requireStore(c, deps) {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
		defer cancel()

		files, err := deps.Store.ListFiles(ctx, userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list files", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"files":       files,
			"total_files": len(files),
		})
	}
}

func handleDeleteFile(deps KnowledgeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		if !requireStore(c, deps) {
			return
		}

		filename := c.Param("filename")

		ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
		defer cancel()

		removed, err := deps.Store.DeleteFile(ctx, userID, filename)
		if errors.Is(err, graph.ErrNotFound) {
			utils.RespondWithNotFound(c, "File not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to delete file", nil)
			return
		}

		deps.Cache.Invalidate(ctx, userID)
		c.JSON(http.StatusOK, gin.H{
			"status":         "success",
			"filename":       filename,
			"chunks_removed": removed,
		})
	}
}

func handleDeleteAllFiles(deps KnowledgeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		if !requireStore(c, deps) {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
		defer cancel()

		removed, err := deps.Store.DeleteAllFiles(ctx, userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to delete files", nil)
			return
		}

		deps.Cache.Invalidate(ctx, userID)
		c.JSON(http.StatusOK, gin.H{
			"status":        "success",
			"files_removed": removed,
		})
	}
}

func handleDeleteUser(deps KnowledgeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		if !requireStore(c, deps) {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
		defer cancel()

		files, chunks, err := deps.Store.DeleteUser(ctx, userID)
		if errors.Is(err, graph.ErrNotFound) {
			utils.RespondWithNotFound(c, "User not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to delete user", nil)
			return
		}

		deps.Cache.Invalidate(ctx, userID)
		c.JSON(http.StatusOK, gin.H{
			"status":         "success",
			"user_id":        userID,
			"files_removed":  files,
			"chunks_removed": chunks,
		})
	}
}

func handleURLList(deps KnowledgeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		if !requireStore(c, deps) {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
		defer cancel()

		files, err := deps.Store.ListURLFiles(ctx, userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list URLs", nil)
			return
		}

		entries := make([]models.URLEntry, 0, len(files))
		for _, file := range files {
			entries = append(entries, models.URLEntry{
				URL:          file.OriginalURL,
				Filename:     file.Filename,
				Chunks:       file.TotalChunks,
				UploadedDate: file.ProcessedDate.Format(time.RFC3339),
				Domain:       domainOf(file.OriginalURL),
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"urls":       entries,
			"total_urls": len(entries),
		})
	}
}

func handleURLInfo(deps KnowledgeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		rawURL := c.Query("url")
		if rawURL == "" {
			utils.RespondWithBadRequest(c, "url is required", nil)
			return
		}
		if !requireStore(c, deps) {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
		defer cancel()

		info, err := deps.Store.FileByOriginalURL(ctx, userID, rawURL)
		if errors.Is(err, graph.ErrNotFound) {
			utils.RespondWithNotFound(c, "URL not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to look up URL", nil)
			return
		}

		samples, err := deps.Store.SampleChunks(ctx, userID, info.Filename, 3)
		if err != nil {
			samples = nil
		}
		previews := make([]string, 0, len(samples))
		for _, chunk := range samples {
			text := chunk.Text
			if len(text) > 200 {
				text = text[:200] + "..."
			}
			previews = append(previews, text)
		}

		c.JSON(http.StatusOK, gin.H{
			"url":            info.OriginalURL,
			"filename":       info.Filename,
			"domain":         domainOf(info.OriginalURL),
			"total_chunks":   info.TotalChunks,
			"processed_date": info.ProcessedDate.Format(time.RFC3339),
			"sample_chunks":  previews,
		})
	}
}

func handleURLDelete(deps KnowledgeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		rawURL := c.Query("url")
		if rawURL == "" {
			utils.RespondWithBadRequest(c, "url is required", nil)
			return
		}
		if !requireStore(c, deps) {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
		defer cancel()

		info, err := deps.Store.FileByOriginalURL(ctx, userID, rawURL)
		if errors.Is(err, graph.ErrNotFound) {
			utils.RespondWithNotFound(c, "URL not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to look up URL", nil)
			return
		}

		removed, err := deps.Store.DeleteFile(ctx, userID, info.Filename)
		if err != nil && !errors.Is(err, graph.ErrNotFound) {
			utils.RespondWithInternalError(c, "Failed to delete URL content", nil)
			return
		}

		deps.Cache.Invalidate(ctx, userID)
		c.JSON(http.StatusOK, gin.H{
			"status":         "success",
			"url":            rawURL,
			"filename":       info.Filename,
			"chunks_removed": removed,
		})
	}
}

func handleRegenerateEmbeddings(deps KnowledgeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID   string `json:"user_id" binding:"required"`
			Filename string `json:"filename"`
			Force    bool   `json:"force"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "user_id is required", nil)
			return
		}
		if !requireStore(c, deps) {
			return
		}

		if deps.Queue != nil {
			task, err := queue.NewEmbedBackfillTask(req.UserID, req.Filename, req.Force)
			if err == nil {
				if _, err = deps.Queue.Enqueue(task); err == nil {
					c.JSON(http.StatusAccepted, gin.H{
						"status":  "queued",
						"message": "Embedding regeneration queued",
					})
					return
				}
			}
			logger.Warn("failed to queue embedding backfill, running inline", "error", err)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), uploadTimeout)
		defer cancel()

		report, err := deps.Indexer.ReindexAll(ctx, req.UserID, req.Filename, req.Force)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to regenerate embeddings", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "success",
			"embedded": report.Embedded,
			"failed":   report.Failed,
			"skipped":  report.Skipped,
		})
	}
}

func domainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}

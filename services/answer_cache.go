package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"docugraph-backend/internal/logger"
	"docugraph-backend/models"
)

// AnswerCache memoizes QA results in Redis. Keys carry a per-user
// generation counter, so invalidation is one INCR instead of a key scan.
// Without a Redis connection the cache is a no-op and every question hits
// the model.
type AnswerCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAnswerCache(client *redis.Client, ttl time.Duration) *AnswerCache {
	return &AnswerCache{client: client, ttl: ttl}
}

func (c *AnswerCache) generation(ctx context.Context, userID string) string {
	gen, err := c.client.Get(ctx, "answer:gen:"+userID).Result()
	if err != nil {
		return "0"
	}
	return gen
}

func (c *AnswerCache) key(ctx context.Context, userID, question string, filenames []string) string {
	sorted := append([]string(nil), filenames...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(question))))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))

	return fmt.Sprintf("answer:%s:%s:%s", userID, c.generation(ctx, userID), hex.EncodeToString(h.Sum(nil)))
}

// Get returns the cached result for this exact question and scope, or nil.
func (c *AnswerCache) Get(ctx context.Context, userID, question string, filenames []string) *models.AnswerResult {
	if c == nil || c.client == nil {
		return nil
	}

	raw, err := c.client.Get(ctx, c.key(ctx, userID, question, filenames)).Bytes()
	if err != nil {
		return nil
	}

	var result models.AnswerResult
	if err := json.Unmarshal(raw, &result); err != nil {
		logger.Warn("discarding undecodable cached answer", "error", err)
		return nil
	}
	return &result
}

// Put stores a successful result. Errors are logged and ignored; the cache
// is an optimization, never a dependency.
func (c *AnswerCache) Put(ctx context.Context, userID, question string, filenames []string, result models.AnswerResult) {
	if c == nil || c.client == nil || result.Status != "success" {
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(ctx, userID, question, filenames), raw, c.ttl).Err(); err != nil {
		logger.Warn("caching answer failed", "error", err)
	}
}

// Invalidate bumps the user's cache generation after a corpus change.
// Orphaned entries from older generations expire via TTL.
func (c *AnswerCache) Invalidate(ctx context.Context, userID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Incr(ctx, "answer:gen:"+userID).Err(); err != nil {
		logger.Warn("answer cache invalidation failed", "user_id", userID, "error", err)
	}
}

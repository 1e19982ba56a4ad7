package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	idempotencyTTL     = 24 * time.Hour
	idempotencyLockTTL = 30 * time.Second
	replayHeader       = "Idempotent-Replayed"
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response of a POST that carries an Idempotency-Key the same
// caller already used on the same path. A key still being processed is answered with 409. Keys
// are scoped per authenticated user and concrete request path, so it must run after Auth.
// Redis failures fall through to the handler.
func Idempotency(rdb redis.Cmdable, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := idempotencyKey(UserID(c), c.Request.URL.Path, key)

		stored, err := loadResponse(ctx, rdb, cacheKey)
		switch {
		case err == nil:
			c.Header(replayHeader, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		case !errors.Is(err, redis.Nil):
			logger.Warn("idempotency lookup failed", zap.Error(err))
			c.Next()
			return
		}

		locked, err := rdb.SetNX(ctx, cacheKey+":lock", 1, idempotencyLockTTL).Result()
		if err != nil {
			logger.Warn("idempotency lock failed", zap.Error(err))
			c.Next()
			return
		}
		if !locked {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is in progress"})
			return
		}
		defer rdb.Del(context.WithoutCancel(ctx), cacheKey+":lock")

		w := &captureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		resp := storedResponse{
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		}
		if err := saveResponse(context.WithoutCancel(ctx), rdb, cacheKey, &resp); err != nil {
			logger.Warn("idempotency store failed", zap.Error(err))
		}
	}
}

func idempotencyKey(userID, path, key string) string {
	return "idempotency:" + userID + ":" + path + ":" + key
}

func loadResponse(ctx context.Context, rdb redis.Cmdable, key string) (*storedResponse, error) {
	data, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var resp storedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func saveResponse(ctx context.Context, rdb redis.Cmdable, key string, resp *storedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, data, idempotencyTTL).Err()
}

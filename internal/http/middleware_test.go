package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func runRequestWithMiddleware(t *testing.T, middleware gin.HandlerFunc, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", uint64(7))
		c.Next()
	})
	router.Use(middleware)
	router.POST("/*path", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	responseRecorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	router.ServeHTTP(responseRecorder, req)
	return responseRecorder
}

func TestRedisRateLimitWithoutClientAllows(t *testing.T) {
	responseRecorder := runRequestWithMiddleware(t, RedisRateLimit(nil, "redeem", 1, time.Minute), "/redeem", nil)
	if responseRecorder.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", responseRecorder.Code)
	}
}

func TestRedisRateLimitFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	responseRecorder := runRequestWithMiddleware(t, RedisRateLimit(rdb, "redeem", 1, time.Minute), "/redeem", nil)
	if responseRecorder.Code != http.StatusNoContent {
		t.Fatalf("expected unreachable redis to allow request, got %d", responseRecorder.Code)
	}
}

func TestNewRedisClient(t *testing.T) {
	client, err := NewRedisClient("")
	if err != nil || client != nil {
		t.Fatalf("expected nil client for empty url, got %v %v", client, err)
	}
	client, err = NewRedisClient("redis://localhost:6379/2")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	defer client.Close()
	if client.Options().DB != 2 {
		t.Fatalf("expected db 2, got %d", client.Options().DB)
	}
	if _, err := NewRedisClient("http://nope"); err == nil {
		t.Fatalf("expected invalid scheme error")
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	responseRecorder := runRequestWithMiddleware(t, RequestLogger(), "/x?code=ABCD-EFGH", nil)
	if responseRecorder.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}

	responseRecorder = runRequestWithMiddleware(t, RequestLogger(), "/x", map[string]string{RequestIDHeader: "abc-123"})
	if got := responseRecorder.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("expected propagated request id, got %q", got)
	}
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"miss", redis.Nil, false},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{"server error", errors.New("WRONGTYPE Operation against a key"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(classify(tt.err)); got != tt.retryable {
				t.Errorf("IsRetryable(classify(%v)) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}

	if !errors.Is(classify(io.EOF), ErrNetwork) {
		t.Error("transport errors should wrap ErrNetwork")
	}
}

func TestNewRedisCacheBadURL(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "http://nope", "geolod:"); err == nil {
		t.Error("non-redis URL should be rejected")
	}
}

// TestRedisCache runs against a live server when GEOLOD_TEST_REDIS_URL is set.
func TestRedisCache(t *testing.T) {
	url := os.Getenv("GEOLOD_TEST_REDIS_URL")
	if url == "" {
		t.Skip("GEOLOD_TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("geolod-test-%d:", time.Now().UnixNano())
	c, err := NewRedisCache(ctx, url, prefix)
	if err != nil {
		t.Fatalf("NewRedisCache error: %v", err)
	}
	defer c.Close()
	defer c.Clear(ctx)

	if _, hit, err := c.Get(ctx, "level:a"); hit || err != nil {
		t.Fatalf("empty cache: hit %v, err %v", hit, err)
	}
	if err := c.Set(ctx, "level:a", []byte("data"), time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "level:a")
	if err != nil || !hit || string(data) != "data" {
		t.Errorf("Get = %q, %v, %v; want data, true, nil", data, hit, err)
	}

	if err := c.Set(ctx, "level:b", []byte("data"), time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	n, err := c.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if n != 2 {
		t.Errorf("Clear removed %d, want 2", n)
	}
}

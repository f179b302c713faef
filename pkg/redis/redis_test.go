package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wonny/pricebattle/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
}

func TestNewClient_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &config.Config{
		Redis: config.RedisConfig{
			Host:    mr.Host(),
			Port:    mr.Port(),
			Enabled: true,
		},
	}

	client, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	if !client.Enabled() {
		t.Error("Expected client to be enabled")
	}
}

func TestCache_Disabled(t *testing.T) {
	client, _ := New(context.Background(), &config.Config{})
	cache := NewCache(client, "test")

	// When Redis is disabled, cache operations should be no-ops
	if err := cache.Set(context.Background(), "key", "value", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var result string
	found, err := cache.Get(context.Background(), "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}
}

func TestCache_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer client.Close()

	cache := NewCache(client, "battle")
	ctx := context.Background()

	type payload struct {
		Close float64 `json:"close"`
	}

	var got payload
	found, err := cache.Get(ctx, "missing", &got)
	if err != nil || found {
		t.Fatalf("Expected clean miss, got found=%v err=%v", found, err)
	}

	if err := cache.Set(ctx, "k", payload{Close: 151.5}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !mr.Exists("battle:cache:k") {
		t.Error("Expected prefixed key in redis")
	}

	found, err = cache.Get(ctx, "k", &got)
	if err != nil || !found || got.Close != 151.5 {
		t.Fatalf("Get() = %+v, %v, %v", got, found, err)
	}

	mr.FastForward(2 * time.Minute)
	found, _ = cache.Get(ctx, "k", &got)
	if found {
		t.Error("Expected entry to expire")
	}

	_ = cache.Set(ctx, "d", payload{}, time.Minute)
	if err := cache.Delete(ctx, "d"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if mr.Exists("battle:cache:d") {
		t.Error("Expected key deleted")
	}
}

func TestCache_CorruptEntryEvicted(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer client.Close()

	cache := NewCache(client, "battle")
	if err := mr.Set("battle:cache:bad", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var got []float64
	found, err := cache.Get(context.Background(), "bad", &got)
	if err == nil || found {
		t.Fatalf("Expected decode error, got found=%v err=%v", found, err)
	}
	if mr.Exists("battle:cache:bad") {
		t.Error("Expected corrupt entry evicted")
	}
}

func TestQuotesKey(t *testing.T) {
	if got := QuotesKey("^GSPC", "2024-01-01", "2024-01-31"); got != "quotes:^GSPC:2024-01-01:2024-01-31" {
		t.Errorf("QuotesKey() = %s", got)
	}
}

package cache

import (
	"context"
	"testing"
	"time"
)

type payload struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	in := payload{Symbol: "7203.T", Price: 1500}
	if err := c.Set(ctx, "snapshot:7203.T", in, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var out payload
	hit, err := c.Get(ctx, "snapshot:7203.T", &out)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatal("Expected cache hit")
	}
	if out != in {
		t.Errorf("Expected %+v, got %+v", in, out)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache()

	var out payload
	hit, err := c.Get(context.Background(), "missing", &out)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("Expected cache miss")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	c.Set(ctx, "key", payload{Symbol: "X"}, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	var out payload
	hit, err := c.Get(ctx, "key", &out)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("Expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry to be evicted, have %d entries", c.Len())
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	c.Set(ctx, "a", payload{Symbol: "A"}, time.Minute)
	c.Set(ctx, "b", payload{Symbol: "B"}, time.Minute)

	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var out payload
	if hit, _ := c.Get(ctx, "a", &out); hit {
		t.Error("Expected deleted key to miss")
	}
	if hit, _ := c.Get(ctx, "b", &out); !hit {
		t.Error("Expected untouched key to survive")
	}
}

func TestMemoryCacheOverwrite(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	c.Set(ctx, "key", payload{Price: 100}, time.Minute)
	c.Set(ctx, "key", payload{Price: 200}, time.Minute)

	var out payload
	hit, _ := c.Get(ctx, "key", &out)
	if !hit || out.Price != 200 {
		t.Errorf("Expected latest value 200, got hit=%v price=%v", hit, out.Price)
	}
}

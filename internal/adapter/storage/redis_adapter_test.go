package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func resetMirror(ctx context.Context, client *redis.Client) {
	client.Del(ctx, versionKey, quantityKey, priceKey)
}

func sampleProducts() []domain.Product {
	return []domain.Product{
		{Name: "Phone", Price: decimal.NewFromFloat(500.0), Quantity: 7},
		{Name: "Laptop", Price: decimal.NewFromFloat(1200.0), Quantity: 5},
	}
}

func TestPublishSnapshot_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	resetMirror(ctx, client)

	ok, err := adapter.PublishSnapshot(ctx, 3, sampleProducts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected snapshot to be applied")
	}

	version, products, err := adapter.ReadSnapshot(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 3 {
		t.Errorf("expected version 3, got %d", version)
	}
	if len(products) != 2 || products[0].Name != "Laptop" || products[1].Quantity != 7 {
		t.Errorf("unexpected mirrored products: %+v", products)
	}
	if !products[1].Price.Equal(decimal.NewFromFloat(500.0)) {
		t.Errorf("expected price 500, got %s", products[1].Price)
	}
}

func TestPublishSnapshot_StaleVersionIgnored(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	resetMirror(ctx, client)

	if _, err := adapter.PublishSnapshot(ctx, 5, sampleProducts()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := adapter.PublishSnapshot(ctx, 4, []domain.Product{{Name: "Phone", Price: decimal.NewFromInt(1), Quantity: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected stale snapshot to be rejected")
	}

	version, products, _ := adapter.ReadSnapshot(ctx)
	if version != 5 || len(products) != 2 {
		t.Errorf("mirror changed by stale snapshot: version %d, products %+v", version, products)
	}
}

func TestPublishSnapshot_DropsSoldOutProducts(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	resetMirror(ctx, client)

	adapter.PublishSnapshot(ctx, 1, sampleProducts())
	adapter.PublishSnapshot(ctx, 2, sampleProducts()[:1])

	_, products, err := adapter.ReadSnapshot(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 1 || products[0].Name != "Phone" {
		t.Errorf("expected only Phone, got %+v", products)
	}
}

func TestReadSnapshot_Empty(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	resetMirror(ctx, client)

	version, products, err := adapter.ReadSnapshot(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 0 || products != nil {
		t.Errorf("expected empty mirror, got version %d products %+v", version, products)
	}
}

func TestPublishSnapshot_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	resetMirror(ctx, client)

	const publishers = 50
	var applied atomic.Int32
	var wg sync.WaitGroup

	for i := 1; i <= publishers; i++ {
		wg.Add(1)
		go func(version uint64) {
			defer wg.Done()
			ok, err := adapter.PublishSnapshot(ctx, version, []domain.Product{
				{Name: "Phone", Price: decimal.NewFromInt(500), Quantity: int(version)},
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				applied.Add(1)
			}
		}(uint64(i))
	}

	wg.Wait()

	if applied.Load() < 1 {
		t.Error("expected at least one snapshot applied")
	}

	// whichever order they landed in, the newest version wins
	version, products, _ := adapter.ReadSnapshot(ctx)
	if version != publishers {
		t.Errorf("expected version %d, got %d", publishers, version)
	}
	if len(products) != 1 || products[0].Quantity != publishers {
		t.Errorf("expected quantity %d, got %+v", publishers, products)
	}
}

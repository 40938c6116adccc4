package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

const (
	versionKey  = "inventory:version"
	quantityKey = "inventory:quantity"
	priceKey    = "inventory:price"
)

// KEYS: version, quantity hash, price hash
// ARGV: version, then name/quantity/price triples
var publishSnapshotScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '-1')
local version = tonumber(ARGV[1])
if version <= current then
	return 0
end

redis.call('DEL', KEYS[2], KEYS[3])
for i = 2, #ARGV, 3 do
	redis.call('HSET', KEYS[2], ARGV[i], ARGV[i + 1])
	redis.call('HSET', KEYS[3], ARGV[i], ARGV[i + 2])
end
redis.call('SET', KEYS[1], ARGV[1])

return 1
`)

// RedisAdapter mirrors inventory snapshots so readers outside the process can
// display stock. The mirror is write-only from the service's point of view.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) PublishSnapshot(ctx context.Context, version uint64, products []domain.Product) (bool, error) {
	args := make([]any, 0, 1+3*len(products))
	args = append(args, version)
	for _, p := range products {
		args = append(args, p.Name, p.Quantity, p.Price.String())
	}

	result, err := publishSnapshotScript.Run(ctx, r.client, []string{versionKey, quantityKey, priceKey}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("publish snapshot: %w", err)
	}

	return result == 1, nil
}

// ReadSnapshot returns the mirrored products sorted by name and the version
// they were published at.
func (r *RedisAdapter) ReadSnapshot(ctx context.Context) (uint64, []domain.Product, error) {
	pipe := r.client.TxPipeline()
	versionCmd := pipe.Get(ctx, versionKey)
	quantities := pipe.HGetAll(ctx, quantityKey)
	prices := pipe.HGetAll(ctx, priceKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, nil, fmt.Errorf("read snapshot: %w", err)
	}

	version, err := versionCmd.Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("read snapshot version: %w", err)
	}

	products := make([]domain.Product, 0, len(quantities.Val()))
	for name, rawQty := range quantities.Val() {
		qty, err := strconv.Atoi(rawQty)
		if err != nil {
			return 0, nil, fmt.Errorf("quantity of %s: %w", name, err)
		}
		price, err := decimal.NewFromString(prices.Val()[name])
		if err != nil {
			return 0, nil, fmt.Errorf("price of %s: %w", name, err)
		}
		products = append(products, domain.Product{Name: name, Price: price, Quantity: qty})
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})

	return version, products, nil
}

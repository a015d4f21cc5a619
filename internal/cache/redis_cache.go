package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"possettle/backend/internal/domain"
)

const (
	openDrawerKey       = "possettle:drawer:open"
	invoiceSeqPrefix    = "possettle:invoice:seq:"
	invoiceSeqRetention = 48 * time.Hour
)

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

type RedisDrawerCache struct {
	client *redis.Client
}

func NewRedisDrawerCache(client *redis.Client) *RedisDrawerCache {
	return &RedisDrawerCache{client: client}
}

func (c *RedisDrawerCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisDrawerCache) GetOpenDrawer(ctx context.Context) (*domain.CashDrawer, bool, error) {
	val, err := c.client.Get(ctx, openDrawerKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var drawer domain.CashDrawer
	if err := json.Unmarshal([]byte(val), &drawer); err != nil {
		return nil, false, err
	}
	return &drawer, true, nil
}

func (c *RedisDrawerCache) SetOpenDrawer(ctx context.Context, drawer *domain.CashDrawer, ttl time.Duration) error {
	if drawer == nil {
		return nil
	}
	payload, err := json.Marshal(drawer)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, openDrawerKey, payload, ttl).Err()
}

func (c *RedisDrawerCache) InvalidateOpenDrawer(ctx context.Context) error {
	return c.client.Del(ctx, openDrawerKey).Err()
}

// RedisInvoiceSequence hands out daily invoice counters with INCR so that
// several API instances share one sequence.
type RedisInvoiceSequence struct {
	client *redis.Client
}

func NewRedisInvoiceSequence(client *redis.Client) *RedisInvoiceSequence {
	return &RedisInvoiceSequence{client: client}
}

func (s *RedisInvoiceSequence) NextInvoiceSequence(ctx context.Context, day string) (int64, error) {
	key := invoiceSeqPrefix + day
	next, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if next == 1 {
		if err := s.client.Expire(ctx, key, invoiceSeqRetention).Err(); err != nil {
			return 0, err
		}
	}
	return next, nil
}

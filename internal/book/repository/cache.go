package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/librosapp/libros/backend/go-services/internal/book"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	cacheKeyPrefix = "libros:book:"
	cacheGenPrefix = "libros:bookgen:"
)

var errStaleRead = errors.New("book changed during read")

// CachedRepo is a read-through Redis cache in front of another Repository.
// Only single-book lookups are cached; every write bumps a per-book
// generation and evicts the affected key. A read only fills the cache when
// the generation it saw before reading the store is still current, so a
// write racing a miss cannot leave the old record cached. Redis failures are
// logged and the request falls through to the inner repository.
type CachedRepo struct {
	Repository
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewCachedRepo(next Repository, client *redis.Client, ttl time.Duration, log *zap.Logger) *CachedRepo {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedRepo{Repository: next, client: client, ttl: ttl, log: log}
}

func (c *CachedRepo) Get(ctx context.Context, id string) (*book.Book, error) {
	key := cacheKeyPrefix + id
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var b book.Book
		if jerr := json.Unmarshal(raw, &b); jerr == nil {
			return &b, nil
		}
		c.log.Warn("discarding undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	gen, genErr := c.client.Get(ctx, cacheGenPrefix+id).Result()
	if genErr != nil && !errors.Is(genErr, redis.Nil) {
		c.log.Warn("cache read failed", zap.String("key", cacheGenPrefix+id), zap.Error(genErr))
	}

	b, err := c.Repository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if genErr == nil || errors.Is(genErr, redis.Nil) {
		c.store(ctx, id, gen, b)
	}
	return b, nil
}

func (c *CachedRepo) Update(ctx context.Context, id string, ch book.Changes) (*book.Book, error) {
	b, err := c.Repository.Update(ctx, id, ch)
	c.evict(ctx, id)
	return b, err
}

func (c *CachedRepo) Delete(ctx context.Context, id string) (*book.Book, error) {
	b, err := c.Repository.Delete(ctx, id)
	c.evict(ctx, id)
	return b, err
}

// Ping checks the inner repository and Redis.
func (c *CachedRepo) Ping(ctx context.Context) error {
	if err := c.Repository.Ping(ctx); err != nil {
		return err
	}
	return c.client.Ping(ctx).Err()
}

// store caches b unless the book's generation moved past gen.
func (c *CachedRepo) store(ctx context.Context, id, gen string, b *book.Book) {
	raw, err := json.Marshal(b)
	if err != nil {
		return
	}
	key, genKey := cacheKeyPrefix+id, cacheGenPrefix+id
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleRead
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, raw, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil, errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
	default:
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedRepo) evict(ctx context.Context, id string) {
	genKey := cacheGenPrefix + id
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey)
		p.Expire(ctx, genKey, c.ttl)
		p.Del(ctx, cacheKeyPrefix+id)
		return nil
	})
	if err != nil {
		c.log.Warn("cache eviction failed", zap.String("id", id), zap.Error(err))
	}
}

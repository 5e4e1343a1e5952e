package repositories

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LruCacheRepository - in-memory кеш на LRU с TTL.
// Запасной вариант для single-instance развёртываний без Redis.
// TTL общий для всех ключей и задаётся при создании.
type LruCacheRepository struct {
	cache *expirable.LRU[string, string]
}

// NewLruCacheRepository создаёт кеш с указанным размером и временем жизни записей.
func NewLruCacheRepository(maxSize int, ttl time.Duration) CacheRepositoryInterface {
	return &LruCacheRepository{
		cache: expirable.NewLRU[string, string](maxSize, nil, ttl),
	}
}

// Get получает значение из кеша по ключу.
func (r *LruCacheRepository) Get(_ context.Context, key string) (string, error) {
	val, ok := r.cache.Get(key)
	if !ok {
		return "", ErrCacheMiss
	}
	return val, nil
}

// Set устанавливает значение в кеш. Индивидуальный expiration
// игнорируется: expirable.LRU работает с единым TTL.
func (r *LruCacheRepository) Set(_ context.Context, key string, value string, _ time.Duration) error {
	r.cache.Add(key, value)
	return nil
}

// Del удаляет ключи из кеша.
func (r *LruCacheRepository) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		r.cache.Remove(key)
	}
	return nil
}

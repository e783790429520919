package cache

import (
	"sync"
	"time"
)

// Cache 通用缓存接口
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Clear()
	Size() int
}

// InMemoryCache 内存缓存实现
type InMemoryCache[K comparable, V any] struct {
	items      map[K]*cacheItem[V]
	mu         sync.RWMutex
	defaultTTL time.Duration
}

// cacheItem 缓存项
type cacheItem[V any] struct {
	value     V
	expiresAt time.Time
}

// NewInMemoryCache 创建新的内存缓存
func NewInMemoryCache[K comparable, V any](defaultTTL time.Duration) *InMemoryCache[K, V] {
	cache := &InMemoryCache[K, V]{
		items:      make(map[K]*cacheItem[V]),
		defaultTTL: defaultTTL,
	}

	// 启动清理 goroutine
	go cache.startCleanup()

	return cache
}

// Get 获取缓存值
func (c *InMemoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists {
		var zero V
		return zero, false
	}

	// 检查是否过期
	if time.Now().After(item.expiresAt) {
		// 异步删除过期项
		go c.Delete(key)
		var zero V
		return zero, false
	}

	return item.value, true
}

// Set 设置缓存值
func (c *InMemoryCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl == 0 {
		ttl = c.defaultTTL
	}

	c.items[key] = &cacheItem[V]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete 删除缓存项
func (c *InMemoryCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear 清空缓存
func (c *InMemoryCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*cacheItem[V])
}

// Size 获取缓存大小
func (c *InMemoryCache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// startCleanup 启动清理 goroutine（定期清理过期项）
func (c *InMemoryCache[K, V]) startCleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanup()
	}
}

// cleanup 清理过期项
func (c *InMemoryCache[K, V]) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
		}
	}
}

// SpotPriceCache 现货价缓存：Kraken 限频时用上一次的价格兜底
type SpotPriceCache struct {
	cache *InMemoryCache[string, float64]
}

// NewSpotPriceCache 创建现货价缓存
func NewSpotPriceCache() *SpotPriceCache {
	return &SpotPriceCache{
		cache: NewInMemoryCache[string, float64](30 * time.Second),
	}
}

// Get 获取现货价
func (pc *SpotPriceCache) Get(pair string) (float64, bool) {
	return pc.cache.Get(pair)
}

// Set 设置现货价
func (pc *SpotPriceCache) Set(pair string, price float64) {
	pc.cache.Set(pair, price, 30*time.Second)
}

// MarketCache 市场发现缓存：同一个 15 分钟窗口内不重复查 Gamma
type MarketCache[V any] struct {
	cache *InMemoryCache[string, V]
}

// NewMarketCache 创建市场发现缓存
func NewMarketCache[V any]() *MarketCache[V] {
	return &MarketCache[V]{
		cache: NewInMemoryCache[string, V](time.Minute),
	}
}

// Get 按市场 slug 获取
func (mc *MarketCache[V]) Get(slug string) (V, bool) {
	return mc.cache.Get(slug)
}

// Set 按市场 slug 缓存
func (mc *MarketCache[V]) Set(slug string, v V, ttl time.Duration) {
	mc.cache.Set(slug, v, ttl)
}

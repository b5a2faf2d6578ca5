package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// cacheItem guarda el valor y el tiempo de expiración.
type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// LocalStore es el nivel en proceso: un mapa con TTL y limpieza periódica.
type LocalStore struct {
	store      map[string]cacheItem
	mu         sync.RWMutex // RWMutex permite múltiples lectores o un solo escritor.
	defaultTTL time.Duration
	now        func() time.Time
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewLocalStore crea el nivel local.
// - defaultTTL: vida por defecto de las claves.
// - cleanupInterval: cada cuánto se eliminan las claves expiradas.
func NewLocalStore(defaultTTL, cleanupInterval time.Duration) *LocalStore {
	c := &LocalStore{
		store:      make(map[string]cacheItem),
		defaultTTL: defaultTTL,
		now:        func() time.Time { return time.Now().UTC() },
		stopChan:   make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}
	return c
}

func (c *LocalStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.store[key]
	if !ok || c.now().After(item.expiresAt) {
		return nil, false, nil
	}

	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true, nil
}

func (c *LocalStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	stored := make([]byte, len(val))
	copy(stored, val)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = cacheItem{value: stored, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *LocalStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.store {
		if strings.HasPrefix(key, prefix) {
			delete(c.store, key)
			n++
		}
	}
	return n, nil
}

func (c *LocalStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Stop detiene la goroutine de limpieza. Deberías llamarlo al apagar la aplicación.
func (c *LocalStore) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *LocalStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			for key, item := range c.store {
				if c.now().After(item.expiresAt) {
					delete(c.store, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopChan:
			return
		}
	}
}

var _ Store = (*LocalStore)(nil)

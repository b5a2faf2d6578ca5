package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// TwoTier combina un nivel local rápido con un nivel compartido opcional.
// Los fallos del nivel compartido se registran y se tratan como 'miss'.
type TwoTier struct {
	local     Store
	shared    Store
	localTTL  time.Duration
	sharedTTL time.Duration
	log       *zap.Logger
}

// NewTwoTier crea la caché. shared puede ser nil (solo nivel local).
func NewTwoTier(local, shared Store, localTTL, sharedTTL time.Duration, log *zap.Logger) *TwoTier {
	return &TwoTier{
		local:     local,
		shared:    shared,
		localTTL:  localTTL,
		sharedTTL: sharedTTL,
		log:       log,
	}
}

func (c *TwoTier) Get(ctx context.Context, key string, dest any) (bool, error) {
	if data, ok, _ := c.local.Get(ctx, key); ok {
		if err := json.Unmarshal(data, dest); err == nil {
			return true, nil
		}
	}

	if c.shared == nil {
		return false, nil
	}

	data, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		c.log.Warn("⚠️ Caché compartida no disponible, se trata como miss", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warn("Valor corrupto en caché compartida", zap.String("key", key), zap.Error(err))
		return false, nil
	}

	// backfill del nivel local
	_ = c.local.Set(ctx, key, data, c.localTTL)
	return true, nil
}

func (c *TwoTier) Set(ctx context.Context, key string, val any) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}

	if err := c.local.Set(ctx, key, data, c.localTTL); err != nil {
		return err
	}
	if c.shared != nil {
		if err := c.shared.Set(ctx, key, data, c.sharedTTL); err != nil {
			c.log.Warn("Cache update failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// Remove borra primero del nivel local y después barre el compartido por prefijo.
func (c *TwoTier) Remove(ctx context.Context, prefix string) error {
	if _, err := c.local.DeletePrefix(ctx, prefix); err != nil {
		return err
	}
	if c.shared == nil {
		return nil
	}

	n, err := c.shared.DeletePrefix(ctx, prefix)
	if err != nil {
		c.log.Warn("Cache deletion failed", zap.String("prefix", prefix), zap.Error(err))
		return nil
	}
	c.log.Debug("cache invalidated", zap.String("prefix", prefix), zap.Int("shared_keys", n))
	return nil
}

func (c *TwoTier) RemoveAll(ctx context.Context, prefixes ...string) error {
	for _, p := range prefixes {
		if err := c.Remove(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

var _ Cache = (*TwoTier)(nil)

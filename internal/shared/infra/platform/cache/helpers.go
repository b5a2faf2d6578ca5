package cache

import (
	"context"

	"go.uber.org/zap"
)

// GetOrSet devuelve el valor cacheado o, en un 'miss', invoca fallback una vez
// y cachea su resultado. Llamadas concurrentes con la misma clave pueden
// invocar fallback más de una vez. Un fallo al cachear se registra y no
// afecta al valor devuelto.
func GetOrSet[T any](ctx context.Context, c Cache, log *zap.Logger, key string, fallback func(ctx context.Context) (T, error)) (T, error) {
	if c != nil {
		var cached T
		if ok, err := c.Get(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	v, err := fallback(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if c != nil {
		if err := c.Set(ctx, key, v); err != nil && log != nil {
			log.Warn("⚠️ No se pudo cachear el valor", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}

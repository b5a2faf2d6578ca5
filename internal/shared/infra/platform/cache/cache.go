package cache

import (
	"context"
	"time"
)

// Store es un nivel de caché que trabaja con bytes ya serializados.
type Store interface {
	// Get devuelve (nil, false, nil) en un 'miss'.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set guarda el valor; ttl <= 0 usa el TTL por defecto del nivel.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// DeletePrefix elimina todas las claves que empiezan por prefix y devuelve cuántas borró.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Cache define la interfaz para una caché de clave-valor genérica.
type Cache interface {
	// Get intenta poblar 'dest' (que debe ser un puntero) con el valor asociado a la 'key'.
	// Devuelve (true, nil) si hay un 'hit' y 'dest' fue rellenado.
	// Devuelve (false, nil) si es un 'miss'.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set serializa y guarda el valor.
	Set(ctx context.Context, key string, val any) error

	// Remove invalida la clave y todas las que la tienen como prefijo.
	Remove(ctx context.Context, prefix string) error

	RemoveAll(ctx context.Context, prefixes ...string) error
}

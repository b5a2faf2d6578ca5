package utils

import (
	"context"
	"errors"
	"time"
)

var ErrConditionNotMet = errors.New("condition not met")

// Sleep espera d o hasta que el contexto se cancele.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry ejecuta una función con reintentos configurables
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if serr := Sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	return err
}

// Backoff describe una espera exponencial: Base, 2*Base, 4*Base... acotada por Max.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	return d
}

// PollUntil evalúa cond hasta que devuelva true o se agoten los intentos.
// Los errores de cond cuentan como intento fallido; se devuelve el último.
func PollUntil(ctx context.Context, b Backoff, cond func(ctx context.Context) (bool, error)) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		ok, err := cond(ctx)
		if err == nil && ok {
			return nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}
		if serr := Sleep(ctx, b.Delay(i)); serr != nil {
			return serr
		}
	}

	if lastErr != nil {
		return lastErr
	}
	return ErrConditionNotMet
}

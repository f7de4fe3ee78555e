// Package convert bounds admission to the external office to PDF converter.
// The converter process pool is shared, so callers own one Limiter and pass
// it to every component that converts.
package convert

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// DefaultSlots is the number of conversions allowed to run at once
const DefaultSlots = 2

// Converter turns an office document into PDF bytes
type Converter interface {
	ToPDF(ctx context.Context, filename string, data []byte) ([]byte, error)
}

// ConverterFunc adapts a function to Converter
type ConverterFunc func(ctx context.Context, filename string, data []byte) ([]byte, error)

// ToPDF calls f
func (f ConverterFunc) ToPDF(ctx context.Context, filename string, data []byte) ([]byte, error) {
	return f(ctx, filename, data)
}

// Limiter is a counting semaphore over converter invocations
type Limiter struct {
	sem   *semaphore.Weighted
	slots int64
}

// NewLimiter creates a limiter with slots permits. Values below one use
// DefaultSlots.
func NewLimiter(slots int) *Limiter {
	n := int64(slots)
	if n < 1 {
		n = DefaultSlots
	}
	return &Limiter{sem: semaphore.NewWeighted(n), slots: n}
}

// Slots returns the permit count
func (l *Limiter) Slots() int {
	return int(l.slots)
}

// Do runs fn once a permit is available. It returns the context error if ctx
// is done first.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for converter slot: %w", err)
	}
	defer l.sem.Release(1)
	return fn(ctx)
}

// Limit wraps conv so every call goes through l
func Limit(conv Converter, l *Limiter) Converter {
	return ConverterFunc(func(ctx context.Context, filename string, data []byte) ([]byte, error) {
		var out []byte
		err := l.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = conv.ToPDF(ctx, filename, data)
			if err != nil {
				return fmt.Errorf("failed to convert %s: %w", filename, err)
			}
			return nil
		})
		return out, err
	})
}

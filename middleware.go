package eventbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// RateLimit creates a middleware that waits for a token from limiter before
// running the handler. If the handler context ends first (publish cancelled
// or handler timeout) the invocation fails without running the handler.
//
// Example usage:
//
//	limiter := rate.NewLimiter(rate.Every(time.Second), 5)
//	bus.Subscribe("room_created", notify, eventbus.WithMiddleware(eventbus.RateLimit(limiter)))
func RateLimit(limiter *rate.Limiter) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev Event) error {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit: %w", err)
			}
			return next(ctx, ev)
		}
	}
}

// CircuitBreaker creates a middleware that runs the handler through cb.
// While the breaker is open the handler is skipped and the invocation fails
// fast, which keeps a broken downstream from holding every publish until
// its timeout.
//
// Example usage:
//
//	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "webhook"})
//	bus.Subscribe("room_created", send, eventbus.WithMiddleware(eventbus.CircuitBreaker(cb)))
func CircuitBreaker(cb *gobreaker.CircuitBreaker) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev Event) error {
			_, err := cb.Execute(func() (interface{}, error) {
				return nil, next(ctx, ev)
			})
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				ContextLogger(ctx).Warn("circuit breaker rejected handler",
					"breaker", cb.Name(),
					"state", cb.State().String())
				return fmt.Errorf("circuit %q: %w", cb.Name(), err)
			}
			return err
		}
	}
}

package eventbus

import "context"

// Handler reacts to a published event. A returned error or a panic marks
// the invocation as failed; neither is propagated to the publisher.
type Handler func(ctx context.Context, ev Event) error

// Middleware wraps a handler with additional behavior.
type Middleware func(Handler) Handler

// Chain applies middlewares to h. The first middleware is the outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			h = middlewares[i](h)
		}
	}
	return h
}

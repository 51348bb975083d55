package eventbus

import (
	"log/slog"
	"time"
)

// DefaultBusName is used when no name is configured
var DefaultBusName = "event-bus"

// DefaultHandlerTimeout bounds how long a publish waits for a single handler.
// A negative timeout disables the bound.
var DefaultHandlerTimeout = 30 * time.Second

// options holds configuration for the bus (unexported)
type options struct {
	name             string
	logger           *slog.Logger
	handlerTimeout   time.Duration
	onError          func(*HandlerError)
	tracingEnabled   bool
	metricsEnabled   bool
	failureThreshold float64
}

// Option configures a Bus
type Option func(*options)

// WithName sets the bus name used for logging, metrics and tracing
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets a custom logger for the bus
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHandlerTimeout sets the per-handler execution timeout for all
// subscriptions that do not set their own.
// A negative value disables the timeout; a hung handler then stalls its
// publish indefinitely.
func WithHandlerTimeout(d time.Duration) Option {
	return func(o *options) {
		o.handlerTimeout = d
	}
}

// WithErrorHandler sets a callback invoked for every handler failure, after
// the failure has been counted and logged. It runs on the handler's goroutine.
func WithErrorHandler(fn func(*HandlerError)) Option {
	return func(o *options) {
		if fn != nil {
			o.onError = fn
		}
	}
}

// WithTracing enables/disables OpenTelemetry tracing
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables/disables OpenTelemetry metrics
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithFailureThreshold sets the handler failure ratio at or above which
// Status reports the bus as degraded. Zero disables the check.
func WithFailureThreshold(ratio float64) Option {
	return func(o *options) {
		if ratio >= 0 && ratio <= 1 {
			o.failureThreshold = ratio
		}
	}
}

// newOptions creates options with defaults and applies provided options
func newOptions(opts ...Option) *options {
	o := &options{
		name:           DefaultBusName,
		handlerTimeout: DefaultHandlerTimeout,
		onError:        func(*HandlerError) {},
		tracingEnabled: true,
		metricsEnabled: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// subscribeOptions holds configuration for one subscription (unexported)
type subscribeOptions struct {
	name        string
	timeout     time.Duration
	middlewares []Middleware
}

// SubscribeOption configures a subscription
type SubscribeOption func(*subscribeOptions)

// WithHandlerName sets the identity used for this handler in logs, traces
// and introspection. Defaults to the handler's function name.
func WithHandlerName(name string) SubscribeOption {
	return func(o *subscribeOptions) {
		o.name = name
	}
}

// WithSubscriberTimeout overrides the bus handler timeout for this
// subscription. A negative value disables the timeout.
func WithSubscriberTimeout(d time.Duration) SubscribeOption {
	return func(o *subscribeOptions) {
		o.timeout = d
	}
}

// WithMiddleware wraps the handler with the given middlewares.
// The first middleware is the outermost.
func WithMiddleware(mws ...Middleware) SubscribeOption {
	return func(o *subscribeOptions) {
		o.middlewares = append(o.middlewares, mws...)
	}
}

func newSubscribeOptions(opts ...SubscribeOption) *subscribeOptions {
	o := &subscribeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Package eventbus provides an in-process publish/subscribe dispatcher.
//
// Components register handlers for named event types and publish events
// without knowing who consumes them. Every handler of an event runs in its
// own goroutine and Publish returns once all of them have finished, so a
// publisher observes the effects of its event before it continues.
//
// Basic example:
//
//	bus := eventbus.NewBus(eventbus.WithName("rooms"))
//	defer bus.Close(ctx)
//
//	sub, err := bus.Subscribe("room_created", func(ctx context.Context, ev eventbus.Event) error {
//	    fmt.Println("room", ev.GetString("channel_name"))
//	    return nil
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	bus.Publish(ctx, eventbus.New("room_created", map[string]any{"channel_name": "gaming"}))
//	bus.Unsubscribe("room_created", sub.ID)
//
// Failure isolation:
// A handler that returns an error, panics or exceeds its timeout is counted
// in Stats, logged with the event and handler identity, and reported to the
// WithErrorHandler callback. Its siblings still run and Publish still returns
// nil. Publish only fails for an event without a type or a closed bus.
//
// Bus Options:
//   - WithName: bus name used in logs, metrics and traces. Default is "event-bus".
//   - WithLogger: set logger for the bus. Default is slog.Default().
//   - WithHandlerTimeout: per-handler timeout. Default is 30s, negative disables.
//   - WithErrorHandler: callback for every handler failure.
//   - WithTracing: enable/disable OpenTelemetry tracing. Default is true.
//   - WithMetrics: enable/disable OpenTelemetry metrics. Default is true.
//   - WithFailureThreshold: failure ratio at which Status reports degraded.
//
// Subscribe Options:
//   - WithHandlerName: identity used in logs and introspection.
//   - WithSubscriberTimeout: override the bus handler timeout.
//   - WithMiddleware: wrap the handler, e.g. with RateLimit or CircuitBreaker.
//
// Subpackages:
//   - events: catalog of the application's event types and constructors
//   - audit: persist events to memory, Redis streams, MongoDB or PostgreSQL
//   - notify: forward selected events to NATS or Kafka
//   - subscriber: analytics and per-user statistics subscribers
//   - monitor/http, monitor/grpc: expose stats and health
package eventbus

package eventbus_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rbaliyan/eventbus"
)

func Example() {
	ctx := context.Background()
	bus := eventbus.NewBus(
		eventbus.WithName("rooms"),
		eventbus.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		eventbus.WithTracing(false),
		eventbus.WithMetrics(false),
	)
	defer bus.Close(ctx)

	bus.Subscribe("room_created", func(ctx context.Context, ev eventbus.Event) error {
		fmt.Println("created", ev.GetString("channel_name"))
		return nil
	})
	bus.Subscribe("room_created", func(ctx context.Context, ev eventbus.Event) error {
		return errors.New("webhook down")
	})

	if err := bus.Publish(ctx, eventbus.New("room_created", map[string]any{"channel_name": "gaming"})); err != nil {
		fmt.Println("publish failed:", err)
	}

	stats, _ := bus.StatsFor("room_created")
	fmt.Printf("published=%d executed=%d failed=%d\n", stats.Published, stats.HandlersExecuted, stats.HandlersFailed)
	// Output:
	// created gaming
	// published=1 executed=1 failed=1
}

func ExampleBus_Unsubscribe() {
	ctx := context.Background()
	bus := eventbus.TestBus()
	defer bus.Close(ctx)

	sub, _ := bus.Subscribe("room_deleted", func(ctx context.Context, ev eventbus.Event) error {
		fmt.Println("deleted")
		return nil
	})
	bus.Publish(ctx, eventbus.New("room_deleted", nil))
	bus.Unsubscribe("room_deleted", sub.ID)
	bus.Publish(ctx, eventbus.New("room_deleted", nil))

	stats, _ := bus.StatsFor("room_deleted")
	fmt.Println("published", stats.Published)
	// Output:
	// deleted
	// published 2
}

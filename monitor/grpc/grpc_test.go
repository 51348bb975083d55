package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rbaliyan/eventbus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func check(t *testing.T, r *Reporter) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := r.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: r.Service()})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	return resp.Status
}

func TestReporterSync(t *testing.T) {
	bus := eventbus.TestBus(eventbus.WithName("rooms"))
	r := New(bus)

	if r.Service() != "rooms" {
		t.Errorf("service = %q", r.Service())
	}
	if got := r.Sync(context.Background()); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("sync = %s", got)
	}
	if got := check(t, r); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("check = %s", got)
	}

	bus.Close(context.Background())
	r.Sync(context.Background())
	if got := check(t, r); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("closed bus: check = %s", got)
	}
}

func TestReporterDegraded(t *testing.T) {
	newDegradedBus := func() *eventbus.Bus {
		bus := eventbus.TestBus(eventbus.WithFailureThreshold(0.5))
		bus.Subscribe("room_created", func(context.Context, eventbus.Event) error { return errors.New("boom") })
		bus.Publish(context.Background(), eventbus.New("room_created", nil))
		return bus
	}

	bus := newDegradedBus()
	defer bus.Close(context.Background())
	if got := New(bus).Sync(context.Background()); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("degraded default: %s", got)
	}

	bus2 := newDegradedBus()
	defer bus2.Close(context.Background())
	r := New(bus2, WithDegradedNotServing(), WithService("events"))
	if got := r.Sync(context.Background()); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("degraded not serving: %s", got)
	}
	if got := check(t, r); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("check = %s", got)
	}
}

func TestReporterSharedServer(t *testing.T) {
	shared := health.NewServer()
	bus := eventbus.TestBus()
	defer bus.Close(context.Background())

	r := New(bus, WithHealthServer(shared), WithService("bus"))
	r.Sync(context.Background())

	resp, err := shared.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "bus"})
	if err != nil || resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("got %v, %v", resp, err)
	}
}

func TestReporterRun(t *testing.T) {
	bus := eventbus.TestBus()
	r := New(bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	bus.Close(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for check(t, r) != healthpb.HealthCheckResponse_NOT_SERVING {
		if time.Now().After(deadline) {
			t.Fatal("status never changed to NOT_SERVING")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestReporterOverGRPC(t *testing.T) {
	bus := eventbus.TestBus(eventbus.WithName("rooms"))
	defer bus.Close(context.Background())
	r := New(bus)
	r.Sync(context.Background())

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	r.Register(server)
	go server.Serve(lis)
	defer server.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "rooms"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %s", resp.Status)
	}

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "unknown"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("unknown service: got %v", err)
	}
}

func TestReporterRegistersOnNew(t *testing.T) {
	bus := eventbus.TestBus(eventbus.WithName("rooms"))
	r := New(bus)

	if got := check(t, r); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("check before sync = %s", got)
	}

	bus.Close(context.Background())
	if got := check(t, New(bus, WithService("after-close"))); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("closed bus: check = %s", got)
	}
}

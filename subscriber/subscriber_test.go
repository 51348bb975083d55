package subscriber

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rbaliyan/eventbus"
	"github.com/rbaliyan/eventbus/audit"
	"github.com/rbaliyan/eventbus/events"
	"github.com/rbaliyan/eventbus/notify"
)

func TestAnalytics(t *testing.T) {
	a := NewAnalytics()
	ctx := context.Background()

	a.OnRoomCreated(ctx, events.RoomCreated(1, 2, 3, "lobby"))
	a.OnRoomDeleted(ctx, events.RoomDeleted(1, 2, 3, time.Minute))
	a.OnCommandExecuted(ctx, eventbus.New(events.CommandExecuted, map[string]any{"command_name": "sala", "user_id": int64(2)}))

	tracked := a.Tracked()
	if len(tracked) != 3 {
		t.Fatalf("tracked %d events, want 3", len(tracked))
	}
	want := []map[string]any{
		{"channel_id": int64(1), "owner_id": int64(2), "guild_id": int64(3), "channel_name": "lobby"},
		{"channel_id": int64(1), "owner_id": int64(2), "duration_seconds": int64(60)},
		{"command_name": "sala", "user_id": int64(2), "guild_id": nil, "success": true},
	}
	for i, te := range tracked {
		if diff := cmp.Diff(want[i], te.Fields); diff != "" {
			t.Errorf("%s fields mismatch (-want +got):\n%s", te.EventType, diff)
		}
	}
}

func TestUserStats(t *testing.T) {
	s := NewUserStats()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.OnRoomCreated(ctx, events.RoomCreated(int64(i), 7, 1, "r"))
	}
	s.OnRoomCreated(ctx, events.RoomCreated(9, 8, 1, "r"))
	s.OnRoomDeleted(ctx, events.RoomDeleted(1, 7, 1, 30*time.Second))
	s.OnRoomDeleted(ctx, events.RoomDeleted(2, 7, 1, 45*time.Second))
	s.OnCommandExecuted(ctx, events.CommandRan("sala", 8, 1, true))
	s.OnRoomCreated(ctx, eventbus.New(events.TempRoomCreated, nil))

	want := UserCounters{RoomsCreated: 3, RoomsDeleted: 2, TotalRoomTimeSeconds: 75}
	if diff := cmp.Diff(want, s.User(7)); diff != "" {
		t.Errorf("user 7 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(UserCounters{}, s.User(404)); diff != "" {
		t.Errorf("unknown user mismatch (-want +got):\n%s", diff)
	}

	top := s.Top(MetricRoomsCreated, 1)
	if diff := cmp.Diff([]UserScore{{UserID: 7, Value: 3}}, top); diff != "" {
		t.Errorf("top mismatch (-want +got):\n%s", diff)
	}
	top = s.Top(MetricCommandsExecuted, 0)
	if diff := cmp.Diff([]UserScore{{UserID: 8, Value: 1}, {UserID: 7, Value: 0}}, top); diff != "" {
		t.Errorf("top commands mismatch (-want +got):\n%s", diff)
	}
}

func TestSetup(t *testing.T) {
	bus := eventbus.TestBus()
	defer bus.Close(context.Background())

	notifier := notify.NewMemoryNotifier()
	store := audit.NewMemoryStore()
	set, err := Setup(bus, WithNotifier(notifier), WithAudit(store))
	if err != nil {
		t.Fatal(err)
	}
	// 3 analytics + 3 stats + 3 notification + 4 audit
	if len(set.Subscriptions) != 13 {
		t.Errorf("got %d subscriptions, want 13", len(set.Subscriptions))
	}

	ctx := context.Background()
	bus.Publish(ctx, events.RoomCreated(1, 2, 3, "lobby"))
	bus.Publish(ctx, events.CommandRan("sala", 2, 3, true))
	bus.Publish(ctx, events.MemberJoined(5, 3, "ana"))

	if n := len(set.Analytics.Tracked()); n != 2 {
		t.Errorf("analytics tracked %d, want 2", n)
	}
	if got := set.UserStats.User(2); got.RoomsCreated != 1 || got.CommandsExecuted != 1 {
		t.Errorf("user stats = %+v", got)
	}
	if notifier.Count("") != 2 {
		t.Errorf("notifications = %d, want 2", notifier.Count(""))
	}
	if store.Len() != 3 {
		t.Errorf("audit records = %d, want 3", store.Len())
	}

	want := map[string]eventbus.Stats{
		events.TempRoomCreated:   {Published: 1, HandlersExecuted: 4},
		events.TempRoomDeleted:   {},
		events.CommandExecuted:   {Published: 1, HandlersExecuted: 3},
		events.MemberJoinedGuild: {Published: 1, HandlersExecuted: 2},
	}
	if diff := cmp.Diff(want, bus.Stats()); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestSetupClosedBus(t *testing.T) {
	bus := eventbus.TestBus()
	bus.Close(context.Background())

	if _, err := Setup(bus); err == nil {
		t.Fatal("setup on closed bus succeeded")
	}
}

package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rbaliyan/eventbus"
	"github.com/rbaliyan/eventbus/events"
	"syreclabs.com/go/faker"
)

type failingWriter struct{}

func (failingWriter) Write(context.Context, *Record) error {
	return errors.New("disk full")
}

// dataInt reads a numeric payload value regardless of how the store decoded it
func dataInt(rec *Record, key string) int64 {
	n, _ := eventbus.New(rec.EventType, rec.Data).GetInt64(key)
	return n
}

func TestFromEvent(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := events.RoomCreated(10, 20, 30, "lobby", eventbus.WithTimestamp(at))

	rec := FromEvent(ev)
	if rec.ID == "" || rec.ID == ev.ID() {
		t.Errorf("record id = %q", rec.ID)
	}
	if rec.EventID != ev.ID() || rec.EventType != events.TempRoomCreated {
		t.Errorf("got %s/%s", rec.EventID, rec.EventType)
	}
	if !rec.OccurredAt.Equal(at) {
		t.Errorf("occurred_at = %v", rec.OccurredAt)
	}
	if rec.RecordedAt.IsZero() {
		t.Error("recorded_at not set")
	}
	if diff := cmp.Diff(ev.Data(), rec.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestHandler(t *testing.T) {
	bus := eventbus.TestBus()
	defer bus.Close(context.Background())

	store := NewMemoryStore()
	subs, err := Subscribe(bus, store)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != len(events.All()) {
		t.Fatalf("got %d subscriptions, want %d", len(subs), len(events.All()))
	}

	name := faker.Internet().UserName()
	bus.Publish(context.Background(), events.MemberJoined(5, 6, name))
	bus.Publish(context.Background(), events.CommandRan("sala", 5, 6, true))

	records, err := store.List(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].EventType != events.CommandExecuted || records[1].EventType != events.MemberJoinedGuild {
		t.Errorf("records not newest first: %s, %s", records[0].EventType, records[1].EventType)
	}
	if records[1].Data[events.KeyMemberName] != name {
		t.Errorf("member_name = %v", records[1].Data[events.KeyMemberName])
	}
}

func TestHandlerWriteFailure(t *testing.T) {
	bus := eventbus.TestBus()
	defer bus.Close(context.Background())

	if _, err := Subscribe(bus, failingWriter{}, events.TempRoomDeleted); err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(context.Background(), events.RoomDeleted(1, 2, 3, time.Minute)); err != nil {
		t.Fatalf("write failure reached publisher: %v", err)
	}
	stats, _ := bus.StatsFor(events.TempRoomDeleted)
	if stats.HandlersFailed != 1 {
		t.Errorf("failed = %d, want 1", stats.HandlersFailed)
	}
}

func TestSubscribeRollsBack(t *testing.T) {
	bus := eventbus.TestBus()
	defer bus.Close(context.Background())

	_, err := Subscribe(bus, NewMemoryStore(), events.TempRoomCreated, "")
	if !errors.Is(err, eventbus.ErrEmptyEventType) {
		t.Fatalf("got %v, want ErrEmptyEventType", err)
	}
	if n := len(bus.Handlers(events.TempRoomCreated)); n != 0 {
		t.Errorf("%d subscriptions left behind", n)
	}
	if _, err := Subscribe(bus, nil); err == nil {
		t.Error("nil writer accepted")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := FromEvent(events.RoomCreated(1, 2, 3, "a"))
	first.RecordedAt = time.Now().Add(-time.Hour)
	second := FromEvent(events.RoomDeleted(1, 2, 3, time.Minute))
	third := FromEvent(events.RoomCreated(4, 2, 3, "b"))
	for _, rec := range []*Record{first, second, third} {
		if err := store.Write(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("Get returns a copy", func(t *testing.T) {
		got, err := store.Get(ctx, first.ID)
		if err != nil {
			t.Fatal(err)
		}
		got.Data["channel_name"] = "changed"
		again, _ := store.Get(ctx, first.ID)
		if again.Data["channel_name"] != "a" {
			t.Error("stored record was modified through Get")
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("List filters", func(t *testing.T) {
		tests := []struct {
			name   string
			filter Filter
			want   []string
		}{
			{name: "all", filter: Filter{}, want: []string{third.ID, second.ID, first.ID}},
			{name: "by type", filter: Filter{EventType: events.TempRoomCreated}, want: []string{third.ID, first.ID}},
			{name: "limit", filter: Filter{Limit: 1}, want: []string{third.ID}},
			{name: "since", filter: Filter{Since: time.Now().Add(-time.Minute)}, want: []string{third.ID, second.ID}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				records, err := store.List(ctx, tt.filter)
				if err != nil {
					t.Fatal(err)
				}
				var ids []string
				for _, r := range records {
					ids = append(ids, r.ID)
				}
				if diff := cmp.Diff(tt.want, ids); diff != "" {
					t.Errorf("ids mismatch (-want +got):\n%s", diff)
				}
				n, _ := store.Count(ctx, tt.filter)
				if n != int64(len(tt.want)) {
					t.Errorf("count = %d, want %d", n, len(tt.want))
				}
			})
		}
	})
}

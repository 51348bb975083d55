package subscriber

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/rbaliyan/eventbus"
	"github.com/rbaliyan/eventbus/events"
)

// UserCounters holds the activity counters of one user
type UserCounters struct {
	RoomsCreated         int64 `json:"rooms_created"`
	RoomsDeleted         int64 `json:"rooms_deleted"`
	CommandsExecuted     int64 `json:"commands_executed"`
	TotalRoomTimeSeconds int64 `json:"total_room_time_seconds"`
}

// Metric selects a counter for rankings
type Metric string

// Metrics
const (
	MetricRoomsCreated     Metric = "rooms_created"
	MetricRoomsDeleted     Metric = "rooms_deleted"
	MetricCommandsExecuted Metric = "commands_executed"
	MetricTotalRoomTime    Metric = "total_room_time_seconds"
)

func (c UserCounters) value(m Metric) int64 {
	switch m {
	case MetricRoomsDeleted:
		return c.RoomsDeleted
	case MetricCommandsExecuted:
		return c.CommandsExecuted
	case MetricTotalRoomTime:
		return c.TotalRoomTimeSeconds
	default:
		return c.RoomsCreated
	}
}

// UserScore is one entry of a ranking
type UserScore struct {
	UserID int64 `json:"user_id"`
	Value  int64 `json:"value"`
}

var (
	roomMilestones    = []int64{1, 10, 100}
	commandMilestones = []int64{10, 50, 100, 500, 1000}
)

// UserStats keeps per-user activity counters
type UserStats struct {
	mu    sync.Mutex
	users map[int64]*UserCounters
}

// NewUserStats creates an empty user statistics subscriber
func NewUserStats() *UserStats {
	return &UserStats{
		users: make(map[int64]*UserCounters),
	}
}

// OnRoomCreated counts a room for its owner
func (s *UserStats) OnRoomCreated(ctx context.Context, ev eventbus.Event) error {
	ownerID, ok := ev.GetInt64(events.KeyOwnerID)
	if !ok || ownerID == 0 {
		eventbus.ContextLogger(ctx).Warn("event without owner_id, stats skipped", "event_id", ev.ID())
		return nil
	}

	s.mu.Lock()
	c := s.counters(ownerID)
	c.RoomsCreated++
	total := c.RoomsCreated
	s.mu.Unlock()

	logger := eventbus.ContextLogger(ctx)
	logger.Info("user stats updated", "user_id", ownerID, "rooms_created", total)
	if slices.Contains(roomMilestones, total) {
		logger.Info("user reached room milestone", "user_id", ownerID, "rooms_created", total)
	}
	return nil
}

// OnRoomDeleted counts a deleted room and its lifetime for its owner
func (s *UserStats) OnRoomDeleted(ctx context.Context, ev eventbus.Event) error {
	ownerID, ok := ev.GetInt64(events.KeyOwnerID)
	if !ok || ownerID == 0 {
		return nil
	}
	duration, _ := ev.GetInt64(events.KeyDurationSeconds)

	s.mu.Lock()
	c := s.counters(ownerID)
	c.RoomsDeleted++
	c.TotalRoomTimeSeconds += duration
	snapshot := *c
	s.mu.Unlock()

	eventbus.ContextLogger(ctx).Info("user stats updated",
		"user_id", ownerID,
		"rooms_deleted", snapshot.RoomsDeleted,
		"total_room_time_seconds", snapshot.TotalRoomTimeSeconds)
	return nil
}

// OnCommandExecuted counts a command for the user who ran it
func (s *UserStats) OnCommandExecuted(ctx context.Context, ev eventbus.Event) error {
	userID, ok := ev.GetInt64(events.KeyUserID)
	if !ok || userID == 0 {
		return nil
	}

	s.mu.Lock()
	c := s.counters(userID)
	c.CommandsExecuted++
	total := c.CommandsExecuted
	s.mu.Unlock()

	logger := eventbus.ContextLogger(ctx)
	logger.Info("user stats updated", "user_id", userID, "commands_executed", total)
	if slices.Contains(commandMilestones, total) {
		logger.Info("user reached command milestone", "user_id", userID, "commands_executed", total)
	}
	return nil
}

// counters must be called with s.mu held
func (s *UserStats) counters(userID int64) *UserCounters {
	c, ok := s.users[userID]
	if !ok {
		c = &UserCounters{}
		s.users[userID] = c
	}
	return c
}

// User returns a copy of the counters of userID; unknown users have zero counters.
func (s *UserStats) User(userID int64) UserCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.users[userID]; ok {
		return *c
	}
	return UserCounters{}
}

// Top returns up to limit users ranked by metric, highest first.
// Ties are broken by user ID.
func (s *UserStats) Top(metric Metric, limit int) []UserScore {
	s.mu.Lock()
	scores := make([]UserScore, 0, len(s.users))
	for id, c := range s.users {
		scores = append(scores, UserScore{UserID: id, Value: c.value(metric)})
	}
	s.mu.Unlock()

	slices.SortFunc(scores, func(a, b UserScore) int {
		if a.Value != b.Value {
			return cmp.Compare(b.Value, a.Value)
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores
}

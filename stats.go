package eventbus

import (
	"sync"
	"sync/atomic"
)

// Stats holds the counters for one event type.
type Stats struct {
	Published        int64 `json:"published"`
	HandlersExecuted int64 `json:"handlers_executed"`
	HandlersFailed   int64 `json:"handlers_failed"`
}

// Handled returns the number of handler invocations that finished, successfully or not.
func (s Stats) Handled() int64 {
	return s.HandlersExecuted + s.HandlersFailed
}

// counters is the live, atomically updated form of Stats
type counters struct {
	published atomic.Int64
	executed  atomic.Int64
	failed    atomic.Int64
}

func (c *counters) load() Stats {
	return Stats{
		Published:        c.published.Load(),
		HandlersExecuted: c.executed.Load(),
		HandlersFailed:   c.failed.Load(),
	}
}

// statsTable maps event types to their counters. Entries are created on
// first use and never removed.
type statsTable struct {
	entries sync.Map // map[string]*counters
}

func (t *statsTable) counters(eventType string) *counters {
	if v, ok := t.entries.Load(eventType); ok {
		return v.(*counters)
	}
	v, _ := t.entries.LoadOrStore(eventType, &counters{})
	return v.(*counters)
}

func (t *statsTable) get(eventType string) (Stats, bool) {
	v, ok := t.entries.Load(eventType)
	if !ok {
		return Stats{}, false
	}
	return v.(*counters).load(), true
}

func (t *statsTable) snapshot() map[string]Stats {
	result := make(map[string]Stats)
	t.entries.Range(func(key, value any) bool {
		result[key.(string)] = value.(*counters).load()
		return true
	})
	return result
}

func (t *statsTable) total() Stats {
	var total Stats
	t.entries.Range(func(_, value any) bool {
		s := value.(*counters).load()
		total.Published += s.Published
		total.HandlersExecuted += s.HandlersExecuted
		total.HandlersFailed += s.HandlersFailed
		return true
	})
	return total
}

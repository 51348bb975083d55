package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StatusCode represents the health state of the bus
type StatusCode string

const (
	// StatusHealthy indicates the bus is functioning normally
	StatusHealthy StatusCode = "healthy"
	// StatusDegraded indicates handlers fail at or above the configured threshold
	StatusDegraded StatusCode = "degraded"
	// StatusUnhealthy indicates the bus is closed
	StatusUnhealthy StatusCode = "unhealthy"
)

// Status contains detailed status information for the bus
type Status struct {
	Code      StatusCode     `json:"status"`
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CheckedAt time.Time      `json:"checked_at"`
}

// IsHealthy returns true if the status code is healthy
func (s *Status) IsHealthy() bool {
	return s.Code == StatusHealthy
}

// Status summarizes the bus state for monitoring. Publishing failures do not
// exist from the producer's side, so handler health is only visible here,
// in Stats and in the log stream.
func (b *Bus) Status(ctx context.Context) *Status {
	total := b.stats.total()
	result := &Status{
		CheckedAt: time.Now(),
		Details: map[string]any{
			"bus_name":          b.name,
			"event_types":       len(b.registry.EventTypes()),
			"handlers":          b.registry.Len(),
			"published":         total.Published,
			"handlers_executed": total.HandlersExecuted,
			"handlers_failed":   total.HandlersFailed,
		},
	}

	if !b.Running() {
		result.Code = StatusUnhealthy
		result.Message = "bus is closed"
		return result
	}

	if handled := total.Handled(); b.failureThreshold > 0 && handled > 0 {
		ratio := float64(total.HandlersFailed) / float64(handled)
		result.Details["failure_ratio"] = ratio
		if ratio >= b.failureThreshold {
			result.Code = StatusDegraded
			result.Message = fmt.Sprintf("handler failure ratio %.2f at or above %.2f", ratio, b.failureThreshold)
			return result
		}
	}

	result.Code = StatusHealthy
	result.Message = "bus is healthy"
	return result
}

// Health performs a health check suitable for health probes.
// Returns nil unless the bus is unhealthy.
func (b *Bus) Health(ctx context.Context) error {
	status := b.Status(ctx)
	if status.Code == StatusUnhealthy {
		return errors.New(status.Message)
	}
	return nil
}

// Package http exposes bus statistics, subscriptions and health over HTTP
// using protoJSON encoded structpb bodies.
package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rbaliyan/eventbus"
	"github.com/rbaliyan/eventbus/audit"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Handler implements http.Handler for bus introspection.
type Handler struct {
	bus       *eventbus.Bus
	audit     audit.Reader
	mux       *http.ServeMux
	marshaler protojson.MarshalOptions
}

// Option configures a Handler
type Option func(*Handler)

// WithAuditReader serves audit records under /v1/audit
func WithAuditReader(r audit.Reader) Option {
	return func(h *Handler) {
		h.audit = r
	}
}

// New creates a new HTTP handler for bus.
func New(bus *eventbus.Bus, opts ...Option) *Handler {
	h := &Handler{
		bus: bus,
		mux: http.NewServeMux(),
		marshaler: protojson.MarshalOptions{
			EmitUnpopulated: true,
			UseProtoNames:   true,
		},
	}
	for _, opt := range opts {
		opt(h)
	}

	// GET /v1/stats - statistics of every event type
	// GET /v1/stats/{event_type} - statistics of one event type
	// GET /v1/handlers/{event_type} - subscriptions of one event type
	// GET /v1/health - bus status
	// GET /v1/audit - audit records, when an audit reader is configured
	h.mux.HandleFunc("/v1/stats", h.get(h.handleStats))
	h.mux.HandleFunc("/v1/stats/", h.get(h.handleStatsFor))
	h.mux.HandleFunc("/v1/handlers/", h.get(h.handleHandlers))
	h.mux.HandleFunc("/v1/health", h.get(h.handleHealth))
	if h.audit != nil {
		h.mux.HandleFunc("/v1/audit", h.get(h.handleAudit))
	}

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// get restricts a route to GET requests
func (h *Handler) get(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next(w, r)
	}
}

// handleStats handles GET /v1/stats
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]any)
	for eventType, s := range h.bus.Stats() {
		stats[eventType] = statsFields(s)
	}
	h.writeStruct(w, http.StatusOK, map[string]any{
		"bus":   h.bus.Name(),
		"stats": stats,
	})
}

// handleStatsFor handles GET /v1/stats/{event_type}
func (h *Handler) handleStatsFor(w http.ResponseWriter, r *http.Request) {
	eventType, ok := h.pathParam(w, r, "/v1/stats/")
	if !ok {
		return
	}
	s, found := h.bus.StatsFor(eventType)
	if !found {
		h.writeError(w, http.StatusNotFound, "unknown event type: "+eventType)
		return
	}
	body := statsFields(s)
	body["event_type"] = eventType
	h.writeStruct(w, http.StatusOK, body)
}

// handleHandlers handles GET /v1/handlers/{event_type}
func (h *Handler) handleHandlers(w http.ResponseWriter, r *http.Request) {
	eventType, ok := h.pathParam(w, r, "/v1/handlers/")
	if !ok {
		return
	}
	if _, found := h.bus.StatsFor(eventType); !found {
		h.writeError(w, http.StatusNotFound, "unknown event type: "+eventType)
		return
	}

	subs := h.bus.Handlers(eventType)
	handlers := make([]any, 0, len(subs))
	for _, sub := range subs {
		entry := map[string]any{
			"id":   sub.ID,
			"name": sub.Name,
		}
		if sub.Timeout != 0 {
			entry["timeout"] = sub.Timeout.String()
		}
		handlers = append(handlers, entry)
	}
	h.writeStruct(w, http.StatusOK, map[string]any{
		"event_type": eventType,
		"handlers":   handlers,
	})
}

// handleHealth handles GET /v1/health. Unhealthy buses answer 503.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.bus.Status(r.Context())
	code := http.StatusOK
	if status.Code == eventbus.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	h.writeStruct(w, code, map[string]any{
		"status":     string(status.Code),
		"message":    status.Message,
		"details":    status.Details,
		"checked_at": status.CheckedAt.UTC().Format(time.RFC3339Nano),
	})
}

// handleAudit handles GET /v1/audit?event_type=...&limit=...&since=...
func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.audit.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	list := make([]any, 0, len(records))
	for _, rec := range records {
		list = append(list, map[string]any{
			"id":          rec.ID,
			"event_id":    rec.EventID,
			"event_type":  rec.EventType,
			"data":        normalize(rec.Data),
			"occurred_at": rec.OccurredAt.UTC().Format(time.RFC3339Nano),
			"recorded_at": rec.RecordedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	h.writeStruct(w, http.StatusOK, map[string]any{"records": list})
}

func parseAuditFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{EventType: q.Get("event_type")}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid limit: %q", v)
		}
		filter.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid since: %w", err)
		}
		filter.Since = t
	}
	return filter, nil
}

func (h *Handler) pathParam(w http.ResponseWriter, r *http.Request, prefix string) (string, bool) {
	param := strings.TrimPrefix(r.URL.Path, prefix)
	if param == "" || strings.Contains(param, "/") {
		h.writeError(w, http.StatusBadRequest, "event_type is required")
		return "", false
	}
	return param, true
}

func statsFields(s eventbus.Stats) map[string]any {
	return map[string]any{
		"published":         s.Published,
		"handlers_executed": s.HandlersExecuted,
		"handlers_failed":   s.HandlersFailed,
	}
}

// normalize converts values structpb cannot represent into strings
func normalize(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if _, err := structpb.NewValue(v); err != nil {
			v = fmt.Sprint(v)
		}
		out[k] = v
	}
	return out
}

func (h *Handler) writeStruct(w http.ResponseWriter, code int, body map[string]any) {
	msg, err := structpb.NewStruct(body)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	data, err := h.marshaler.Marshal(msg)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func (h *Handler) writeError(w http.ResponseWriter, code int, message string) {
	data, _ := h.marshaler.Marshal(&structpb.Struct{
		Fields: map[string]*structpb.Value{"error": structpb.NewStringValue(message)},
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

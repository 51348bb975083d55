package eventbus

import (
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

const (
	spanKeyEventID             = "event.id"
	spanKeyEventType           = "event.type"
	spanKeyEventBus            = "event.bus"
	spanKeyEventHandler        = "event.handler"
	spanKeyEventSubscriptionID = "subscription.id"
)

var idCounter uint64

// NewID generates a new unique ID
func NewID() string {
	u, err := uuid.NewRandom()
	if err == nil {
		return u.String()
	}
	return strconv.FormatUint(atomic.AddUint64(&idCounter, 1), 10)
}

// funcName resolves a readable name for a handler function.
// Method values carry a "-fm" suffix and closures a ".funcN" suffix; the
// former is trimmed, the latter kept so anonymous handlers stay distinguishable.
func funcName(h Handler) string {
	if h == nil {
		return ""
	}
	fn := runtime.FuncForPC(reflect.ValueOf(h).Pointer())
	if fn == nil {
		return "handler"
	}
	name := strings.TrimSuffix(fn.Name(), "-fm")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

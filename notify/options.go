package notify

import (
	"github.com/rbaliyan/eventbus/payload"
	"golang.org/x/time/rate"
)

// DefaultSubjectPrefix is the NATS subject prefix used when none is configured
const DefaultSubjectPrefix = "notifications"

// options holds configuration shared by the notifiers and the subscriber (unexported)
type options struct {
	codec         payload.Codec
	subjectPrefix string
	limiter       *rate.Limiter
}

// Option configures a notifier or subscriber
type Option func(*options)

// WithCodec sets how notification bodies are encoded. Default is JSON.
func WithCodec(codec payload.Codec) Option {
	return func(o *options) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// WithSubjectPrefix sets the NATS subject prefix; notifications are
// published to <prefix>.<kind>.
func WithSubjectPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.subjectPrefix = prefix
		}
	}
}

// WithLimiter throttles the subscriber's handlers with limiter. A handler
// that cannot get a token before its timeout fails and is counted as such.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(o *options) {
		o.limiter = limiter
	}
}

func newOptions(opts ...Option) *options {
	o := &options{
		codec:         payload.Default(),
		subjectPrefix: DefaultSubjectPrefix,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

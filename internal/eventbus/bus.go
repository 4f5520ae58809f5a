// Package eventbus is the single in-process publish/subscribe hub the
// engine sits on. It wraps Watermill's in-memory gochannel pub/sub
// (mirroring the teacher's WatermillEventBus adapter) to give the
// engine exactly one consumer goroutine pulling from one inbound
// channel per topic, as called for by §5's concurrency model: gateways
// publish from their own goroutines, the engine's router is the only
// thing that ever dequeues and dispatches.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind identifies one of the five inbound event kinds or the four
// outbound event kinds of §6.
type Kind string

const (
	KindTick     Kind = "tick"
	KindOrder    Kind = "order"
	KindTrade    Kind = "trade"
	KindPosition Kind = "position"
	KindTimer    Kind = "timer"

	KindFollowLog    Kind = "follow_log"
	KindPosDelta     Kind = "follow_pos_delta"
	KindFollowOrder  Kind = "follow_order"
	KindModifyPos    Kind = "follow_modify_pos"
)

// Handler processes a decoded event payload. Returning an error only
// logs; it never blocks the bus or crashes the process (§7: every
// handler runs inside a catch-all).
type Handler func(payload []byte) error

// Bus is the in-process event bus. The zero value is not usable; call
// New.
type Bus struct {
	pub    message.Publisher
	sub    message.Subscriber
	router *message.Router
	logger *zap.Logger
}

// Config controls the underlying gochannel transport.
type Config struct {
	BufferSize int
}

func DefaultConfig() Config { return Config{BufferSize: 1000} }

// New constructs a Bus backed by an in-memory gochannel pub/sub.
func New(logger *zap.Logger, cfg Config) (*Bus, error) {
	wmLogger := watermill.NopLogger{}
	if logger != nil {
		wmLogger = watermillZapLogger{logger}
	}

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(cfg.BufferSize)},
		wmLogger,
	)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("eventbus: new router: %w", err)
	}

	return &Bus{pub: pubSub, sub: pubSub, router: router, logger: logger}, nil
}

// Run starts the router's single consumer loop. It blocks until ctx is
// cancelled or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Close stops the router.
func (b *Bus) Close() error { return b.router.Close() }

// Publish encodes payload as JSON and publishes it on kind's topic.
func (b *Bus) Publish(kind Kind, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("eventbus: marshal %s payload: %w", kind, err)
	}
	msg := message.NewMessage(uuid.New().String(), raw)
	msg.Metadata.Set("kind", string(kind))
	return b.pub.Publish(string(kind), msg)
}

// Subscribe registers handler as the consumer for kind's topic, wired
// through the router so exactly one goroutine ever invokes handler.
// Panics or returned errors from handler are caught and logged, never
// propagated — matching §7's catch-all-per-handler contract.
func (b *Bus) Subscribe(ctx context.Context, kind Kind, handler Handler) error {
	b.router.AddNoPublisherHandler(
		"handle_"+string(kind),
		string(kind),
		b.sub,
		func(msg *message.Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if b.logger != nil {
						b.logger.Error("eventbus: handler panicked",
							zap.String("kind", string(kind)),
							zap.Any("recover", r))
					}
					err = nil
				}
			}()
			if herr := handler(msg.Payload); herr != nil {
				if b.logger != nil {
					b.logger.Error("eventbus: handler failed",
						zap.String("kind", string(kind)), zap.Error(herr))
				}
			}
			return nil
		},
	)
	return nil
}

// watermillZapLogger adapts zap to watermill's logging interface.
type watermillZapLogger struct{ l *zap.Logger }

func (w watermillZapLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.l.Error(msg, zap.Error(err), zap.Any("fields", fields))
}
func (w watermillZapLogger) Info(msg string, fields watermill.LogFields) {
	w.l.Info(msg, zap.Any("fields", fields))
}
func (w watermillZapLogger) Debug(msg string, fields watermill.LogFields) {
	w.l.Debug(msg, zap.Any("fields", fields))
}
func (w watermillZapLogger) Trace(msg string, fields watermill.LogFields) {
	w.l.Debug(msg, zap.Any("fields", fields))
}
func (w watermillZapLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillZapLogger{w.l.With(zap.Any("fields", fields))}
}

// Package natsutil provides typed NATS publish/subscribe helpers with
// OpenTelemetry trace propagation and dead-letter support.
package natsutil

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publish serializes v as JSON and publishes to the given subject.
// Trace context from ctx is injected into NATS message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return nc.PublishMsg(msg)
}

// Subscribe registers a handler that deserializes JSON messages of type T.
// Trace context is extracted from NATS message headers and passed to the
// handler. Malformed messages are silently dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return // drop malformed messages
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		handler(ctx, v)
	})
}

// Consume registers a queue-group subscription for worker pools. Messages
// that fail to decode, and messages whose handler returns an error, are
// republished to the dlq subject with the failure reason in the
// Lexbase-Error header. The original payload bytes travel to the DLQ
// unchanged so they can be inspected or replayed.
func Consume[T any](nc *nats.Conn, subject, queue, dlq string, log *slog.Logger, handler func(context.Context, T) error) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}
	return nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))

		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			log.Error("message decode failed", "subject", subject, "error", err)
			deadLetter(ctx, nc, dlq, msg.Data, err.Error())
			return
		}
		if err := handler(ctx, v); err != nil {
			log.Error("message handler failed", "subject", subject, "error", err)
			deadLetter(ctx, nc, dlq, msg.Data, err.Error())
		}
	})
}

func deadLetter(ctx context.Context, nc *nats.Conn, dlq string, payload []byte, reason string) {
	if dlq == "" {
		return
	}
	msg := &nats.Msg{
		Subject: dlq,
		Data:    payload,
		Header:  nats.Header{"Lexbase-Error": []string{reason}},
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	// DLQ publish is best-effort; the failure is already logged upstream.
	_ = nc.PublishMsg(msg)
}

// Package nats announces processed images on a NATS subject so downstream
// consumers (search indexers, the web catalog) can react without polling
// the database.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mkorchagin/photostock/internal/infrastructure/resilience"
)

type Notifier struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
}

func New(url, subject string) (*Notifier, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Notifier, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}

	conn, err := nats.Connect(
		url,
		nats.Name("photostock"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Notifier{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (n *Notifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

type processedEvent struct {
	ImageID     int64     `json:"image_id"`
	ProcessedAt time.Time `json:"processed_at"`
}

// PublishImageProcessed emits one event per stored image. The pipeline
// treats publish failures as non-fatal, so the wrapped temporary error is
// advisory rather than load-bearing.
func (n *Notifier) PublishImageProcessed(ctx context.Context, imageID int64) error {
	payload, err := json.Marshal(processedEvent{
		ImageID:     imageID,
		ProcessedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal processed event: %w", err)
	}

	call := func(_ context.Context) error {
		if err := n.conn.Publish(n.subject, payload); err != nil {
			return fmt.Errorf("nats publish image=%s: %w", strconv.FormatInt(imageID, 10), err)
		}
		return nil
	}

	if n.executor != nil {
		err = n.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

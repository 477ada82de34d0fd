package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/resilience"
)

type Queue struct {
	conn          *nats.Conn
	subject       string
	resultSubject string
	queueGroup    string
	executor      *resilience.Executor
	logger        *slog.Logger
}

type Options struct {
	// ResultSubject receives one JSON event per result record; empty disables it.
	ResultSubject        string
	QueueGroup           string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string, options Options) (*Queue, error) {
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
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("certificate-harvester"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newQueue(conn, subject, options, logger), nil
}

func newQueue(conn *nats.Conn, subject string, options Options, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	group := options.QueueGroup
	if group == "" {
		group = "harvesters"
	}
	return &Queue{
		conn:          conn,
		subject:       subject,
		resultSubject: options.ResultSubject,
		queueGroup:    group,
		executor:      options.ResilienceExecutor,
		logger:        logger,
	}
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

type addressRequest struct {
	Address     string    `json:"address"`
	RequestedAt time.Time `json:"requested_at"`
}

func (q *Queue) PublishAddressRequested(ctx context.Context, address string) error {
	payload, err := json.Marshal(addressRequest{Address: address, RequestedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal address request: %w", err)
	}
	return q.publish(ctx, q.subject, payload)
}

// SubscribeAddressRequested blocks until ctx is done. Messages of one
// subscription are delivered serially, so the handler never runs twice at once.
func (q *Queue) SubscribeAddressRequested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.queueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		address := decodeAddress(msg.Data)
		if address == "" {
			q.logger.Warn("address_request_invalid", "payload", string(msg.Data))
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, address); err != nil {
			q.logger.Error("address_request_failed", "address", address, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// Append publishes rec on the result subject. It makes the queue usable as a
// result sink.
func (q *Queue) Append(ctx context.Context, rec domain.ResultRecord) error {
	if q.resultSubject == "" {
		return nil
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal result event: %w", err)
	}
	return q.publish(ctx, q.resultSubject, payload)
}

func (q *Queue) publish(ctx context.Context, subject string, payload []byte) error {
	err := q.executor.Execute(ctx, "nats.publish", func(context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}, classifyNATSError)
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}

// decodeAddress accepts the JSON request and a bare address string.
func decodeAddress(data []byte) string {
	var req addressRequest
	if err := json.Unmarshal(data, &req); err == nil {
		return req.Address
	}
	var address string
	if err := json.Unmarshal(data, &address); err == nil {
		return address
	}
	return string(data)
}

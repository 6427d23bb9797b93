package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
)

// NATSOptions configure NATSPublisher.
type NATSOptions struct {
	URL     string
	Subject string
	// Stream, when set, makes publishes durable through JetStream. The stream is
	// created on first use and bound to Subject.
	Stream  string
	Timeout time.Duration
}

// NATSPublisher publishes events to a NATS subject, optionally through JetStream.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
	timeout time.Duration
}

// NewNATSPublisher connects to NATS and prepares the stream if one is configured.
func NewNATSPublisher(ctx context.Context, opts NATSOptions) (*NATSPublisher, error) {
	if opts.URL == "" || opts.Subject == "" {
		return nil, derrors.ConfigError("nats url and subject are required").Build()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	conn, err := nats.Connect(opts.URL,
		nats.Name("sitedeploy"),
		nats.Timeout(opts.Timeout),
	)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryNetwork, "failed to connect to NATS").
			Retryable().
			WithContext("url", opts.URL).
			Build()
	}

	p := &NATSPublisher{conn: conn, subject: opts.Subject, timeout: opts.Timeout}
	if opts.Stream != "" {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
		sctx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		_, err = js.CreateOrUpdateStream(sctx, jetstream.StreamConfig{
			Name:        opts.Stream,
			Description: "sitedeploy build notifications",
			Subjects:    []string{opts.Subject},
			MaxMsgs:     10_000,
		})
		if err != nil {
			conn.Close()
			return nil, derrors.WrapError(err, derrors.CategoryNetwork, "failed to prepare JetStream stream").
				WithContext("stream", opts.Stream).
				Build()
		}
		p.js = js
	}

	slog.Info("NATS publisher initialized",
		"url", opts.URL,
		"subject", opts.Subject,
		"stream", opts.Stream)
	return p, nil
}

// Publish sends e. With JetStream the call waits for the stream's ack.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("Sitedeploy-Event", e.Type)
	msg.Header.Set(jetstream.MsgIDHeader, e.BuildID+":"+e.Type)

	if p.js != nil {
		if _, err := p.js.PublishMsg(ctx, msg); err != nil {
			return derrors.WrapError(err, derrors.CategoryNetwork, "failed to publish event").Retryable().Build()
		}
	} else {
		if err := p.conn.PublishMsg(msg); err != nil {
			return derrors.WrapError(err, derrors.CategoryNetwork, "failed to publish event").Retryable().Build()
		}
		if err := p.conn.FlushWithContext(ctx); err != nil {
			return derrors.WrapError(err, derrors.CategoryNetwork, "failed to flush event").Retryable().Build()
		}
	}

	slog.Debug("Published build event", "type", e.Type, "build_id", e.BuildID, "subject", p.subject)
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

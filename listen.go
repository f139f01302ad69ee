package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

// Publisher sends a message body on a routing key.
type Publisher interface {
	PublishContext(ctx context.Context, key string, body []byte) error
}

// Listener turns AMQP messages into report and recreate runs.
type Listener struct {
	reporter  *Reporter
	recreator *Recreator
	publisher Publisher
}

func NewListener(reporter *Reporter, recreator *Recreator, publisher Publisher) *Listener {
	return &Listener{
		reporter:  reporter,
		recreator: recreator,
		publisher: publisher,
	}
}

// Handle processes one message. A returned error means the message should be
// rejected.
func (l *Listener) Handle(ctx context.Context, routingKey string, body []byte) error {
	ctx, span := otel.Tracer(otelName).Start(ctx, "Handle")
	defer span.End()

	log.Tracef("Got message: %s", routingKey)

	switch routingKey {
	case reportKey:
		return l.handleReport(ctx, body)
	case recreateKey:
		return l.handleRecreate(ctx, body)
	default:
		return errors.Errorf("unhandled routing key %s", routingKey)
	}
}

func (l *Listener) handleReport(ctx context.Context, body []byte) error {
	var req ReportRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return errors.Wrap(err, "Failed decoding report request")
		}
	}

	report, err := l.reporter.BuildSnapshot(ctx, req.GroupName)
	if err != nil {
		return errors.Wrap(err, "Failed building snapshot")
	}

	msg, err := report.Snapshot.Bytes()
	if err != nil {
		return err
	}

	if err = l.publisher.PublishContext(ctx, snapshotKey, msg); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Error publishing snapshot of %d groups", len(report.Snapshot)))
	}

	log.Infof("Published snapshot: %s", report)
	return nil
}

func (l *Listener) handleRecreate(ctx context.Context, body []byte) error {
	var req RecreateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return errors.Wrap(err, "Failed decoding recreate request")
	}
	if err := req.Snapshot.Validate(); err != nil {
		return err
	}

	result, err := l.recreator.Recreate(ctx, req.Snapshot, req.Mode())
	if err != nil {
		return errors.Wrap(err, "Failed recreating groups")
	}

	// Per-member failures don't warrant a redelivery; replaying would delete
	// the groups again.
	if err = result.Err(); err != nil {
		log.Error(errors.Wrap(err, "Recreation finished with errors"))
	}
	return nil
}

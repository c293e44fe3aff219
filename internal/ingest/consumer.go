// Package ingest consumes inspection events from Kafka and records them in the store.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/integrityos/internal/config"
	"github.com/kiranshivaraju/integrityos/internal/store"
	"github.com/kiranshivaraju/integrityos/pkg/models"
	"github.com/segmentio/kafka-go"
)

// InspectionWriter is the store operation the consumer needs. Writes are keyed by the
// message position, so a redelivered message is stored once.
type InspectionWriter interface {
	RecordInspectionEvent(ctx context.Context, key string, insp *models.Inspection) (bool, error)
}

// messageReader is the subset of *kafka.Reader used by Consumer.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads inspection events and stores them. Each message is committed once it
// has been stored, found to be a duplicate, or found to be invalid. Store failures leave
// the message uncommitted so that it is redelivered.
type Consumer struct {
	reader messageReader
	store  InspectionWriter
}

// NewConsumer creates a consumer group reader for the configured topic.
func NewConsumer(cfg config.KafkaConfig, s InspectionWriter) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: r, store: s}
}

// Run processes messages until ctx is canceled or an unrecoverable error occurs.
// It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

// handle stores one event. Invalid events are logged and dropped.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var in models.InspectionInput
	if err := json.Unmarshal(msg.Value, &in); err != nil {
		slog.Warn("skipping malformed inspection event",
			"partition", msg.Partition, "offset", msg.Offset, "error", err)
		return nil
	}

	insp, err := in.Inspection()
	if err != nil {
		slog.Warn("skipping invalid inspection event",
			"partition", msg.Partition, "offset", msg.Offset, "error", err)
		return nil
	}

	created, err := c.store.RecordInspectionEvent(ctx, eventKey(msg), &insp)
	if err != nil {
		if errors.Is(err, store.ErrInvalidReference) {
			slog.Warn("skipping inspection event for unknown asset",
				"partition", msg.Partition, "offset", msg.Offset, "asset_id", insp.AssetID)
			return nil
		}
		return fmt.Errorf("store inspection: %w", err)
	}
	if !created {
		slog.Info("skipping redelivered inspection event",
			"partition", msg.Partition, "offset", msg.Offset)
		return nil
	}

	slog.Debug("inspection event stored",
		"inspection_id", insp.ID, "asset_id", insp.AssetID, "offset", msg.Offset)
	return nil
}

// eventKey identifies a message by its position in the topic.
func eventKey(msg kafka.Message) string {
	return fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Package kafka is the Kafka alternative to the AMQP activity transport.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"pfm/internal/events"
	"pfm/internal/log"
)

const handlerAttempts = 3

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Client struct {
	writer messageWriter
	reader messageReader
	topic  string
	retry  time.Duration
	logger *log.Logger
}

var (
	_ events.Publisher = (*Client)(nil)
	_ events.Consumer  = (*Client)(nil)
)

// NewClient prepares a writer for topic and, when groupID is set, a
// consumer-group reader. Neither dials until first use.
func NewClient(brokers []string, topic, groupID string) (*Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}

	c := &Client{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
		},
		topic:  topic,
		retry:  time.Second,
		logger: log.Default().WithComponent(log.ComponentKafka),
	}
	if groupID != "" {
		c.reader = kafkago.NewReader(kafkago.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		})
	}
	return c, nil
}

// PublishActivity writes the notice keyed by activity id.
func (c *Client) PublishActivity(ctx context.Context, id int64, correlationID string) error {
	body, err := events.NewActivityMessage(id, correlationID).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	err = c.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(strconv.FormatInt(id, 10)),
		Value: body,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	c.logger.DebugContext(ctx, "Published activity message", log.FieldActivityID, id, "topic", c.topic)
	return nil
}

// ConsumeActivity feeds handler until ctx ends. A message is committed once
// handled, or once handlerAttempts tries have failed; the journal keeps the
// row pending so the worker's periodic pass picks it up later.
func (c *Client) ConsumeActivity(ctx context.Context, handler events.Handler) error {
	if c.reader == nil {
		return errors.New("kafka: client has no consumer group")
	}
	c.logger.InfoContext(ctx, "Started consuming activity messages", "topic", c.topic)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		msg, err := events.ActivityMessageFromJSON(m.Value)
		if err != nil {
			c.logger.ErrorContext(ctx, "Failed to unmarshal message", "error", err, "offset", m.Offset)
		} else {
			c.handle(ctx, handler, msg)
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

func (c *Client) handle(ctx context.Context, handler events.Handler, msg *events.ActivityMessage) {
	for attempt := 1; attempt <= handlerAttempts; attempt++ {
		err := handler(ctx, msg)
		if err == nil {
			return
		}
		c.logger.WarnContext(ctx, "Failed to handle message",
			"error", err, log.FieldActivityID, msg.ID, "attempt", attempt)
		if attempt == handlerAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retry):
		}
	}
}

func (c *Client) Close() error {
	var errs []error
	if c.writer != nil {
		if err := c.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("writer: %w", err))
		}
	}
	if c.reader != nil {
		if err := c.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("reader: %w", err))
		}
	}
	return errors.Join(errs...)
}

package backend

import (
	"context"
	"errors"
	"fmt"

	"pfm/internal/amqp"
	"pfm/internal/events"
	"pfm/internal/kafka"
	"pfm/internal/log"
	"pfm/internal/sheets"
	gsheet "pfm/internal/sheets/google"
	"pfm/internal/sheets/memory"
)

// ErrNoBroker is returned when a consumer is requested without a broker.
var ErrNoBroker = errors.New("no broker configured")

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentEvents),
	}
}

func (f *DefaultFactory) CreatePublisher(ctx context.Context, config Config) events.Publisher {
	switch config.Broker {
	case AMQPBroker:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without publishing", "error", err)
			return events.Nop{}
		}
		f.logger.InfoContext(ctx, "Initialized AMQP publisher",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		return client
	case KafkaBroker:
		client, err := kafka.NewClient(config.KafkaBrokers, config.KafkaTopic, "")
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize Kafka client, continuing without publishing", "error", err)
			return events.Nop{}
		}
		f.logger.InfoContext(ctx, "Initialized Kafka publisher", "topic", config.KafkaTopic)
		return client
	default:
		f.logger.InfoContext(ctx, "No broker configured, activity is journaled only")
		return events.Nop{}
	}
}

func (f *DefaultFactory) CreateConsumer(ctx context.Context, config Config) (events.Consumer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Broker {
	case AMQPBroker:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AMQP consumer: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized AMQP consumer", "queue", config.AMQPQueue)
		return client, nil
	case KafkaBroker:
		if config.KafkaGroupID == "" {
			return nil, fmt.Errorf("kafka consumer needs a group id")
		}
		client, err := kafka.NewClient(config.KafkaBrokers, config.KafkaTopic, config.KafkaGroupID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Kafka consumer: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Kafka consumer",
			"topic", config.KafkaTopic,
			"group", config.KafkaGroupID)
		return client, nil
	default:
		return nil, ErrNoBroker
	}
}

func (f *DefaultFactory) CreateWriter(ctx context.Context, config Config) (sheets.ActivityWriter, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.InfoContext(ctx, "No spreadsheet configured, exporting activity to memory")
		return memory.New(), nil
	}

	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized Google Sheets exporter", "sheet", config.GoogleSheetName)
	return cli, nil
}

// Package backend builds the activity transport and the activity exporter
// selected by configuration.
package backend

import (
	"context"

	"pfm/internal/events"
	"pfm/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Factory creates the broker ends and the exporter.
type Factory interface {
	// CreatePublisher never fails the web front end: a broker that cannot be
	// reached yields a no-op publisher.
	CreatePublisher(ctx context.Context, config Config) events.Publisher
	CreateConsumer(ctx context.Context, config Config) (events.Consumer, error)
	CreateWriter(ctx context.Context, config Config) (sheets.ActivityWriter, error)
}

// Config holds configuration for backend creation
type Config struct {
	Broker BrokerType

	// AMQP specific
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Kafka specific
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Google Sheets specific; no spreadsheet means the memory exporter
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BrokerType represents the type of broker
type BrokerType string

const (
	NoBroker    BrokerType = "none"
	AMQPBroker  BrokerType = "amqp"
	KafkaBroker BrokerType = "kafka"
)

// String implements fmt.Stringer
func (bt BrokerType) String() string {
	return string(bt)
}

// IsValid returns true if the broker type is valid
func (bt BrokerType) IsValid() bool {
	switch bt {
	case NoBroker, AMQPBroker, KafkaBroker:
		return true
	default:
		return false
	}
}

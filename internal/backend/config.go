package backend

import (
	"fmt"

	"pfm/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	broker := BrokerType(appConfig.Broker)
	if !broker.IsValid() {
		return Config{}, fmt.Errorf("invalid broker type in config: %s (want one of %v)", appConfig.Broker, GetBrokerTypeStrings())
	}

	return Config{
		Broker: broker,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		KafkaBrokers: appConfig.KafkaBrokers,
		KafkaTopic:   appConfig.KafkaTopic,
		KafkaGroupID: appConfig.KafkaGroupID,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Broker.IsValid() {
		return fmt.Errorf("invalid broker type: %s", c.Broker)
	}

	switch c.Broker {
	case AMQPBroker:
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP URL is required for the amqp broker")
		}
		if c.AMQPExchange == "" || c.AMQPQueue == "" {
			return fmt.Errorf("AMQP exchange and queue are required for the amqp broker")
		}
	case KafkaBroker:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("at least one Kafka broker is required for the kafka broker")
		}
		if c.KafkaTopic == "" {
			return fmt.Errorf("Kafka topic is required for the kafka broker")
		}
	case NoBroker:
		// Activity is journaled only; the worker's polling pass exports it.
	}

	return nil
}

// GetBrokerTypes returns all valid broker types
func GetBrokerTypes() []BrokerType {
	return []BrokerType{NoBroker, AMQPBroker, KafkaBroker}
}

// GetBrokerTypeStrings returns all valid broker type strings
func GetBrokerTypeStrings() []string {
	types := GetBrokerTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}

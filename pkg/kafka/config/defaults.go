package kafka_config

import "time"

const (
	DefaultKafkaBrokers = "localhost:9092"

	DefaultNotificationsTopic    = "booking-notifications"
	DefaultNotificationsDLQTopic = "booking-notifications-dlq"

	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerWriteTimeout = 10 * time.Second
	DefaultProducerRequireAcks  = -1 // Require all replicas
	DefaultProducerCompression  = "snappy"

	DefaultEnableMiddleware = true
)

package config

import "time"

const (
	EnvAPIBaseURL     = "BOOKER_API_URL"
	EnvDataDir        = "BOOKER_DATA_DIR"
	EnvRequestTimeout = "BOOKER_REQUEST_TIMEOUT"

	EnvPort            = "PORT"
	EnvReadTimeout     = "SERVER_READ_TIMEOUT"
	EnvWriteTimeout    = "SERVER_WRITE_TIMEOUT"
	EnvIdleTimeout     = "SERVER_IDLE_TIMEOUT"
	EnvShutdownTimeout = "SERVER_SHUTDOWN_TIMEOUT"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvMongoOpTimeout    = "MONGO_OP_TIMEOUT"

	EnvKafkaBrokers = "KAFKA_BROKERS"
	EnvKafkaTopic   = "KAFKA_TOPIC"

	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"
)

const (
	DefaultAPIBaseURL     = "http://localhost:4000"
	DefaultRequestTimeout = 5 * time.Second

	DefaultPort            = "4000"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultMongoDatabaseName = "booker"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultMongoOpTimeout    = 5 * time.Second

	DefaultKafkaTopic = "booking-events"

	DefaultLogLevel = "info"
)

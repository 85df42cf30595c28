package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration. Empty connection settings select
// the in-memory implementation of that backend.
type Config struct {
	Server    Server
	Postgres  PostgresConfig
	Redis     RedisConfig
	Mongo     MongoConfig
	Kafka     KafkaConfig
	Engine    EngineConfig
	Outbox    OutboxConfig
	Scheduler SchedulerConfig
	LogLevel  string
	LogFormat string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
}

type KafkaConfig struct {
	Brokers           []string
	ConsumerGroup     string
	InboundTopics     []string
	OutboundPrefix    string
	DeadLetterTopic   string
	CommandTopic      string
	ProvisionTopics   bool
	TopicPartitions   int32
	ReplicationFactor int16
}

// EngineConfig tunes the reconciliation workers.
type EngineConfig struct {
	Workers          int
	QueueSize        int
	CommitAttempts   int
	OrderingAttempts int
	OrderingBackoff  time.Duration
	DedupeWindow     time.Duration
	HashRetention    time.Duration
	YouthAge         int
}

type OutboxConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	PublishTimeout time.Duration
}

// SchedulerConfig holds cron specs for periodic maintenance.
type SchedulerConfig struct {
	ParkedReplaySpec string
	DedupePruneSpec  string
	OutboxSweepSpec  string
}

// FromEnv builds a Config from environment variables so main stays lean. A
// .env file in the working directory is loaded first when present; real
// environment variables take precedence over it.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Server: Server{
			Addr:            envString("PROGRESSION_ADDR", ":8080"),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Mongo: MongoConfig{
			URI:      os.Getenv("MONGO_URI"),
			Database: envString("MONGO_DATABASE", "progression"),
		},
		Kafka: KafkaConfig{
			Brokers:           envList("KAFKA_BROKERS"),
			ConsumerGroup:     envString("KAFKA_CONSUMER_GROUP", "progression-engine"),
			InboundTopics:     envListDefault("KAFKA_INBOUND_TOPICS", []string{"public.listing", "public.hearing", "public.defence", "public.legalaid", "public.referencedata", "progression.command"}),
			OutboundPrefix:    envString("KAFKA_OUTBOUND_PREFIX", "public.progression."),
			DeadLetterTopic:   envString("KAFKA_DEAD_LETTER_TOPIC", "progression.dead-letter"),
			CommandTopic:      envString("KAFKA_COMMAND_TOPIC", "progression.command"),
			ProvisionTopics:   envBool("KAFKA_PROVISION_TOPICS", true),
			TopicPartitions:   int32(envInt("KAFKA_TOPIC_PARTITIONS", 6)),
			ReplicationFactor: int16(envInt("KAFKA_REPLICATION_FACTOR", 1)),
		},
		Engine: EngineConfig{
			Workers:          envInt("ENGINE_WORKERS", 8),
			QueueSize:        envInt("ENGINE_QUEUE_SIZE", 1024),
			CommitAttempts:   envInt("ENGINE_COMMIT_ATTEMPTS", 5),
			OrderingAttempts: envInt("ENGINE_ORDERING_ATTEMPTS", 4),
			OrderingBackoff:  envDuration("ENGINE_ORDERING_BACKOFF", 200*time.Millisecond),
			DedupeWindow:     envDuration("ENGINE_DEDUPE_WINDOW", 72*time.Hour),
			HashRetention:    envDuration("ENGINE_HASH_RETENTION", 90*24*time.Hour),
			YouthAge:         envInt("YOUTH_AGE", 18),
		},
		Outbox: OutboxConfig{
			PollInterval:   envDuration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
			BatchSize:      envInt("OUTBOX_BATCH_SIZE", 100),
			MaxAttempts:    envInt("OUTBOX_MAX_ATTEMPTS", 10),
			BaseBackoff:    envDuration("OUTBOX_BASE_BACKOFF", time.Second),
			MaxBackoff:     envDuration("OUTBOX_MAX_BACKOFF", 5*time.Minute),
			PublishTimeout: envDuration("OUTBOX_PUBLISH_TIMEOUT", 5*time.Second),
		},
		Scheduler: SchedulerConfig{
			ParkedReplaySpec: envString("SCHEDULE_PARKED_REPLAY", "@every 1m"),
			DedupePruneSpec:  envString("SCHEDULE_DEDUPE_PRUNE", "@every 10m"),
			OutboxSweepSpec:  envString("SCHEDULE_OUTBOX_SWEEP", "@every 5m"),
		},
		LogLevel:  envString("LOG_LEVEL", "info"),
		LogFormat: envString("LOG_FORMAT", "json"),
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func envList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envListDefault(key string, def []string) []string {
	if v := envList(key); len(v) > 0 {
		return v
	}
	return def
}

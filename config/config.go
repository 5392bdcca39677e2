package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/matcher/pkg/comparator"
	"github.com/Ramsey-B/matcher/pkg/models"
	"github.com/Ramsey-B/matcher/pkg/resolver"
	"github.com/Ramsey-B/matcher/pkg/similarity"
	"github.com/Ramsey-B/matcher/pkg/tracing"
)

type Config struct {
	AppName            string `env:"APP_NAME" env-default:"matcher"`
	LogLevel           string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	PrettyLogs         bool   `env:"PRETTY_LOGS" env-default:"false"`
	TracingEnabled     bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingEndpoint    string `env:"TRACING_ENDPOINT" env-default:""`
	TracingProtocol    string `env:"TRACING_PROTOCOL" env-default:"grpc" validate:"oneof=grpc http"`
	TracingInsecure    bool   `env:"TRACING_INSECURE" env-default:"true"`
	StartupMaxAttempts int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5" validate:"min=1"`
	MetricsAddr        string `env:"METRICS_ADDR" env-default:":9090"`

	// PostgreSQL
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"matcher" validate:"required"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10m"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      uint          `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Matching
	MatchThreshold        float64       `env:"MATCH_THRESHOLD" env-default:"0.8" validate:"gt=0,lte=1"`
	MatchThresholdPerson  float64       `env:"MATCH_THRESHOLD_PERSON" env-default:"0.9" validate:"gte=0,lte=1"`
	MatchThresholdMovie   float64       `env:"MATCH_THRESHOLD_MOVIE" env-default:"0" validate:"gte=0,lte=1"`
	MatchThresholdEpisode float64       `env:"MATCH_THRESHOLD_EPISODE" env-default:"0" validate:"gte=0,lte=1"`
	MatchThresholdSeason  float64       `env:"MATCH_THRESHOLD_SEASON" env-default:"0" validate:"gte=0,lte=1"`
	MatchThresholdSerie   float64       `env:"MATCH_THRESHOLD_SERIE" env-default:"0" validate:"gte=0,lte=1"`
	MergeSurvivor         string        `env:"MERGE_SURVIVOR" env-default:"lowest_id" validate:"oneof=lowest_id highest_score"`
	MaxCandidates         int           `env:"MAX_CANDIDATES" env-default:"50" validate:"min=2"`
	MaxConflictRetries    int           `env:"MAX_CONFLICT_RETRIES" env-default:"3" validate:"min=1"`
	StoreTimeout          time.Duration `env:"STORE_TIMEOUT" env-default:"10s"`
	ScrapClaimTimeout     time.Duration `env:"SCRAP_CLAIM_TIMEOUT" env-default:"30m"`
	WorkerID              string        `env:"WORKER_ID" env-default:""`
	ComparatorWeightsPath string        `env:"COMPARATOR_WEIGHTS_PATH" env-default:""`
	CountriesPath         string        `env:"COUNTRIES_PATH" env-default:"data/countries.json"`
	CountriesFetch        bool          `env:"COUNTRIES_FETCH" env-default:"false"`

	// Similarity
	SimilarityDisplayFloor  float64       `env:"SIMILARITY_DISPLAY_FLOOR" env-default:"0.3" validate:"gte=0,lt=1"`
	SimilarityMaxNeighbours int           `env:"SIMILARITY_MAX_NEIGHBOURS" env-default:"200" validate:"min=1"`
	SimilarityMaxEdges      int           `env:"SIMILARITY_MAX_EDGES" env-default:"50" validate:"min=1"`
	SimilarityWorkers       int           `env:"SIMILARITY_WORKERS" env-default:"2" validate:"min=1"`
	SimilarityQueueSize     int           `env:"SIMILARITY_QUEUE_SIZE" env-default:"1024" validate:"min=1"`
	SimilarityTTL           time.Duration `env:"SIMILARITY_TTL" env-default:"24h"`

	// Redis
	RedisEnabled  bool   `env:"REDIS_ENABLED" env-default:"false"`
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Graph Database (Memgraph)
	GraphEnabled      bool          `env:"GRAPH_ENABLED" env-default:"false"`
	GraphDBHost       string        `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort       int           `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser       string        `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword   string        `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphWriteTimeout time.Duration `env:"GRAPH_WRITE_TIMEOUT" env-default:"5s"`

	// Kafka
	KafkaEnabled       bool          `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaScrapTopic    string        `env:"KAFKA_SCRAP_TOPIC" env-default:"scrap-ready"`
	KafkaConsumerGroup string        `env:"KAFKA_CONSUMER_GROUP" env-default:"matcher"`
	KafkaMaxAttempts   int           `env:"KAFKA_MAX_ATTEMPTS" env-default:"3" validate:"min=1"`
	KafkaRetryBackoff  time.Duration `env:"KAFKA_RETRY_BACKOFF" env-default:"1s"`
	KafkaOutputTopic   string        `env:"KAFKA_OUTPUT_TOPIC" env-default:"canonical-events"`
	KafkaBatchSize     int           `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout  int           `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks  int           `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression   string        `env:"KAFKA_COMPRESSION" env-default:"snappy"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DatabaseUserName, c.DatabasePassword, c.DatabaseHost, c.DatabasePort, c.DatabaseName, c.DatabaseSSLMode)
}

func (c Config) KafkaBatchTimeoutDuration() time.Duration {
	return time.Duration(c.KafkaBatchTimeout) * time.Millisecond
}

func (c Config) Exporter() tracing.ExporterConfig {
	return tracing.ExporterConfig{
		Endpoint: c.TracingEndpoint,
		Protocol: c.TracingProtocol,
		Insecure: c.TracingInsecure,
	}
}

func (c Config) Resolver() resolver.Config {
	cfg := resolver.DefaultConfig()
	cfg.Threshold = c.MatchThreshold
	cfg.TypeThresholds = map[models.ObjectType]float64{
		models.ObjectTypePerson:  c.MatchThresholdPerson,
		models.ObjectTypeMovie:   c.MatchThresholdMovie,
		models.ObjectTypeEpisode: c.MatchThresholdEpisode,
		models.ObjectTypeSeason:  c.MatchThresholdSeason,
		models.ObjectTypeSerie:   c.MatchThresholdSerie,
	}
	cfg.Survivor = resolver.SurvivorPolicy(c.MergeSurvivor)
	cfg.StoreTimeout = c.StoreTimeout
	cfg.MaxCandidates = c.MaxCandidates
	cfg.MaxConflictRetries = c.MaxConflictRetries
	return cfg
}

func (c Config) Similarity() similarity.Config {
	return similarity.Config{
		DisplayFloor:  c.SimilarityDisplayFloor,
		MaxNeighbours: c.SimilarityMaxNeighbours,
		MaxEdges:      c.SimilarityMaxEdges,
	}
}

func (c Config) Scheduler() similarity.SchedulerConfig {
	cfg := similarity.DefaultSchedulerConfig()
	cfg.Workers = c.SimilarityWorkers
	cfg.QueueSize = c.SimilarityQueueSize
	cfg.Timeout = c.StoreTimeout
	return cfg
}

// Weights returns the built-in comparator weights, overridden by the weight file when one
// is configured.
func (c Config) Weights() (comparator.Weights, error) {
	if c.ComparatorWeightsPath == "" {
		return comparator.DefaultWeights(), nil
	}
	return comparator.LoadWeights(c.ComparatorWeightsPath)
}

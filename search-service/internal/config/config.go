package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/wes-io-live/pkg/config"
	"github.com/weiawesome/wes-io-live/pkg/pubsub"
)

// Provider backends.
const (
	BackendDatabase      = "database"
	BackendElasticsearch = "elasticsearch"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Cache         CacheConfig
	Elasticsearch ElasticsearchConfig
	Search        SearchConfig
	PubSub        pubsub.Config `mapstructure:"pubsub"`
	Auth          AuthConfig
	Recorder      RecorderConfig
	Log           LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
	MigrateReadSide bool   `mapstructure:"migrate_read_side"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Prefix  string        `mapstructure:"prefix"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	IndexUsers string   `mapstructure:"index_users"`
	IndexPosts string   `mapstructure:"index_posts"`
}

// SearchConfig selects the user and post provider backend.
// Conversations always use the database.
// Timeout bounds one provider round, independent of the requesting client.
type SearchConfig struct {
	Backend string        `mapstructure:"backend"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type RecorderConfig struct {
	QueueSize      int           `mapstructure:"queue_size"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads ./config/config.yaml, or the file named by CONFIG_FILE.
func Load() (*Config, error) {
	var (
		v   *viper.Viper
		err error
	)
	if path := pkgconfig.GetEnv("CONFIG_FILE", ""); path != "" {
		v, err = pkgconfig.LoadFile(path)
	} else {
		v, err = pkgconfig.Load("./config", "config")
	}
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper applies defaults and env bindings to v and decodes it.
func FromViper(v *viper.Viper) (*Config, error) {
	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8094)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/search.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.migrate_read_side", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.prefix", "search")
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.index_users", "cdc-public-users")
	v.SetDefault("elasticsearch.index_posts", "cdc-public-posts")
	v.SetDefault("search.backend", BackendDatabase)
	v.SetDefault("search.timeout", "10s")
	v.SetDefault("pubsub.driver", pubsub.DriverMemory)
	v.SetDefault("pubsub.memory.buffer", 256)
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.redis.read_timeout", "3s")
	v.SetDefault("pubsub.redis.write_timeout", "3s")
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "search-service")
	v.SetDefault("pubsub.kafka.partitions", 3)
	v.SetDefault("pubsub.kafka.topics", pubsub.SearchTopics())
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "wes-io-live")
	v.SetDefault("recorder.queue_size", 1024)
	v.SetDefault("recorder.publish_timeout", "2s")
	v.SetDefault("recorder.write_timeout", "5s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Bind environment variables
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("database.max_idle_conns", "DB_MAX_IDLE_CONNS")
	v.BindEnv("database.max_open_conns", "DB_MAX_OPEN_CONNS")
	v.BindEnv("database.conn_max_lifetime", "DB_CONN_MAX_LIFETIME")
	v.BindEnv("database.log_level", "DB_LOG_LEVEL")
	v.BindEnv("database.migrate_read_side", "DB_MIGRATE_READ_SIDE")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("cache.enabled", "CACHE_ENABLED")
	v.BindEnv("cache.ttl", "CACHE_TTL")
	v.BindEnv("elasticsearch.addresses", "ES_ADDRESSES")
	v.BindEnv("elasticsearch.index_users", "ES_INDEX_USERS")
	v.BindEnv("elasticsearch.index_posts", "ES_INDEX_POSTS")
	v.BindEnv("search.backend", "SEARCH_BACKEND")
	v.BindEnv("search.timeout", "SEARCH_TIMEOUT")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.redis.address", "PUBSUB_REDIS_ADDRESS")
	v.BindEnv("pubsub.redis.password", "PUBSUB_REDIS_PASSWORD")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("pubsub.kafka.group_id", "KAFKA_GROUP_ID")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.issuer", "JWT_ISSUER")
	v.BindEnv("recorder.queue_size", "RECORDER_QUEUE_SIZE")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

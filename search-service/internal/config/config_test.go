package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/pkg/pubsub"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8094, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, BackendDatabase, cfg.Search.Backend)
	assert.Equal(t, pubsub.DriverMemory, cfg.PubSub.Driver)
	assert.Equal(t, 256, cfg.PubSub.Memory.Buffer)
	assert.Equal(t, pubsub.SearchTopics(), cfg.PubSub.Kafka.Topics)
	assert.Equal(t, 1024, cfg.Recorder.QueueSize)
	assert.Equal(t, 2*time.Second, cfg.Recorder.PublishTimeout)
}

func TestFromViper_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SEARCH_BACKEND", "elasticsearch")
	t.Setenv("PUBSUB_DRIVER", "kafka")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, BackendElasticsearch, cfg.Search.Backend)
	assert.Equal(t, pubsub.DriverKafka, cfg.PubSub.Driver)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  enabled: false\n  ttl: 1m\nsearch:\n  backend: elasticsearch\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, BackendElasticsearch, cfg.Search.Backend)
}

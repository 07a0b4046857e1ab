package platform

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigEmptyValues(t *testing.T) {
	for _, key := range []string{
		"MONGO_URI", "DB_NAME", "COLLECTION_NAME", "INGEST_COLLECTION_NAME", "AWS_REGION",
		"PORT", "FETCH_INTERVAL", "WINDOW_DAYS", "SERVICE_FILTER", "QUERY_TIMEOUT", "RUN_ON_START",
	} {
		t.Setenv(key, "")
	}
	// empty strings are kept, unparseable numbers and durations fall back
	cfg := LoadConfig()
	assert.Equal(t, "", cfg.MongoURI)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.FetchInterval)
	assert.Nil(t, cfg.ServiceFilter)
	assert.False(t, cfg.RunOnStart)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "mongodb://localhost:27017/devops-dashboard", cfg.MongoURI)
	assert.Equal(t, "devops-dashboard", cfg.DBName)
	assert.Equal(t, "aws_costs", cfg.CollectionName)
	assert.Equal(t, "ap-south-1", cfg.AWSRegion)
	assert.Equal(t, 7, cfg.WindowDays)
	assert.Equal(t, 60*time.Second, cfg.QueryTimeout)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://mongo:27017/costs")
	t.Setenv("PORT", "9090")
	t.Setenv("FETCH_INTERVAL", "6h")
	t.Setenv("WINDOW_DAYS", "14")
	t.Setenv("SERVICE_FILTER", "Amazon Elastic Compute Cloud - Compute, Amazon Simple Storage Service,")
	t.Setenv("QUERY_TIMEOUT", "not-a-duration")
	t.Setenv("RUN_ON_START", "TRUE")

	cfg := LoadConfig()
	assert.Equal(t, "mongodb://mongo:27017/costs", cfg.MongoURI)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 6*time.Hour, cfg.FetchInterval)
	assert.Equal(t, 14, cfg.WindowDays)
	assert.Equal(t, []string{"Amazon Elastic Compute Cloud - Compute", "Amazon Simple Storage Service"}, cfg.ServiceFilter)
	assert.Equal(t, 60*time.Second, cfg.QueryTimeout)
	assert.True(t, cfg.RunOnStart)
}

func TestGetEnvIntInvalid(t *testing.T) {
	t.Setenv("PORT", "eighty")
	assert.Equal(t, 8080, GetEnvInt("PORT", 8080))
}

func TestInitLoggerLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)

	InitLogger("warn", "production")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	InitLogger("bogus", "development")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

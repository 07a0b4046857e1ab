// Package platform holds process-wide configuration and logging setup
package platform

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process configuration, read from the environment
type Config struct {
	MongoURI             string
	DBName               string
	CollectionName       string
	IngestCollectionName string

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	AWSRegion          string

	Port          int
	FetchInterval time.Duration
	WindowDays    int
	ServiceFilter []string
	QueryTimeout  time.Duration
	RunOnStart    bool

	LogLevel string
	Env      string
}

// DefaultConfig returns the configuration with no environment applied
func DefaultConfig() *Config {
	return &Config{
		MongoURI:             "mongodb://localhost:27017/devops-dashboard",
		DBName:               "devops-dashboard",
		CollectionName:       "aws_costs",
		IngestCollectionName: "aws_cost_ingestions",
		AWSRegion:            "ap-south-1",
		Port:                 8080,
		FetchInterval:        24 * time.Hour,
		WindowDays:           7,
		QueryTimeout:         60 * time.Second,
		LogLevel:             "info",
		Env:                  "production",
	}
}

// LoadConfig overlays environment variables on DefaultConfig
func LoadConfig() *Config {
	d := DefaultConfig()
	return &Config{
		MongoURI:             GetEnv("MONGO_URI", d.MongoURI),
		DBName:               GetEnv("DB_NAME", d.DBName),
		CollectionName:       GetEnv("COLLECTION_NAME", d.CollectionName),
		IngestCollectionName: GetEnv("INGEST_COLLECTION_NAME", d.IngestCollectionName),
		AWSAccessKeyID:       GetEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:   GetEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSSessionToken:      GetEnv("AWS_SESSION_TOKEN", ""),
		AWSRegion:            GetEnv("AWS_REGION", d.AWSRegion),
		Port:                 GetEnvInt("PORT", d.Port),
		FetchInterval:        GetEnvDuration("FETCH_INTERVAL", d.FetchInterval),
		WindowDays:           GetEnvInt("WINDOW_DAYS", d.WindowDays),
		ServiceFilter:        GetEnvList("SERVICE_FILTER"),
		QueryTimeout:         GetEnvDuration("QUERY_TIMEOUT", d.QueryTimeout),
		RunOnStart:           GetEnvBool("RUN_ON_START", false),
		LogLevel:             GetEnv("LOG_LEVEL", d.LogLevel),
		Env:                  GetEnv("ENV", d.Env),
	}
}

func GetEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func GetEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func GetEnvBool(key string, defaultVal bool) bool {
	if val, exists := os.LookupEnv(key); exists {
		if strings.ToLower(val) == "true" || val == "1" {
			return true
		}
		return false
	}
	return defaultVal
}

// GetEnvDuration parses Go duration syntax ("24h", "90s"); invalid values fall back to the default
func GetEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// GetEnvList splits a comma-separated value, dropping blanks
func GetEnvList(key string) []string {
	return SplitList(os.Getenv(key))
}

// SplitList splits on commas and trims each entry
func SplitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

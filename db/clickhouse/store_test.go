package clickhouse

import (
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidKey(t *testing.T) {
	assert.True(t, isValidKey("aws_costs"))
	assert.True(t, isValidKey("devops.aws_costs_v2"))
	assert.False(t, isValidKey(""))
	assert.False(t, isValidKey("costs; DROP TABLE x"))
	assert.False(t, isValidKey("costs`"))
}

func TestCreateCostsTableKeyedByHash(t *testing.T) {
	ddl := createCostsTable("aws_costs")

	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS aws_costs")
	assert.Contains(t, ddl, "ReplacingMergeTree(updated_at)")
	assert.Contains(t, ddl, "ORDER BY key_hash")
}

func TestCreateIngestTableAppendOnly(t *testing.T) {
	ddl := createIngestTable("aws_cost_ingestions")

	assert.Contains(t, ddl, "ENGINE = MergeTree")
	assert.Contains(t, ddl, "fetched_at")
	assert.NotContains(t, ddl, "Replacing")
}

func TestConfigWithDefaults(t *testing.T) {
	var nilCfg *Config
	assert.Equal(t, DefaultConfig(), nilCfg.withDefaults())

	cfg := (&Config{Table: "costs_daily"}).withDefaults()
	assert.Equal(t, "devops_dashboard", cfg.Database)
	assert.Equal(t, "costs_daily", cfg.Table)
	assert.Equal(t, "aws_cost_ingestions", cfg.IngestTable)
}

func TestResolveDatabase(t *testing.T) {
	tests := []struct {
		name   string
		dsn    string
		cfg    *Config
		wantDB string
	}{
		{"dsn names the database", "clickhouse://default:@localhost:9000/costs", &Config{Database: "devops_dashboard"}, "costs"},
		{"falls back to config", "clickhouse://default:@localhost:9000", &Config{Database: "billing"}, "billing"},
		{"falls back to default", "clickhouse://default:@localhost:9000", nil, "devops_dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := clickhouse.ParseDSN(tt.dsn)
			require.NoError(t, err)

			cfg := resolveDatabase(opts, tt.cfg.withDefaults())
			assert.Equal(t, tt.wantDB, cfg.Database)
			assert.Equal(t, tt.wantDB, opts.Auth.Database)
			assert.Equal(t, "aws_costs", cfg.Table)
		})
	}
}

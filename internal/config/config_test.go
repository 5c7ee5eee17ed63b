package config

import (
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "bolt://test.db")

	var cfg Config
	require.NoError(t, envconfig.Process("", &cfg))

	assert.Equal(t, "https://stats.nba.com/stats", cfg.NBAStatsBaseURL)
	assert.Equal(t, 3, cfg.FetchMaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.FetchRetryBaseDelay)
	assert.Equal(t, 600*time.Millisecond, cfg.NBAStatsRequestInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.GamePause)
	assert.Equal(t, []string{"Regular Season", "PlayIn", "Playoffs"}, cfg.SeasonTypes)
	assert.Equal(t, "ingested_games", cfg.CompletenessTable)
	assert.True(t, cfg.SkipCompletedKinds)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL:       "bolt://test.db",
			FetchMaxAttempts:  3,
			TargetSeason:      "2023-24",
			SeasonTypes:       []string{"Regular Season"},
			CompletenessTable: "ingested_games",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"password instead of url", func(c *Config) { c.DatabaseURL = ""; c.DatabasePassword = "secret" }, ""},
		{"zero attempts", func(c *Config) { c.FetchMaxAttempts = 0 }, "FETCH_MAX_ATTEMPTS"},
		{"bad season", func(c *Config) { c.TargetSeason = "2023" }, "TARGET_SEASON"},
		{"no season types", func(c *Config) { c.SeasonTypes = nil }, "SEASON_TYPES"},
		{"no completeness table", func(c *Config) { c.CompletenessTable = "" }, "COMPLETENESS_TABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_DatabaseDSN(t *testing.T) {
	cfg := Config{DatabaseURL: "bolt:///var/lib/nba.db"}
	assert.Equal(t, "bolt:///var/lib/nba.db", cfg.DatabaseDSN())

	cfg = Config{
		DatabaseHost:     "db",
		DatabasePort:     5432,
		DatabaseUser:     "nba_user",
		DatabasePassword: "p@ss",
		DatabaseName:     "nba_stats",
		DatabaseSSLMode:  "disable",
	}
	assert.Equal(t, "postgres://nba_user:p%40ss@db:5432/nba_stats?sslmode=disable", cfg.DatabaseDSN())
	assert.Equal(t, "5432", cfg.Postgres().Port)
	assert.Equal(t, cfg.Postgres().DSN(), cfg.DatabaseDSN())
}

func TestValidSeason(t *testing.T) {
	assert.True(t, ValidSeason("2023-24"))
	assert.False(t, ValidSeason("2023-2024"))
	assert.False(t, ValidSeason("23-24"))
	assert.False(t, ValidSeason(""))
}

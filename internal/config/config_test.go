package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 10, cfg.IngestLimit)
	assert.True(t, cfg.ReportingEnabled)
	assert.Equal(t, 3000, cfg.APITimeoutMs)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "unknown driver", mutate: func(c *Config) { c.DBDriver = "mysql" }, wantErr: "DB_DRIVER"},
		{name: "inverted cooldown", mutate: func(c *Config) { c.RequestCooldownMinMs = 900; c.RequestCooldownMaxMs = 100 }, wantErr: "cooldown"},
		{name: "zero ingest limit", mutate: func(c *Config) { c.IngestLimit = 0 }, wantErr: "INGEST_LIMIT"},
		{name: "default secret in production", mutate: func(c *Config) { c.Env = "production" }, wantErr: "JWT_SECRET"},
		{name: "unnamed community", mutate: func(c *Config) { c.Communities = []Community{{Name: ""}} }, wantErr: "without a name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadCommunities(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "communities.yml")
	content := `communities:
  - name: " TheDonald "
    standalone_domain: patriots.win
    interval: 600
  - name: conspiracies
    interval: 1800
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	communities, err := LoadCommunities(path)
	require.NoError(t, err)
	require.Len(t, communities, 2)
	assert.Equal(t, "TheDonald", communities[0].Name)
	assert.Equal(t, "patriots.win", communities[0].StandaloneDomain)
	assert.Equal(t, float64(600), communities[0].Interval)
	assert.Equal(t, "", communities[1].StandaloneDomain)
}

func TestLoadCommunities_MissingFile(t *testing.T) {
	communities, err := LoadCommunities(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Empty(t, communities)
}

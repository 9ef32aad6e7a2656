package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "log", cfg.Notify.Driver)
	assert.Equal(t, 24, cfg.JWT.ExpireHours)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Contains(t, cfg.ReferenceData.Categories, "no category")
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
  timezone: UTC
database:
  dsn: /tmp/ledger.db
reference_data:
  categories: ["no category", "pets"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("BUDGETSHARE_JWT_SECRET", "from-env")
	t.Setenv("BUDGETSHARE_SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/tmp/ledger.db", cfg.Database.DSN)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, []string{"no category", "pets"}, cfg.ReferenceData.Categories)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown database driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"unknown notify driver", func(c *Config) { c.Notify.Driver = "smtp" }},
		{"non-positive token lifetime", func(c *Config) { c.JWT.ExpireHours = 0 }},
		{"bad timezone", func(c *Config) { c.Server.Timezone = "Mars/Olympus" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Database: DatabaseConfig{Driver: "sqlite"},
				Notify:   NotifyConfig{Driver: "log"},
				JWT:      JWTConfig{ExpireHours: 1},
			}
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

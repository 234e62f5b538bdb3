package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, ErrorModeStrict, cfg.Auth.ErrorMode)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.HTTP.CORSAllowedOrigins)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.RabbitMQ.Enabled)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
port = 9090
env = "prod"

[auth]
error_mode = "legacy"
bcrypt_cost = 4

[database]
driver = "sqlite"
sqlite_path = "/tmp/andromeda.db"

[redis]
enabled = true
login_max_failures = 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "9191")
	t.Setenv("HTTP_CORS_ALLOWED_ORIGINS", "http://a.example, ,http://b.example")
	t.Setenv("RABBITMQ_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.App.Port)
	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, ErrorModeLegacy, cfg.Auth.ErrorMode)
	assert.Equal(t, 4, cfg.Auth.BcryptCost)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/andromeda.db", cfg.Database.SQLitePath)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 3, cfg.Redis.LoginMaxFailures)
	assert.True(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.HTTP.CORSAllowedOrigins)
}

func TestLoad_InvalidEnvIntFallsBack(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("APP_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.App.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.App.Port = 0 }, wantErr: "app.port"},
		{name: "bad cost", mutate: func(c *Config) { c.Auth.BcryptCost = 99 }, wantErr: "auth.bcrypt_cost"},
		{name: "bad error mode", mutate: func(c *Config) { c.Auth.ErrorMode = "loud" }, wantErr: "auth.error_mode"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "oracle" }, wantErr: "database.driver"},
		{name: "sqlite without path", mutate: func(c *Config) {
			c.Database.Driver = DriverSQLite
			c.Database.SQLitePath = ""
		}, wantErr: "database.sqlite_path"},
		{name: "zero min password", mutate: func(c *Config) { c.Auth.MinPasswordLength = 0 }, wantErr: "min_password_length"},
		{name: "redis limiter without threshold", mutate: func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.LoginMaxFailures = 0
		}, wantErr: "redis.login_max_failures"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
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

func TestMySQLDSN(t *testing.T) {
	cfg := Default()
	cfg.MySQL.User = "andromeda"
	cfg.MySQL.Password = "pw"

	assert.Equal(t,
		"andromeda:pw@tcp(127.0.0.1:3306)/andromeda_healthcare?parseTime=true&loc=Local&charset=utf8mb4",
		cfg.MySQLDSN(),
	)
}

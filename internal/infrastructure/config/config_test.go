package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigSQLiteNeedsOnlyName(t *testing.T) {
	t.Setenv("ENV_TYPE", "LOCAL")
	t.Setenv("LOCAL_DB_DRIVER", "sqlite")
	t.Setenv("LOCAL_DB_NAME", "gate.db")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("NOTIFICATION_GROUP_TTL", "2h")

	cfg := LoadConfig()

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "gate.db", cfg.GetDSN())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
	assert.Equal(t, 2*time.Hour, cfg.NotificationGroupTTL)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadConfigMySQLRequiresCredentials(t *testing.T) {
	t.Setenv("ENV_TYPE", "SERVER")
	t.Setenv("SERVER_DB_NAME", "gate")

	assert.Panics(t, func() { LoadConfig() })
}

func TestGetDSNByDriver(t *testing.T) {
	cfg := &Config{DBDriver: "postgres", DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "gate", DBPort: "5432"}
	assert.Equal(t, "host=db user=u password=p dbname=gate port=5432 sslmode=disable TimeZone=UTC", cfg.GetDSN())

	cfg.DBDriver = "mysql"
	cfg.DBPort = "3306"
	assert.Contains(t, cfg.GetDSN(), "u:p@tcp(db:3306)/gate?charset=utf8mb4")
}

func TestUnknownEnvTypeFallsBackToLocal(t *testing.T) {
	t.Setenv("ENV_TYPE", "staging")
	t.Setenv("LOCAL_DB_DRIVER", "sqlite")
	t.Setenv("LOCAL_DB_NAME", "gate.db")
	t.Setenv("REDIS_HOST", "cache")

	cfg := LoadConfig()

	assert.Equal(t, "LOCAL", cfg.EnvType)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, "cache:6379", cfg.GetRedisAddr())
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	config     *Config
	configOnce sync.Once
)

// Config stores all configuration of the application
type Config struct {
	// Environment type
	EnvType string

	// Database
	DBDriver        string // mysql(默认), postgres, sqlite
	DBHost          string
	DBUser          string
	DBPassword      string
	DBName          string
	DBPort          string
	DBMigrationMode string // 数据库迁移模式: "auto"(默认), "alter"(修改), "drop"(删除重建)
	DBLogLevel      string // silent, error, warn, info

	// Server
	ServerPort       string
	CORSAllowOrigins []string
	RateLimitRPS     float64
	RateLimitBurst   int

	// Logging
	LogLevel  string
	LogFormat string
	LogDir    string

	// Redis，RedisHost 为空时不启用，通知分组去重回退到数据库
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MQTT配置
	MQTTBrokerURL  string // MQTT服务器地址，如 tcp://broker.example.com:1883
	MQTTClientID   string // MQTT客户端ID
	MQTTUsername   string // MQTT用户名
	MQTTPassword   string // MQTT密码
	MQTTQoS        int    // 服务质量 (0, 1, 2)
	MQTTRetained   bool   // 是否保留消息
	MQTTSSLEnabled bool   // 是否启用SSL/TLS
	MQTTCACertPath string // CA证书路径，用于SSL/TLS验证

	// Push
	PushProvider    string // mqtt, log
	PushTopicPrefix string
	PushConcurrency int

	// Task queue
	QueueWorkers int
	QueueSize    int

	// Notification grouping
	NotificationGroupTTL time.Duration

	// Object storage
	StorageDriver    string // ftp, s3
	FTPHost          string
	FTPPort          string
	FTPUser          string
	FTPPassword      string
	FTPBaseDir       string
	StoragePublicURL string
	S3Bucket         string
	S3Region         string
	S3Prefix         string

	// NATS，为空时不发布领域事件
	NATSURL string

	// Preapproved visit expiry sweep
	ExpiryInterval time.Duration

	// JWT Authentication
	JWTSecretKey string
}

// LoadConfig loads config from environment variables based on ENV_TYPE
func LoadConfig() *Config {
	// Get environment type (default to LOCAL if not set)
	envType := getEnv("ENV_TYPE", "LOCAL")
	prefix := ""

	// Set prefix based on environment type
	if strings.ToUpper(envType) == "LOCAL" {
		prefix = "LOCAL_"
	} else if strings.ToUpper(envType) == "SERVER" {
		prefix = "SERVER_"
	} else {
		fmt.Printf("Warning: Unknown ENV_TYPE '%s', defaulting to LOCAL environment\n", envType)
		prefix = "LOCAL_"
		envType = "LOCAL"
	}

	fmt.Printf("Loading configuration for environment: %s\n", envType)

	cfg := &Config{
		// Environment type
		EnvType: envType,

		// Database config - use environment-specific variables if available
		DBDriver:        strings.ToLower(getEnv(prefix+"DB_DRIVER", "mysql")),
		DBName:          getEnvRequired(prefix + "DB_NAME"),
		DBMigrationMode: getEnv(prefix+"DB_MIGRATION_MODE", "auto"),
		DBLogLevel:      getEnv(prefix+"DB_LOG_LEVEL", "warn"),

		// Server config
		ServerPort:       getEnv(prefix+"SERVER_PORT", getEnv("SERVER_PORT", "8080")),
		CORSAllowOrigins: getEnvAsList("CORS_ALLOW_ORIGINS", []string{"*"}),
		RateLimitRPS:     getEnvAsFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:   getEnvAsInt("RATE_LIMIT_BURST", 40),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogDir:    getEnv("LOG_DIR", "logs"),

		// Redis config
		RedisHost:     getEnv(prefix+"REDIS_HOST", getEnv("REDIS_HOST", "")),
		RedisPort:     getEnv(prefix+"REDIS_PORT", getEnv("REDIS_PORT", "6379")),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// MQTT配置
		MQTTBrokerURL:  getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:   getEnv("MQTT_CLIENT_ID", "merodocs_server"),
		MQTTUsername:   getEnv("MQTT_USERNAME", ""),
		MQTTPassword:   getEnv("MQTT_PASSWORD", ""),
		MQTTQoS:        getEnvAsInt("MQTT_QOS", 1),
		MQTTRetained:   getEnvAsBool("MQTT_RETAINED", false),
		MQTTSSLEnabled: getEnvAsBool("MQTT_SSL_ENABLED", false),
		MQTTCACertPath: getEnv("MQTT_CA_CERT_PATH", ""),

		// Push
		PushProvider:    strings.ToLower(getEnv("PUSH_PROVIDER", "log")),
		PushTopicPrefix: getEnv("PUSH_TOPIC_PREFIX", "merodocs/push"),
		PushConcurrency: getEnvAsInt("PUSH_CONCURRENCY", 8),

		// Task queue
		QueueWorkers: getEnvAsInt("QUEUE_WORKERS", 4),
		QueueSize:    getEnvAsInt("QUEUE_SIZE", 256),

		NotificationGroupTTL: getEnvAsDuration("NOTIFICATION_GROUP_TTL", 24*time.Hour),

		// Object storage
		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", "ftp")),
		FTPHost:          getEnv("FTP_HOST", "localhost"),
		FTPPort:          getEnv("FTP_PORT", "21"),
		FTPUser:          getEnv("FTP_USER", ""),
		FTPPassword:      getEnv("FTP_PASSWORD", ""),
		FTPBaseDir:       getEnv("FTP_BASE_DIR", "uploads"),
		StoragePublicURL: getEnv("STORAGE_PUBLIC_URL", ""),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3Region:         getEnv("S3_REGION", "ap-south-1"),
		S3Prefix:         getEnv("S3_PREFIX", "gate"),

		NATSURL: getEnv("NATS_URL", ""),

		ExpiryInterval: getEnvAsDuration("PREAPPROVED_EXPIRY_INTERVAL", 5*time.Minute),

		// JWT Config
		JWTSecretKey: getEnv("JWT_SECRET_KEY", "merodocs-secret-key-change-in-production"),
	}

	// sqlite 只需要文件名
	if cfg.DBDriver != "sqlite" {
		cfg.DBHost = getEnvRequired(prefix + "DB_HOST")
		cfg.DBUser = getEnvRequired(prefix + "DB_USER")
		cfg.DBPassword = getEnvRequired(prefix + "DB_PASSWORD")
		cfg.DBPort = getEnvRequired(prefix + "DB_PORT")
	}

	return cfg
}

// GetConfig returns the application configuration as a singleton
func GetConfig() *Config {
	configOnce.Do(func() {
		config = LoadConfig()
	})
	return config
}

// GetDSN returns the database connection string for the configured driver
func (c *Config) GetDSN() string {
	switch c.DBDriver {
	case "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
	case "sqlite":
		return c.DBName
	default:
		return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=Local&allowNativePasswords=true&multiStatements=true"
	}
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// RedisEnabled reports whether a Redis host is configured
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// Helper function to get environment variable with default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as integer with default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as boolean with default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// 逗号分隔的列表
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

// 要求必须提供环境变量的辅助函数
func getEnvRequired(key string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	panic(fmt.Sprintf("Required environment variable %s is not set", key))
}

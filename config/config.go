package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is the dotenv file read on startup and watched for log level changes.
const DefaultEnvFile = ".env"

// Config stores the application configuration.
type Config struct {
	Port    string
	EnvFile string

	// MySQL
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
	MinioPublicURL string // 对外访问的URL前缀，为空时由 endpoint 推导

	// 认证
	JWTSecret string   // 身份提供方签发令牌使用的共享密钥 (HS256)
	AdminIDs  []string // 拥有管理员权限的外部用户ID

	// 日志
	LogLevel string
	LogFile  string

	// 搜索限流
	SearchRatePerSec float64
	SearchBurst      int
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// splitList 解析逗号分隔的列表，忽略空项
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	envFile := getEnv("ENV_FILE", DefaultEnvFile)
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(envFile); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return fromEnv(envFile)
}

func fromEnv(envFile string) *Config {
	return &Config{
		Port:    getEnv("PORT", "8080"),
		EnvFile: envFile,

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // 密码不提供默认值
		DBName:     getEnv("DB_NAME", "melodify"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "melodify"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioPublicURL: getEnv("MINIO_PUBLIC_URL", ""),

		JWTSecret: os.Getenv("JWT_SECRET"),
		AdminIDs:  splitList(os.Getenv("ADMIN_IDS")),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "logs/melodify.log"),

		SearchRatePerSec: getEnvFloat("SEARCH_RATE_PER_SEC", 5),
		SearchBurst:      getEnvInt("SEARCH_BURST", 10),
	}
}

// IsAdmin reports whether the external user id is configured as an administrator.
func (c *Config) IsAdmin(externalID string) bool {
	for _, id := range c.AdminIDs {
		if id == externalID {
			return true
		}
	}
	return false
}

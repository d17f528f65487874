package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresURL string
	RedisURL    string
	MongoDBURL  string
	MongoDBName string

	ServerPort     string
	AllowedOrigins string
	Environment    string

	JWTSecret       string
	SessionDuration int // hours

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioRegion    string
	MinioBucket    string

	OwnerEmail string
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load() // Ignore error since file might not exist in production

	// Get environment with default
	env := getEnvWithDefault("ENVIRONMENT", "development")
	env = strings.ToLower(env) // Normalize environment string

	// Validate environment value
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[env] {
		return nil, fmt.Errorf("invalid environment value: %s", env)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	sessionDuration, err := strconv.Atoi(getEnvWithDefault("SESSION_DURATION", "12"))
	if err != nil || sessionDuration < 1 {
		return nil, fmt.Errorf("invalid SESSION_DURATION value")
	}

	// Initialize config with environment variables
	config := &Config{
		Environment: env,

		PostgresURL: os.Getenv("POSTGRES_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		MongoDBURL:  os.Getenv("MONGODB_URL"),
		MongoDBName: getEnvWithDefault("MONGODB_NAME", "glucoguide"),

		ServerPort:     getEnvWithDefault("SERVER_PORT", "8080"),
		AllowedOrigins: getEnvWithDefault("ALLOWED_ORIGINS", "http://localhost:3000"),

		JWTSecret:       jwtSecret,
		SessionDuration: sessionDuration,

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioRegion:    getEnvWithDefault("MINIO_REGION", "ap-south-1"),
		MinioBucket:    getEnvWithDefault("MINIO_BUCKET", "glucoguide-media"),

		OwnerEmail: getEnvWithDefault("OWNER_EMAIL", "support@glucoguide.app"),
	}

	return config, nil
}

// IsDevelopment returns whether the current environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns whether the current environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsStaging returns whether the current environment is staging
func (c *Config) IsStaging() bool {
	return c.Environment == "staging"
}

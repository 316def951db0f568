// Package config collects runtime settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ListenAddr string
	LogLevel   string

	StorageType      string
	LocalStoragePath string
	DataSourceName   string
	S3BucketName     string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	CatalogPath string
	JWTSecret   string
	CORSOrigins []string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func listenv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		ListenAddr:       getenv("LISTEN_ADDR", ":3002"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		StorageType:      getenv("STORAGE_TYPE", "memory"),
		LocalStoragePath: getenv("LOCAL_STORAGE_PATH", "./data"),
		DataSourceName:   getenv("DATA_SOURCE_NAME", "layout.db"),
		S3BucketName:     getenv("S3_BUCKET_NAME", ""),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getenv("REDIS_PASSWORD", ""),
		RedisDB:          atoienv("REDIS_DB", 0),
		CatalogPath:      getenv("CATALOG_PATH", ""),
		JWTSecret:        getenv("JWT_SECRET", ""),
		CORSOrigins:      listenv("CORS_ORIGINS"),
	}
}

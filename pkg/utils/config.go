package utils

import (
	"os"

	"github.com/joho/godotenv"
)

type ServerConfig struct {
	HTTPAddr    string
	FeedAddr    string
	NotifyAddr  string
	CatalogAddr string
}

// LoadServerConfig reads listen addresses from the environment, with an
// optional .env file for local development. Missing vars fall back to
// the defaults below.
func LoadServerConfig() ServerConfig {
	_ = godotenv.Load()

	return ServerConfig{
		HTTPAddr:    getEnv("BIBLIOHUB_HTTP_ADDR", ":8080"),
		FeedAddr:    getEnv("BIBLIOHUB_FEED_ADDR", ":7070"),
		NotifyAddr:  getEnv("BIBLIOHUB_NOTIFY_ADDR", ":7071"),
		CatalogAddr: getEnv("BIBLIOHUB_CATALOG_ADDR", ":9000"),
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

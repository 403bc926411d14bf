// Package config loads process configuration for the server and
// client CLIs from environment variables, optionally seeded from a
// .env file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Server holds the server-cli/serve process configuration.
type Server struct {
	Bind    string
	BaseDir string
}

// Client holds the client-cli process configuration.
type Client struct {
	BaseDir        string
	RequestTimeout time.Duration
}

// LoadDotenv best-effort loads a .env file at path into the process
// environment without overriding variables already set. A missing file
// is not an error: environment variables alone are a valid
// configuration source.
func LoadDotenv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// LoadServer reads server configuration from the environment, applying
// the same defaults the original CLI's flags did.
func LoadServer() Server {
	return Server{
		Bind:    getEnv("CLOAKMATCH_BIND", "127.0.0.1:8000"),
		BaseDir: getEnv("CLOAKMATCH_BASE_DIR", "."),
	}
}

// LoadClient reads client configuration from the environment.
func LoadClient() Client {
	return Client{
		BaseDir:        getEnv("CLOAKMATCH_CLIENT_BASE_DIR", "."),
		RequestTimeout: getEnvDuration("CLOAKMATCH_CLIENT_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

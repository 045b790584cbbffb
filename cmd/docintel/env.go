package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadDotEnv loads configDir/.env into the process environment. Missing
// or unreadable .env is non-fatal: the process falls back to whatever
// environment variables are already set.
func loadDotEnv(configDir string) {
	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
		return
	}
	log.Printf("loaded environment from %s", envPath)
}

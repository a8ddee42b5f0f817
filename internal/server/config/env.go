package config

import "os"

// parseEnv overlays secrets and connection settings from the environment,
// between the JSON file and command-line flags. Only values that benefit
// from staying out of files and argv are read here.
func parseEnv(config *Config) {
	if v, ok := os.LookupEnv("DATABASE_DSN"); ok {
		config.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv("AICHAT_SECRET_KEY"); ok {
		config.SecretKey = v
	}
	if v, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
		config.GeminiAPIKey = v
	}
	if v, ok := os.LookupEnv("S3_ACCESS_KEY"); ok {
		config.S3AccessKey = v
	}
	if v, ok := os.LookupEnv("S3_SECRET_KEY"); ok {
		config.S3SecretKey = v
	}
}

package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/wilvurson/ai-chat/internal/flagx"
	"github.com/wilvurson/ai-chat/internal/timex"
)

// JsonConfig is the intermediate DTO used only for reading JSON config
// files. Duration fields accept both strings ("168h") and integer
// nanoseconds; after unmarshalling, values are copied into the runtime
// Config.
type JsonConfig struct {
	EndpointAddr          string         `json:"endpoint_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	SecretKeyVersion      string         `json:"secret_key_version"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	CookieSecure          bool           `json:"cookie_secure"`
	GeminiAPIKey          string         `json:"gemini_api_key"`
	GeminiModel           string         `json:"gemini_model"`
	GenerationTimeout     timex.Duration `json:"generation_timeout"`
	S3AccessKey           string         `json:"s3_access_key"`
	S3SecretKey           string         `json:"s3_secret_key"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. When no flag is given, nothing
// is loaded. An unreadable or invalid file panics: a half-applied config is
// worse than a failed start.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.SecretKeyVersion != "" {
		config.SecretKeyVersion = c.SecretKeyVersion
	}
	if c.TokenValidityDuration.Duration != 0 {
		config.TokenValidityDuration = time.Duration(c.TokenValidityDuration.Duration)
	}
	if c.CookieSecure {
		config.CookieSecure = true
	}
	if c.GeminiAPIKey != "" {
		config.GeminiAPIKey = c.GeminiAPIKey
	}
	if c.GeminiModel != "" {
		config.GeminiModel = c.GeminiModel
	}
	if c.GenerationTimeout.Duration != 0 {
		config.GenerationTimeout = time.Duration(c.GenerationTimeout.Duration)
	}
	if c.S3AccessKey != "" {
		config.S3AccessKey = c.S3AccessKey
	}
	if c.S3SecretKey != "" {
		config.S3SecretKey = c.S3SecretKey
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}

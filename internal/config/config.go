package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Spaces SpacesConfig
	Log    LogConfig
}

// SpacesConfig holds DigitalOcean Spaces connection settings and the
// default object parameters applied to every write.
type SpacesConfig struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`

	CacheControl         string `mapstructure:"cache_control"`
	ACL                  string `mapstructure:"acl"`
	ServerSideEncryption string `mapstructure:"server_side_encryption"`

	RetryMaxAttempts int    `mapstructure:"retry_max_attempts"`
	RetryMode        string `mapstructure:"retry_mode"`

	// StreamChunkSize and ReadChunkSize are the default chunk sizes for the
	// two streamed-read entry points; UploadChunkSize is the default part
	// size for chunked uploads.
	StreamChunkSize int   `mapstructure:"stream_chunk_size"`
	ReadChunkSize   int   `mapstructure:"read_chunk_size"`
	UploadChunkSize int64 `mapstructure:"upload_chunk_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the DO_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Spaces defaults
	v.SetDefault("spaces.region", "nyc3")
	v.SetDefault("spaces.endpoint", "https://nyc3.digitaloceanspaces.com")
	v.SetDefault("spaces.cache_control", "max-age=86400")
	v.SetDefault("spaces.acl", "public-read-write")
	v.SetDefault("spaces.server_side_encryption", "AES256")
	v.SetDefault("spaces.retry_max_attempts", 5)
	v.SetDefault("spaces.retry_mode", "standard")
	v.SetDefault("spaces.stream_chunk_size", 8*1024)
	v.SetDefault("spaces.read_chunk_size", 8*1024*1024)
	v.SetDefault("spaces.upload_chunk_size", 8*1024*1024)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Bind environment variables explicitly for nested keys. The credential
	// and bucket variables keep the names the deployment already exports.
	envBindings := map[string]string{
		"spaces.region":                 "DO_SPACES_REGION",
		"spaces.endpoint":               "DO_SPACES_ENDPOINT",
		"spaces.access_key":             "DO_SPACES_KEY_ID",
		"spaces.secret_key":             "DO_SPACES_SECRET_KEY",
		"spaces.bucket":                 "DO_SPACES_BUCKET_NAME",
		"spaces.cache_control":          "DO_SPACES_CACHE_CONTROL",
		"spaces.acl":                    "DO_SPACES_ACL",
		"spaces.server_side_encryption": "DO_SPACES_SERVER_SIDE_ENCRYPTION",
		"spaces.retry_max_attempts":     "DO_SPACES_RETRY_MAX_ATTEMPTS",
		"spaces.retry_mode":             "DO_SPACES_RETRY_MODE",
		"spaces.stream_chunk_size":      "DO_SPACES_STREAM_CHUNK_SIZE",
		"spaces.read_chunk_size":        "DO_SPACES_READ_CHUNK_SIZE",
		"spaces.upload_chunk_size":      "DO_SPACES_UPLOAD_CHUNK_SIZE",
		"log.level":                     "DO_LOG_LEVEL",
		"log.format":                    "DO_LOG_FORMAT",
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding env %s: %w", env, err)
		}
	}

	var cfg Config
	cfg.Spaces = SpacesConfig{
		Region:               v.GetString("spaces.region"),
		Endpoint:             v.GetString("spaces.endpoint"),
		AccessKey:            v.GetString("spaces.access_key"),
		SecretKey:            v.GetString("spaces.secret_key"),
		Bucket:               v.GetString("spaces.bucket"),
		CacheControl:         v.GetString("spaces.cache_control"),
		ACL:                  v.GetString("spaces.acl"),
		ServerSideEncryption: v.GetString("spaces.server_side_encryption"),
		RetryMaxAttempts:     v.GetInt("spaces.retry_max_attempts"),
		RetryMode:            v.GetString("spaces.retry_mode"),
		StreamChunkSize:      v.GetInt("spaces.stream_chunk_size"),
		ReadChunkSize:        v.GetInt("spaces.read_chunk_size"),
		UploadChunkSize:      v.GetInt64("spaces.upload_chunk_size"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	if err := cfg.Spaces.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the settings required to reach the service are present
// and well-formed.
func (c *SpacesConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("spaces endpoint is required")
	}
	if !strings.HasPrefix(c.Endpoint, "https://") && !strings.HasPrefix(c.Endpoint, "http://") {
		return fmt.Errorf("spaces endpoint must use http or https scheme")
	}
	if c.Region == "" {
		return fmt.Errorf("spaces region is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("spaces bucket is required")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}
	if c.StreamChunkSize < 1 || c.ReadChunkSize < 1 || c.UploadChunkSize < 1 {
		return fmt.Errorf("chunk sizes must be at least 1 byte")
	}
	return nil
}

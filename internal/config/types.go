package config

import "time"

type Config struct {
	Server    ServerConfig    `json:"server"`
	Upload    UploadConfig    `json:"upload"`
	Transform TransformConfig `json:"transform"`
	Cleanup   CleanupConfig   `json:"cleanup"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	CORS      CORSConfig      `json:"cors"`
	Sentry    SentryConfig    `json:"sentry"`
}

type ServerConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type UploadConfig struct {
	MaxRequestBodyMB     int64    `json:"max_request_body"`
	MaxMultipartMemoryMB int64    `json:"max_multipart_memory"`
	MaxFiles             int      `json:"max_files"`
	MaxFileSizeMB        int64    `json:"max_file_size"`
	AllowedMimeTypes     []string `json:"allowed_mime_types"`
}

type TransformConfig struct {
	CloudName       string        `json:"cloud_name"`
	APIKey          string        `json:"api_key"`
	APISecret       string        `json:"api_secret"`
	UploadFolder    string        `json:"upload_folder"`
	UploadBaseURL   string        `json:"upload_base_url"`
	DeliveryBaseURL string        `json:"delivery_base_url"`
	RequestTimeout  time.Duration `json:"request_timeout"` // seconds per external call
}

type CleanupConfig struct {
	Interval  time.Duration `json:"interval"`  // seconds between sweeps
	Retention time.Duration `json:"retention"` // seconds a record is kept
}

type RateLimitConfig struct {
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"` // seconds
	Burst    int           `json:"burst"`
}

type CORSConfig struct {
	Environment    string   `json:"environment"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type SentryConfig struct {
	SentryDSN   string `json:"sentry_dsn"`
	Environment string `json:"environment"`
}

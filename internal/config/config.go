package config

import (
	"encoding/json"
	"os"
)

// Create new config instance
func NewConfig() *Config {
	return &Config{}
}

// Load configuration file in json format
func (c *Config) Read(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return err
	}
	c.applyDefaults()
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Upload.MaxRequestBodyMB == 0 {
		c.Upload.MaxRequestBodyMB = 2048
	}
	if c.Upload.MaxMultipartMemoryMB == 0 {
		c.Upload.MaxMultipartMemoryMB = 32
	}
	if c.Upload.MaxFiles == 0 {
		c.Upload.MaxFiles = 10
	}
	if c.Upload.MaxFileSizeMB == 0 {
		c.Upload.MaxFileSizeMB = 2048
	}
	if len(c.Upload.AllowedMimeTypes) == 0 {
		c.Upload.AllowedMimeTypes = []string{
			"image/jpeg", "image/png", "image/gif", "image/webp",
			"image/bmp", "image/svg+xml", "image/tiff", "image/x-icon",
		}
	}
	if c.Transform.UploadFolder == "" {
		c.Transform.UploadFolder = "webp-converter"
	}
	if c.Transform.UploadBaseURL == "" {
		c.Transform.UploadBaseURL = "https://api.cloudinary.com"
	}
	if c.Transform.DeliveryBaseURL == "" {
		c.Transform.DeliveryBaseURL = "https://res.cloudinary.com"
	}
	if c.Transform.RequestTimeout == 0 {
		c.Transform.RequestTimeout = 60
	}
	if c.Cleanup.Interval == 0 {
		c.Cleanup.Interval = 3600
	}
	if c.Cleanup.Retention == 0 {
		c.Cleanup.Retention = 3600
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 100
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = 900
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = c.RateLimit.Requests
	}
}

package filestore

import (
	"fmt"
	"path"
	"strings"
)

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds the settings needed to upload run output to object storage.
type Config struct {
	Provider Provider

	// Endpoint is host:port of the storage server, e.g. "localhost:9000".
	Endpoint string

	AccessKey string
	SecretKey string
	UseSSL    bool

	// Region is used by region-aware backends. Leave empty for MinIO.
	Region string

	// Bucket receives every uploaded file. It is created when missing.
	Bucket string

	// Prefix is prepended to every object key, e.g. "nightly/2024-05-01".
	Prefix string
}

// DefaultConfig returns a local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    "dbmeta",
	}
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	switch {
	case c.Provider != ProviderMinIO:
		return fmt.Errorf("unsupported storage provider %q", c.Provider)
	case c.Endpoint == "":
		return fmt.Errorf("storage endpoint is required")
	case c.Bucket == "":
		return fmt.Errorf("storage bucket is required")
	}
	return nil
}

// Key joins the configured prefix and name into an object key.
func (c *Config) Key(name string) string {
	p := strings.Trim(c.Prefix, "/")
	if p == "" {
		return name
	}
	return path.Join(p, name)
}

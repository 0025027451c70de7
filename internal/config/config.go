package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backends the client can talk to.
const (
	BackendWandb  = "wandb"
	BackendMLflow = "mlflow"
)

var validBackends = map[string]bool{
	BackendWandb: true, BackendMLflow: true,
}

// Databricks domain suffixes for URL detection
var databricksDomains = []string{
	".cloud.databricks.com",
	".azuredatabricks.net",
	".gcp.databricks.com",
}

// Config is the immutable client configuration, built once from viper at
// startup. Per-call options override the defaults held here; nothing mutates
// a Config after New.
type Config struct {
	Entity  string
	Project string
	Backend string

	// Hosted tracking service (wandb backend).
	BaseURL string
	APIKey  string

	// MLflow tracking server (mlflow backend).
	TrackingURI     string
	DatabricksHost  string
	DatabricksToken string

	ArtifactType string
	PageSize     int
	Timeout      time.Duration
	MaxRetries   int
	Concurrency  int
}

func New() *Config {
	return &Config{
		Entity:          viper.GetString("entity"),
		Project:         viper.GetString("project"),
		Backend:         viper.GetString("backend"),
		BaseURL:         viper.GetString("base_url"),
		APIKey:          viper.GetString("api_key"),
		TrackingURI:     viper.GetString("tracking_uri"),
		DatabricksHost:  viper.GetString("databricks_host"),
		DatabricksToken: viper.GetString("databricks_token"),
		ArtifactType:    viper.GetString("artifact_type"),
		PageSize:        viper.GetInt("page_size"),
		Timeout:         viper.GetDuration("timeout"),
		MaxRetries:      viper.GetInt("max_retries"),
		Concurrency:     viper.GetInt("concurrency"),
	}
}

func (c *Config) Validate() error {
	if c.Entity == "" {
		return fmt.Errorf("entity is required")
	}

	if !validBackends[c.Backend] {
		return fmt.Errorf("invalid backend: %s (valid: wandb, mlflow)", c.Backend)
	}

	switch c.Backend {
	case BackendWandb:
		if c.BaseURL == "" {
			return fmt.Errorf("base URL is required for the wandb backend")
		}
	case BackendMLflow:
		if c.TrackingURI == "" {
			return fmt.Errorf("tracking URI is required for the mlflow backend")
		}
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("invalid page size: %d", c.PageSize)
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("invalid concurrency: %d", c.Concurrency)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid max retries: %d", c.MaxRetries)
	}

	return nil
}

// ResolveProject returns the per-call project override or the configured
// default, erroring when neither is present.
func (c *Config) ResolveProject(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if c.Project != "" {
		return c.Project, nil
	}
	return "", fmt.Errorf("no project specified: pass one per call or configure a default")
}

// IsDatabricks checks if the tracking URI points to Databricks
func (c *Config) IsDatabricks() bool {
	if c.TrackingURI == "databricks" {
		return true
	}

	// Check for databricks:// protocol
	if strings.HasPrefix(c.TrackingURI, "databricks://") {
		return true
	}

	// Check for Databricks URLs
	if strings.HasPrefix(c.TrackingURI, "https://") {
		host := c.extractHostFromURL(c.TrackingURI)
		return c.isDatabricksHost(host)
	}

	return false
}

// extractHostFromURL extracts the hostname from a URL
func (c *Config) extractHostFromURL(url string) string {
	host := strings.TrimPrefix(url, "https://")
	// Remove any path components
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	return host
}

// isDatabricksHost checks if a hostname belongs to Databricks
func (c *Config) isDatabricksHost(host string) bool {
	for _, domain := range databricksDomains {
		if strings.HasSuffix(host, domain) {
			return true
		}
	}
	return false
}

// GetDatabricksProfile extracts the profile name from databricks://{profile} URI
func (c *Config) GetDatabricksProfile() string {
	if !strings.HasPrefix(c.TrackingURI, "databricks://") {
		return ""
	}

	profile := strings.TrimPrefix(c.TrackingURI, "databricks://")
	// Remove any trailing slashes or paths
	if idx := strings.Index(profile, "/"); idx != -1 {
		profile = profile[:idx]
	}
	return profile
}

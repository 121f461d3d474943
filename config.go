package systembridge

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration carries everything a Client needs to reach a system
// bridge backend, plus the tunable timeouts of spec §6. Zero-valued
// optional fields are replaced with their documented defaults by
// NewConfiguration.
type Configuration struct {
	APIHost string `yaml:"api_host"`
	APIPort int    `yaml:"api_port"`
	Token   string `yaml:"token"`

	HeartbeatInterval time.Duration `yaml:"-"`
	RequestTimeout    time.Duration `yaml:"-"`
	HTTPTimeout       time.Duration `yaml:"-"`
	GetDataTimeout    time.Duration `yaml:"-"`
	SupportedVersion  string        `yaml:"-"`

	HeartbeatIntervalSeconds int    `yaml:"heartbeat_interval_s"`
	RequestTimeoutSeconds    int    `yaml:"request_timeout_s"`
	HTTPTimeoutSeconds       int    `yaml:"http_timeout_s"`
	GetDataTimeoutSeconds    int    `yaml:"get_data_timeout_s"`
	SupportedVersionString   string `yaml:"supported_version"`
}

const (
	defaultHeartbeatIntervalSeconds = 30
	defaultRequestTimeoutSeconds    = 8
	defaultHTTPTimeoutSeconds       = 20
	defaultGetDataTimeoutSeconds    = 10
	defaultSupportedVersion         = "4.0.2"
)

// NewConfiguration builds a Configuration for host/port/token with all
// timeout knobs set to their spec-mandated defaults.
func NewConfiguration(apiHost string, apiPort int, token string) Configuration {
	c := Configuration{APIHost: apiHost, APIPort: apiPort, Token: token}
	c.applyDefaults()
	return c
}

func (c *Configuration) applyDefaults() {
	if c.HeartbeatIntervalSeconds == 0 {
		c.HeartbeatIntervalSeconds = defaultHeartbeatIntervalSeconds
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if c.HTTPTimeoutSeconds == 0 {
		c.HTTPTimeoutSeconds = defaultHTTPTimeoutSeconds
	}
	if c.GetDataTimeoutSeconds == 0 {
		c.GetDataTimeoutSeconds = defaultGetDataTimeoutSeconds
	}
	if c.SupportedVersionString == "" {
		c.SupportedVersionString = defaultSupportedVersion
	}

	c.HeartbeatInterval = time.Duration(c.HeartbeatIntervalSeconds) * time.Second
	c.RequestTimeout = time.Duration(c.RequestTimeoutSeconds) * time.Second
	c.HTTPTimeout = time.Duration(c.HTTPTimeoutSeconds) * time.Second
	c.GetDataTimeout = time.Duration(c.GetDataTimeoutSeconds) * time.Second
	c.SupportedVersion = c.SupportedVersionString
}

// LoadConfigurationFile reads a Configuration from a YAML file on disk,
// following the teacher's load-then-default pattern (configuration.go).
func LoadConfigurationFile(path string) (Configuration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, err
	}

	var c Configuration
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Configuration{}, err
	}
	c.applyDefaults()
	return c, nil
}

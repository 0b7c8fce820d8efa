package gateway

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-compose/pkg/controller"
	"github.com/core-tools/hsu-compose/pkg/errors"
	"github.com/core-tools/hsu-compose/pkg/units"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort     = 50055
	DefaultLogLevel = "info"

	ProbeCLI = "cli"
	ProbeAPI = "api"
)

// GatewayConfig represents the top-level configuration file structure
type GatewayConfig struct {
	Server ServerConfig       `yaml:"server" toml:"server"`
	Units  []units.UnitConfig `yaml:"units" toml:"units"`
}

// ServerConfig represents server-level configuration
type ServerConfig struct {
	Port     int    `yaml:"port" toml:"port" validate:"min=1,max=65535"`
	LogLevel string `yaml:"log_level,omitempty" toml:"log_level,omitempty" validate:"oneof=debug info warn error"`
	// MetricsPort enables the Prometheus endpoint when set
	MetricsPort int `yaml:"metrics_port,omitempty" toml:"metrics_port,omitempty" validate:"omitempty,min=1,max=65535,nefield=Port"`
	// Probe selects the docker status backend: the docker CLI or the engine API
	Probe string `yaml:"probe,omitempty" toml:"probe,omitempty" validate:"oneof=cli api"`
	Image string `yaml:"image,omitempty" toml:"image,omitempty"`
	// LogDir mirrors every unit log buffer into a file when set
	LogDir string `yaml:"log_dir,omitempty" toml:"log_dir,omitempty"`
}

var serverValidator = validator.New()

// LoadConfigFromFile loads gateway configuration from a YAML or TOML file,
// chosen by extension
func LoadConfigFromFile(filename string) (*GatewayConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	config, err := ParseConfig(data, filepath.Ext(filename))
	if err != nil {
		if domainErr, ok := err.(*errors.DomainError); ok {
			return nil, domainErr.WithContext("filename", filename)
		}
		return nil, err
	}
	return config, nil
}

// ParseConfig parses configuration data in the format named by ext
// (".yaml", ".yml" or ".toml") and applies defaults
func ParseConfig(data []byte, ext string) (*GatewayConfig, error) {
	var config GatewayConfig

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, errors.NewValidationError("failed to parse YAML configuration", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, errors.NewValidationError("failed to parse TOML configuration", err)
		}
	default:
		return nil, errors.NewValidationError("unsupported configuration format: "+ext, nil).
			WithContext("supported", ".yaml, .yml, .toml")
	}

	setConfigDefaults(&config)
	return &config, nil
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *GatewayConfig) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := serverValidator.Struct(config.Server); err != nil {
		return errors.NewValidationError("invalid server configuration", err)
	}

	if err := units.ValidateUnitConfigs(config.Units); err != nil {
		return errors.NewValidationError("invalid units configuration", err)
	}

	return nil
}

// DefaultConfig is used when no configuration file is given
func DefaultConfig() *GatewayConfig {
	config := &GatewayConfig{}
	setConfigDefaults(config)
	return config
}

// LoadDotEnv loads root/.env into the process environment if it exists.
// Variables already set are kept.
func LoadDotEnv(root string) (bool, error) {
	path := filepath.Join(root, ".env")
	if _, err := os.Stat(path); err != nil {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, errors.NewValidationError("failed to load .env", err).WithContext("path", path)
	}
	return true, nil
}

// setConfigDefaults applies default values to configuration
func setConfigDefaults(config *GatewayConfig) {
	if config.Server.Port == 0 {
		config.Server.Port = DefaultPort
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = DefaultLogLevel
	}
	if config.Server.Probe == "" {
		config.Server.Probe = ProbeCLI
	}
	if config.Server.Image == "" {
		config.Server.Image = controller.DefaultImage
	}

	if len(config.Units) == 0 {
		config.Units = []units.UnitConfig{units.ExampleUnit()}
	}
	for i := range config.Units {
		units.ApplyDefaults(&config.Units[i])
	}
}

package units

import (
	"fmt"
	"os"
	"strings"

	"github.com/core-tools/hsu-compose/pkg/errors"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// ComposePathEnv overrides the compose file of units that do not name one
const ComposePathEnv = "GATEWAY_COMPOSE_PATH"

const DefaultComposeFile = "docker-compose.yml"

// DevProfile is the compose profile activated in dev mode
const DevProfile = "dev"

// UnitConfig is the static descriptor of one compose service.
// It is never mutated once the unit is created.
type UnitConfig struct {
	ID               string `yaml:"id" toml:"id" validate:"required,unit_id"`
	DisplayName      string `yaml:"display_name,omitempty" toml:"display_name,omitempty"`
	ComposeFile      string `yaml:"compose_file,omitempty" toml:"compose_file,omitempty" validate:"required"`
	ProjectName      string `yaml:"project_name,omitempty" toml:"project_name,omitempty" validate:"omitempty,project_name"`
	EnvFile          string `yaml:"env_file,omitempty" toml:"env_file,omitempty"`
	ServiceName      string `yaml:"service_name" toml:"service_name" validate:"required"`
	ContainerName    string `yaml:"container_name,omitempty" toml:"container_name,omitempty"`
	DevServiceName   string `yaml:"dev_service_name,omitempty" toml:"dev_service_name,omitempty"`
	DevContainerName string `yaml:"dev_container_name,omitempty" toml:"dev_container_name,omitempty"`
	// Image is probed for availability; empty falls back to the server default
	Image string `yaml:"image,omitempty" toml:"image,omitempty"`
}

// EffectiveConfig is the mode-resolved view used for every docker invocation
type EffectiveConfig struct {
	UnitID         string
	DisplayName    string
	ComposeFile    string
	ComposeProfile string
	ProjectName    string
	EnvFile        string
	ServiceName    string
	ContainerName  string
	Mode           Mode
}

// Effective resolves the active service/container pair for mode.
// In dev mode each dev name is used when set and the "dev" profile is
// active. Prod mode never passes a profile.
func (c UnitConfig) Effective(mode Mode) EffectiveConfig {
	effective := EffectiveConfig{
		UnitID:        c.ID,
		DisplayName:   c.Name(),
		ComposeFile:   c.ComposeFile,
		ProjectName:   c.ProjectName,
		EnvFile:       c.EnvFile,
		ServiceName:   c.ServiceName,
		ContainerName: c.ContainerName,
		Mode:          mode,
	}

	if mode == ModeDev {
		if c.DevServiceName != "" {
			effective.ServiceName = c.DevServiceName
		}
		if c.DevContainerName != "" {
			effective.ContainerName = c.DevContainerName
		}
		effective.ComposeProfile = DevProfile
	}

	return effective
}

// Name returns the display name, or the id when none is set
func (c UnitConfig) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.ID
}

// DefaultComposePath returns the compose file from GATEWAY_COMPOSE_PATH or
// the default file name
func DefaultComposePath() string {
	if path := strings.TrimSpace(os.Getenv(ComposePathEnv)); path != "" {
		return path
	}
	return DefaultComposeFile
}

// ApplyDefaults fills optional fields that have a derived default
func ApplyDefaults(config *UnitConfig) {
	if config.ComposeFile == "" {
		config.ComposeFile = DefaultComposePath()
	}
}

// ExampleUnit is the network gateway unit shipped as the built-in default
func ExampleUnit() UnitConfig {
	return UnitConfig{
		ID:               "network",
		DisplayName:      "NETWORK",
		ComposeFile:      DefaultComposePath(),
		ProjectName:      "gateway-network",
		EnvFile:          "net.dev.env",
		ServiceName:      "network",
		ContainerName:    "network-container",
		DevServiceName:   "network-dev",
		DevContainerName: "network-dev-container",
	}
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("unit_id", func(fl validator.FieldLevel) bool {
		return isToken(fl.Field().String(), "-_.")
	})
	// compose project names: lowercase letters, digits, dashes and underscores
	_ = v.RegisterValidation("project_name", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == strings.ToLower(value) && isToken(value, "-_")
	})
	return v
}

func isToken(value string, extra string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune(extra, r):
		default:
			return false
		}
	}
	return true
}

// ValidateUnitConfig validates one unit descriptor. An env file that exists
// must parse; a missing one is left for compose to report.
func ValidateUnitConfig(config UnitConfig) error {
	if err := configValidator.Struct(config); err != nil {
		return errors.NewValidationError("invalid unit configuration", err).WithContext("unit", config.ID)
	}

	if config.EnvFile != "" {
		if _, err := os.Stat(config.EnvFile); err == nil {
			if _, err := godotenv.Read(config.EnvFile); err != nil {
				return errors.NewValidationError("env file cannot be parsed", err).
					WithContext("unit", config.ID).
					WithContext("env_file", config.EnvFile)
			}
		}
	}

	return nil
}

// ValidateUnitConfigs validates every unit and rejects duplicate ids
func ValidateUnitConfigs(configs []UnitConfig) error {
	collection := errors.NewErrorCollection()
	seen := make(map[string]bool, len(configs))

	for i, config := range configs {
		if err := ValidateUnitConfig(config); err != nil {
			collection.Add(fmt.Errorf("unit %d: %w", i, err))
			continue
		}
		if seen[config.ID] {
			collection.Add(errors.NewConflictError("duplicate unit id", nil).WithContext("unit", config.ID))
		}
		seen[config.ID] = true
	}

	return collection.ToError()
}

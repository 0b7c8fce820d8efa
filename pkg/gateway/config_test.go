package gateway

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/core-tools/hsu-compose/pkg/controller"
	"github.com/core-tools/hsu-compose/pkg/errors"
	"github.com/core-tools/hsu-compose/pkg/units"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Simple test logger that implements logging.Logger interface
type TestLogger struct{}

func (l *TestLogger) LogLevelf(level int, format string, args ...interface{}) {}
func (l *TestLogger) Debugf(format string, args ...interface{})               {}
func (l *TestLogger) Infof(format string, args ...interface{})                {}
func (l *TestLogger) Warnf(format string, args ...interface{})                {}
func (l *TestLogger) Errorf(format string, args ...interface{})               {}

const yamlConfig = `
server:
  port: 50100
  log_level: debug
  metrics_port: 9100
  probe: api
units:
  - id: network
    display_name: NETWORK
    compose_file: docker-compose.yml
    project_name: gateway-network
    service_name: network
    container_name: network-container
    dev_service_name: network-dev
  - id: api
    service_name: api
`

const tomlConfig = `
[server]
port = 50101

[[units]]
id = "network"
compose_file = "compose.yml"
service_name = "network"
`

func writeConfig(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigFromFile_YAML(t *testing.T) {
	t.Setenv(units.ComposePathEnv, "deploy/compose.yml")
	path := writeConfig(t, "gateway.yaml", yamlConfig)

	config, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(config))

	assert.Equal(t, 50100, config.Server.Port)
	assert.Equal(t, "debug", config.Server.LogLevel)
	assert.Equal(t, 9100, config.Server.MetricsPort)
	assert.Equal(t, ProbeAPI, config.Server.Probe)
	assert.Equal(t, controller.DefaultImage, config.Server.Image)

	require.Len(t, config.Units, 2)
	assert.Equal(t, "network-dev", config.Units[0].DevServiceName)
	assert.Equal(t, "docker-compose.yml", config.Units[0].ComposeFile)
	assert.Equal(t, "deploy/compose.yml", config.Units[1].ComposeFile)
}

func TestLoadConfigFromFile_TOML(t *testing.T) {
	path := writeConfig(t, "gateway.toml", tomlConfig)

	config, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(config))

	assert.Equal(t, 50101, config.Server.Port)
	assert.Equal(t, DefaultLogLevel, config.Server.LogLevel)
	assert.Equal(t, ProbeCLI, config.Server.Probe)
	require.Len(t, config.Units, 1)
	assert.Equal(t, "compose.yml", config.Units[0].ComposeFile)
}

func TestLoadConfigFromFile_Errors(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsIOError(err))

	_, err = LoadConfigFromFile(writeConfig(t, "gateway.json", "{}"))
	assert.True(t, errors.IsValidationError(err))

	_, err = LoadConfigFromFile(writeConfig(t, "gateway.yaml", "units: [::"))
	assert.True(t, errors.IsValidationError(err))
}

func TestDefaultConfig_UsesBuiltinUnit(t *testing.T) {
	config := DefaultConfig()

	require.NoError(t, ValidateConfig(config))
	assert.Equal(t, DefaultPort, config.Server.Port)
	require.Len(t, config.Units, 1)
	assert.Equal(t, "network", config.Units[0].ID)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(config *GatewayConfig)
	}{
		{"port out of range", func(c *GatewayConfig) { c.Server.Port = 70000 }},
		{"unknown log level", func(c *GatewayConfig) { c.Server.LogLevel = "verbose" }},
		{"unknown probe", func(c *GatewayConfig) { c.Server.Probe = "ssh" }},
		{"metrics on server port", func(c *GatewayConfig) { c.Server.MetricsPort = c.Server.Port }},
		{"unit without service", func(c *GatewayConfig) { c.Units[0].ServiceName = "" }},
		{"duplicate unit", func(c *GatewayConfig) { c.Units = append(c.Units, c.Units[0]) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := ValidateConfig(config)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
		})
	}

	assert.True(t, errors.IsValidationError(ValidateConfig(nil)))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	loaded, err := LoadDotEnv(dir)
	require.NoError(t, err)
	assert.False(t, loaded)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HSU_COMPOSE_TEST_VALUE=from-dotenv\n"), 0644))
	t.Setenv("HSU_COMPOSE_TEST_VALUE", "")
	os.Unsetenv("HSU_COMPOSE_TEST_VALUE")

	loaded, err = LoadDotEnv(dir)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "from-dotenv", os.Getenv("HSU_COMPOSE_TEST_VALUE"))
}

func TestLocateDocker(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses an executable shell script")
	}

	dir := t.TempDir()
	t.Setenv("PATH", dir)

	_, err := LocateDocker()
	assert.True(t, errors.IsNotFoundError(err))

	docker := filepath.Join(dir, "docker")
	require.NoError(t, os.WriteFile(docker, []byte("#!/bin/sh\n"), 0755))

	path, err := LocateDocker()
	require.NoError(t, err)
	assert.Equal(t, docker, path)
}

func TestReconcileUnits(t *testing.T) {
	network := units.NewServiceUnit(units.UnitConfig{ID: "network", ComposeFile: "c.yml", ServiceName: "network"})
	api := units.NewServiceUnit(units.UnitConfig{ID: "api", ComposeFile: "c.yml", ServiceName: "api"})

	changedAPI := api.Config()
	changedAPI.ContainerName = "api-1"
	configs := []units.UnitConfig{
		network.Config(),
		changedAPI,
		{ID: "web", ComposeFile: "c.yml", ServiceName: "web"},
	}

	var created []string
	next, kept := reconcileUnits([]*units.ServiceUnit{network, api}, configs, func(config units.UnitConfig) *units.ServiceUnit {
		created = append(created, config.ID)
		return units.NewServiceUnit(config)
	})

	assert.Equal(t, 1, kept)
	assert.Equal(t, []string{"api", "web"}, created)
	require.Len(t, next, 3)
	assert.Same(t, network, next[0])
	assert.NotSame(t, api, next[1])
	assert.Equal(t, "api-1", next[1].Config().ContainerName)
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", yamlConfig)

	reloaded := make(chan []units.UnitConfig, 4)
	watcher, err := NewConfigWatcher(path, func(configs []units.UnitConfig) {
		reloaded <- configs
	}, &TestLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	// invalid edits are ignored
	require.NoError(t, os.WriteFile(path, []byte("units: [::"), 0644))
	select {
	case <-reloaded:
		t.Fatal("invalid configuration must not be reloaded")
	case <-time.After(3 * reloadDebounce):
	}

	require.NoError(t, os.WriteFile(path, []byte(reloadedYAML), 0644))
	select {
	case configs := <-reloaded:
		require.Len(t, configs, 1)
		assert.Equal(t, "web", configs[0].ID)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
}

const reloadedYAML = `
units:
  - id: web
    compose_file: docker-compose.yml
    service_name: web
`

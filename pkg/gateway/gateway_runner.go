package gateway

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/core-tools/hsu-compose/pkg/compose"
	"github.com/core-tools/hsu-compose/pkg/errors"
	"github.com/core-tools/hsu-compose/pkg/logging"
	"github.com/core-tools/hsu-compose/pkg/process"

	coreLogging "github.com/core-tools/hsu-core/pkg/logging"
)

// RunOptions configures Run
type RunOptions struct {
	// RunDuration in seconds, zero runs until a signal arrives
	RunDuration int
	// ConfigFile is empty to run the built-in unit
	ConfigFile string
	// Port overrides the configured server port when set
	Port int
}

// Run loads the configuration, serves until a signal or the run duration
// elapses, then shuts down.
func Run(options RunOptions, coreLogger coreLogging.Logger, logger logging.Logger) error {
	logger.Infof("Gateway runner starting...")

	runDuration := options.RunDuration
	configFile := options.ConfigFile

	// Create context with run duration
	ctx := context.Background()
	if runDuration > 0 {
		duration := time.Duration(runDuration) * time.Second
		logger.Infof("Using RUN DURATION of %v", duration)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	root := process.RepoRoot()
	logger.Infof("Using REPOSITORY ROOT: %s", root)
	if loaded, err := LoadDotEnv(root); err != nil {
		return err
	} else if loaded {
		logger.Infof("Loaded .env from %s", root)
	}

	if path, err := LocateDocker(); err != nil {
		logger.Warnf("Docker CLI not found, every unit operation will fail: %v", err)
	} else {
		logger.Infof("Using DOCKER CLI: %s", path)
	}

	config, err := loadConfig(configFile, options.Port, logger)
	if err != nil {
		return err
	}

	gateway, err := NewGateway(config, coreLogger, logger)
	if err != nil {
		return errors.NewInternalError("failed to create gateway", err)
	}

	gateway.Start(ctx)

	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()
	if configFile != "" {
		watcher, err := NewConfigWatcher(configFile, gateway.ReloadUnits, logger)
		if err != nil {
			logger.Warnf("Configuration reload disabled: %v", err)
		} else {
			go watcher.Run(watchCtx)
		}
	}

	logger.Infof("Enabling signal handling...")

	// Enable signal handling
	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig) // Unix signals not implemented on Windows
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}
	defer signal.Stop(sig)

	// Wait for graceful shutdown or timeout
	select {
	case receivedSignal := <-sig:
		logger.Infof("Gateway runner received signal: %v", receivedSignal)
	case <-ctx.Done():
		logger.Infof("Gateway runner timed out")
	}

	stopWatching()

	// Reset context to background to enable graceful shutdown
	gateway.Stop(context.Background())

	logger.Infof("Gateway runner stopped")

	return nil
}

func loadConfig(configFile string, port int, logger logging.Logger) (*GatewayConfig, error) {
	var config *GatewayConfig
	if configFile == "" {
		logger.Infof("No configuration file, using the built-in unit")
		config = DefaultConfig()
	} else {
		logger.Infof("Using CONFIGURATION FILE: %s", configFile)
		loaded, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, errors.NewIOError("failed to load configuration", err).WithContext("config_file", configFile)
		}
		config = loaded
	}
	if port != 0 {
		config.Server.Port = port
	}

	if err := ValidateConfig(config); err != nil {
		return nil, errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}

	logger.Infof("Gateway port: %d, probe: %s, units: %d", config.Server.Port, config.Server.Probe, len(config.Units))
	return config, nil
}

// LocateDocker resolves the docker executable every compose call runs
func LocateDocker() (string, error) {
	return process.LookupExecutable(compose.DockerExecutable)
}

// ValidateConfigFile validates a configuration file without running it
func ValidateConfigFile(configFile string) error {
	config, err := LoadConfigFromFile(configFile)
	if err != nil {
		return errors.NewIOError("failed to load configuration", err).WithContext("config_file", configFile)
	}

	if err := ValidateConfig(config); err != nil {
		return errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}

	return nil
}

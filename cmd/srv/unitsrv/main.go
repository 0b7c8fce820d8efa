package main

import (
	"fmt"
	"os"

	coreLogging "github.com/core-tools/hsu-core/pkg/logging"

	"github.com/core-tools/hsu-compose/pkg/gateway"
	"github.com/core-tools/hsu-compose/pkg/logging"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Config      string `long:"config" description:"path to the YAML or TOML configuration file"`
	Port        int    `long:"port" description:"port to listen on, overrides the configuration"`
	RunDuration int    `long:"run-duration" description:"stop after this many seconds"`
	LogLevel    string `long:"log-level" default:"info" description:"debug, info, warn or error"`
	LogFormat   string `long:"log-format" default:"console" description:"console or json"`
	Validate    bool   `long:"validate" description:"validate the configuration file and exit"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s-server , ", module)
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v", err)
		os.Exit(1)
	}

	if opts.Validate {
		if opts.Config == "" {
			fmt.Println("Configuration file is required")
			os.Exit(1)
		}
		if err := gateway.ValidateConfigFile(opts.Config); err != nil {
			fmt.Printf("Configuration is invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration is valid")
		if path, err := gateway.LocateDocker(); err != nil {
			fmt.Printf("Warning: %v\n", err)
		} else {
			fmt.Printf("Docker CLI: %s\n", path)
		}
		return
	}

	zapConfig := logging.DefaultZapConfig()
	zapConfig.Level = opts.LogLevel
	zapConfig.Format = opts.LogFormat
	backend, err := logging.NewZapBackend(zapConfig)
	if err != nil {
		fmt.Printf("Failed to create logger: %v", err)
		os.Exit(1)
	}
	defer backend.Sync()

	funcs := backend.LogFuncs()

	coreLogger := coreLogging.NewLogger(
		logPrefix("hsu-core"), coreLogging.LogFuncs{
			Debugf: coreLogging.LogFunc(funcs.Debugf),
			Infof:  coreLogging.LogFunc(funcs.Infof),
			Warnf:  coreLogging.LogFunc(funcs.Warnf),
			Errorf: coreLogging.LogFunc(funcs.Errorf),
		})
	logger := logging.NewLogger(logPrefix("hsu-compose"), funcs)

	logger.Infof("opts: %+v", opts)

	runOptions := gateway.RunOptions{
		RunDuration: opts.RunDuration,
		ConfigFile:  opts.Config,
		Port:        opts.Port,
	}
	if err := gateway.Run(runOptions, coreLogger, logger); err != nil {
		logger.Errorf("Gateway failed: %v", err)
		backend.Sync()
		os.Exit(1)
	}
}

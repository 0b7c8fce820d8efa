package process

import (
	"os"
	"os/exec"
	"strings"

	"github.com/core-tools/hsu-compose/pkg/errors"
)

// ValidateCommand validates an executable and argument vector before spawning
func ValidateCommand(executable string, args []string) error {
	if strings.TrimSpace(executable) == "" {
		return errors.NewValidationError("executable is required", nil)
	}

	for i, arg := range args {
		if strings.ContainsRune(arg, 0) {
			return errors.NewValidationError("argument contains a NUL byte", nil).
				WithContext("executable", executable).
				WithContext("index", i)
		}
	}

	return nil
}

// ValidateWorkingDirectory checks that dir exists and is a directory
func ValidateWorkingDirectory(dir string) error {
	if dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return errors.NewValidationError("working directory not accessible: "+dir, err)
	}
	if !info.IsDir() {
		return errors.NewValidationError("working directory is not a directory: "+dir, nil)
	}
	return nil
}

// ValidateEnvironment checks KEY=VALUE formatting
func ValidateEnvironment(environment []string) error {
	for _, env := range environment {
		if !strings.Contains(env, "=") {
			return errors.NewValidationError("invalid environment variable format: "+env, nil)
		}
	}
	return nil
}

// LookupExecutable resolves executable on PATH
func LookupExecutable(executable string) (string, error) {
	path, err := exec.LookPath(executable)
	if err != nil {
		return "", errors.NewNotFoundError("executable not found on PATH: "+executable, err)
	}
	return path, nil
}

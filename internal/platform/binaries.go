package platform

import (
	"fmt"
	"os/exec"

	"github.com/datallboy/levelkeep/internal/infra/logger"
)

// DefaultWine is looked up on PATH when no wine binary is configured
const DefaultWine = "wine"

var OptionalBinaries = map[string]string{
	"7z":  "7-Zip",
	"7za": "7-Zip",
}

// FindWine resolves the configured wine binary, or DefaultWine when empty
func FindWine(configured string) (string, error) {
	bin := configured
	if bin == "" {
		bin = DefaultWine
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("required dependency: '%s' not found in PATH", bin)
	}
	return path, nil
}

// ValidateDependencies reports missing external binaries. Only wine is
// required, and only for playing levels; the error lets the caller decide.
func ValidateDependencies(wineBinary string, log *logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}

	for bin, formatName := range OptionalBinaries {
		if _, err := exec.LookPath(bin); err != nil {
			log.Debug("%s (%s) not found. %s extraction will be disabled.", bin, formatName, formatName)
		}
	}

	if _, err := FindWine(wineBinary); err != nil {
		return err
	}
	return nil
}

package config

import (
	"os"
	"strings"
	"sync"
)

const ModeEnvKey = "GO_ENV_MODE"

type Mode string

const (
	DevMode  Mode = "development"
	ProMode  Mode = "production"
	TestMode Mode = "test"
)

var (
	currentMode Mode
	modeOnce    sync.Once
)

func ParseMode(env string) Mode {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// CurrentMode returns the process mode read once from GO_ENV_MODE.
func CurrentMode() Mode {
	modeOnce.Do(func() {
		currentMode = ParseMode(os.Getenv(ModeEnvKey))
	})
	return currentMode
}

// modeSuffixes lists the config file suffixes loaded for a mode, lowest priority first.
func modeSuffixes(mode Mode) []string {
	switch mode {
	case ProMode:
		return []string{"prod", "production"}
	case TestMode:
		return []string{"test"}
	default:
		return []string{"dev", "development"}
	}
}

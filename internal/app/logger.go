package app

import (
	"github.com/charlesng35/hrconsole/pkg/logger"
)

const (
	logFileBackups = 5
	logFileMaxAge  = 30
)

// ConfigureLogging installs the global logger described by the server section.
func ConfigureLogging(cfg ServerConfig) error {
	return logger.Init(logger.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxBackups: logFileBackups,
		MaxAgeDays: logFileMaxAge,
	})
}

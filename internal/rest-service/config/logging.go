package config

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// NewLogger builds the root logger from the logging section.
func NewLogger(cfg LoggingConfig) (*log.Logger, error) {
	logger := log.New()
	logger.SetOutput(os.Stdout)
	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)
	if cfg.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

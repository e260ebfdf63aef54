package cleanup

import (
	"time"

	"github.com/iyedjb/edutokudte-sub000/pkg/config"
)

// Config holds cleanup worker configuration, sourced from the central config package.
type Config struct {
	CleanupInterval  time.Duration
	VerboseReporting bool
	SessionIdleTTL   time.Duration
}

// NewConfig reads the already-initialized variables in pkg/config.
func NewConfig() *Config {
	return &Config{
		CleanupInterval:  config.CleanupInterval,
		VerboseReporting: config.CleanupVerbose,
		SessionIdleTTL:   config.SessionIdleTTL,
	}
}

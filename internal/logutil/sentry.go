package logutil

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

var sentryEnabled bool

// InitSentry enables error reporting. An empty DSN leaves reporting disabled.
func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	sentryEnabled = true
	return nil
}

// FlushSentry waits for buffered events to be delivered.
func FlushSentry(timeout time.Duration) {
	if sentryEnabled {
		sentry.Flush(timeout)
	}
}

// LogError logs err with fields and forwards it to Sentry when enabled.
func LogError(msg string, err error, fields Fields) {
	log.WithFields(fields).WithError(err).Error(msg)

	if !sentryEnabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", msg)
		for k, v := range fields {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

package main

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/getsentry/sentry-go"
	"github.com/spf13/viper"
)

// setupSentry enables error reporting when sentry.dsn is configured. The
// returned function flushes pending events.
func setupSentry() func() {
	dsn := viper.GetString("sentry.dsn")
	if dsn == "" {
		return func() {}
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Release:     "aiknvm@" + Version,
		Environment: viper.GetString("sentry.environment"),
	})
	if err != nil {
		log.Warn("Sentry init failed", "err", err)
		return func() {}
	}
	log.Debug("Sentry initialized")
	return func() { sentry.Flush(2 * time.Second) }
}

// reportError sends a command failure to Sentry, if enabled.
func reportError(command string, err error) {
	if sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("command", command)
		sentry.CaptureException(err)
	})
}

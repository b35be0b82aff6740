package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

func getLogFilePath() (string, error) {
	if p := viper.GetString("log.file"); p != "" {
		return expandPath(p), nil
	}
	dir, err := gap.NewScope(gap.User, "aiknvm").CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "aiknvm.log"), nil
}

// setupLog sends warnings to stderr and, when log.file is set or AIKNVM_LOG
// is non-empty, everything to the log file as well.
func setupLog() (func() error, error) {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
	log.SetReportTimestamp(false)

	if viper.GetString("log.file") == "" && os.Getenv("AIKNVM_LOG") == "" {
		return func() error { return nil }, nil
	}

	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		return nil, err
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	log.SetReportTimestamp(true)
	log.SetLevel(log.DebugLevel)
	return f.Close, nil
}

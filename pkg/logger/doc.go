// Package logger provides a structured logging interface for the data harvester.
//
// It wraps the zerolog library to provide a clean API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output with colors
// - Optional file output
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "dataharvest/pkg/logger"
//
//	cfg := &config.LoggingConfig{Level: "info"}
//	err := logger.Initialize(cfg)
//
//	logger.Info("Run started")
//	logger.WithField("source", "visa_bulletin").Info("Discovering candidates")
//	logger.WithError(err).Error("Fetch failed")
package logger

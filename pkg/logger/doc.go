// Package logger provides structured logging for imgharvest.
//
// It wraps zerolog behind a small Logger interface with leveled methods,
// field chaining, colored console output and optional JSON file output.
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info"})
//	logger.Info("harvest started")
//	logger.WithField("url", u).WithError(err).Warn("download failed")
//
// Components accept a Logger so tests can pass NewNopLogger or a
// capturing NewTestLogger instead of the global one.
package logger

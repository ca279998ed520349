// Package logging provides structured logging for Bosun Core.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text while developing, with service and version fields on
// every entry.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	decoderLog := logger.Component("decoder")
//	decoderLog.Warn("decode failed", "address", addr, "error", err)
//
// Never log encryption keys or tokens. Device config is logged by key name only.
package logging

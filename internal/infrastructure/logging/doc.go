// Package logging provides structured logging for homeconnect-core.
//
// It wraps log/slog so every entry carries the service name and build
// version, and every component can derive a tagged child logger.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	streamLog := logger.Component("stream")
//	streamLog.Info("stream opened", "ha_id", haID)
//
// # Security
//
// Never log OAuth access or refresh tokens in full. Use RedactSecret:
//
//	logger.Info("token refreshed", "access", logging.RedactSecret(tok.AccessToken))
package logging

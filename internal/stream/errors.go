package stream

import "errors"

var (
	// ErrStream indicates a transport failure on the event stream that is
	// not an authentication expiry.
	ErrStream = errors.New("stream: transport failure")

	// ErrStreamClosed indicates the remote ended the stream.
	ErrStreamClosed = errors.New("stream: closed by remote")

	// ErrWatchdogExpired indicates the stream was closed because the
	// watchdog saw no activity for a full interval.
	ErrWatchdogExpired = errors.New("stream: watchdog expired")

	// ErrReadTimeout indicates no bytes arrived within the read timeout.
	ErrReadTimeout = errors.New("stream: read timeout")

	// ErrReconnectExhausted indicates the reconnect attempt limit was reached.
	ErrReconnectExhausted = errors.New("stream: reconnect attempts exhausted")

	// ErrLineTooLong indicates a single event stream line exceeded the decoder limit.
	ErrLineTooLong = errors.New("stream: line too long")
)

// Package stream keeps appliance state synchronized with the Home Connect
// server-sent event stream.
//
// Decoder parses the text/event-stream wire format. Consumer owns one
// appliance: it opens the stream, merges NOTIFY, STATUS and EVENT items
// into the appliance state, tracks CONNECTED and DISCONNECTED, and drives
// the appliance's watchdog. A 401 on the stream refreshes the token and
// reopens it without reporting a disconnect. Any other stream failure is
// retried with exponential backoff when reconnection is enabled, and
// otherwise terminates the consumer with the appliance marked disconnected.
//
// Phase transitions:
//
//	disconnected -> connecting -> connected | disconnected
//	connected    -> reauthenticating -> connecting
//	any          -> backoff -> connecting
//	any          -> terminated | stopped
package stream

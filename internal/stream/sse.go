package stream

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Event kinds sent by the Home Connect event stream.
const (
	KindNotify       = "NOTIFY"
	KindStatus       = "STATUS"
	KindEvent        = "EVENT"
	KindConnected    = "CONNECTED"
	KindDisconnected = "DISCONNECTED"
	KindKeepAlive    = "KEEP-ALIVE"
)

// maxLineSize bounds a single line of the event stream.
const maxLineSize = 1 << 20

// Event is one dispatched server-sent event.
type Event struct {
	// Type is the event field, e.g. "STATUS".
	Type string

	// Data holds the data lines joined by "\n".
	Data []byte

	// ID is the last event ID seen; Home Connect sends the haId here.
	ID string

	// Retry is the reconnection time requested by the server, 0 if none.
	Retry time.Duration
}

// Decoder reads events from a text/event-stream body.
type Decoder struct {
	scanner *bufio.Scanner
	lastID  string
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxLineSize)
	return &Decoder{scanner: s}
}

// Next blocks until the next event is complete. It returns io.EOF when the
// stream ends cleanly; an event left incomplete at the end is discarded.
//
// An event is dispatched at a blank line if it carried an event type or at
// least one data line. Comment lines (starting with ':') are skipped.
func (d *Decoder) Next() (Event, error) {
	var (
		ev      Event
		data    bytes.Buffer
		hasData bool
	)

	for d.scanner.Scan() {
		line := d.scanner.Bytes()

		if len(line) == 0 {
			if ev.Type == "" && !hasData {
				continue
			}
			if hasData {
				ev.Data = bytes.Clone(data.Bytes())
			}
			ev.ID = d.lastID
			return ev, nil
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))

		switch string(field) {
		case "event":
			ev.Type = string(value)
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.Write(value)
			hasData = true
		case "id":
			if !bytes.ContainsRune(value, 0) {
				d.lastID = string(value)
			}
		case "retry":
			if ms, err := strconv.ParseUint(string(value), 10, 32); err == nil {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := d.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Event{}, fmt.Errorf("%w: %w", ErrLineTooLong, err)
		}
		return Event{}, err
	}
	return Event{}, io.EOF
}

package heartbeat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
	"unicode/utf8"
)

var errNotJSON = errors.New("payload is not valid JSON")

// DecodeError reports a datagram that could not be decoded as JSON. It is
// informational; the raw payload is still printable.
type DecodeError struct {
	Payload []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %d byte payload: %v", len(e.Payload), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Inbound is a datagram as it came off the socket.
type Inbound struct {
	From       net.Addr
	Data       []byte
	ReceivedAt time.Time
}

// Decoded is the best-effort interpretation of an inbound datagram.
type Decoded struct {
	// Framed is set when a checksum prefix was stripped.
	Framed        bool
	Checksum      uint32
	ChecksumValid bool

	// Payload is the datagram without the checksum prefix.
	Payload []byte
	// Text is Payload as UTF-8 with invalid sequences replaced by U+FFFD.
	Text string
	// JSON holds the parsed payload, nil when Err is set. Numbers are kept
	// as json.Number so large integers survive re-encoding.
	JSON any
	Err  error
}

// IsJSON reports whether the payload parsed as JSON.
func (d Decoded) IsJSON() bool {
	return d.Err == nil
}

// Decode interprets data, stripping the checksum frame first when framed is
// set. It never fails: problems are carried in Decoded.Err as a
// *DecodeError.
func Decode(data []byte, framed bool) Decoded {
	d := Decoded{Payload: data}
	if framed {
		sum, payload, err := Unframe(data)
		if err != nil {
			d.Text = toText(data)
			d.Err = &DecodeError{Payload: data, Err: err}
			return d
		}
		d.Framed = true
		d.Checksum = sum
		d.ChecksumValid = sum == Checksum(payload)
		d.Payload = payload
	}

	d.Text = toText(d.Payload)
	if !json.Valid(d.Payload) {
		d.Err = &DecodeError{Payload: d.Payload, Err: errNotJSON}
		return d
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(d.Payload))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		d.Err = &DecodeError{Payload: d.Payload, Err: err}
		return d
	}
	d.JSON = v
	return d
}

func toText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

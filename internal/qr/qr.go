// Package qr encodes and decodes the text carried by equipment QR labels.
//
// A label holds "<serial>|<name>". A backslash escapes a literal '|' or '\'
// inside either field, so labels printed before escaping was introduced
// still decode unchanged as long as they contain no backslash.
package qr

import (
	"errors"
	"strings"
)

// ErrFormat is returned for payloads that do not carry a serial number.
var ErrFormat = errors.New("malformed QR payload")

const (
	sep    = '|'
	escape = '\\'
)

// Payload is the content of an equipment label.
type Payload struct {
	SerialNumber string `json:"serial_number"`
	Name         string `json:"name"`
}

// Encode returns the label text for p.
func Encode(p Payload) string {
	return quote(p.SerialNumber) + string(sep) + quote(p.Name)
}

func quote(s string) string {
	if !strings.ContainsAny(s, `|\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r == sep || r == escape {
			b.WriteRune(escape)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Decode parses label text. The name is optional; a missing or empty serial
// number, a second separator or a dangling escape yield ErrFormat.
func Decode(s string) (Payload, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Payload{}, ErrFormat
	}

	var (
		fields  [2]strings.Builder
		field   int
		escNext bool
	)
	for _, r := range s {
		switch {
		case escNext:
			fields[field].WriteRune(r)
			escNext = false
		case r == escape:
			escNext = true
		case r == sep:
			if field == 1 {
				return Payload{}, ErrFormat
			}
			field = 1
		default:
			fields[field].WriteRune(r)
		}
	}
	if escNext {
		return Payload{}, ErrFormat
	}

	p := Payload{
		SerialNumber: strings.TrimSpace(fields[0].String()),
		Name:         strings.TrimSpace(fields[1].String()),
	}
	if p.SerialNumber == "" {
		return Payload{}, ErrFormat
	}
	return p, nil
}

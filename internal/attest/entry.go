// Package attest turns committed transcripts into signed, selectively
// redacted attestation artifacts, and verifies them.
package attest

import (
	"strings"
)

// HeaderPair is one recorded header, serialized as ["name", "value"].
type HeaderPair [2]string

// Entry is one HTTP exchange half in dispatch order.
type Entry struct {
	Direction string       `json:"direction"`
	Method    string       `json:"method,omitempty"`
	Path      string       `json:"path,omitempty"`
	Status    int          `json:"status,omitempty"`
	Headers   []HeaderPair `json:"headers"`
	Body      string       `json:"body"`
}

// RequestEntry records an outbound request.
func RequestEntry(method, path string, headers []HeaderPair, body string) Entry {
	return Entry{
		Direction: "request",
		Method:    method,
		Path:      path,
		Headers:   headers,
		Body:      body,
	}
}

// ResponseEntry records an inbound response.
func ResponseEntry(status int, headers []HeaderPair, body string) Entry {
	return Entry{
		Direction: "response",
		Status:    status,
		Headers:   headers,
		Body:      body,
	}
}

// CensorHeaders replaces the value of every matching header (by
// case-insensitive name) with an X run of equal length. The header
// name stays disclosed.
func (e *Entry) CensorHeaders(names []string) {
	for i, h := range e.Headers {
		for _, name := range names {
			if strings.EqualFold(h[0], name) {
				e.Headers[i][1] = strings.Repeat("X", len(h[1]))
				break
			}
		}
	}
}

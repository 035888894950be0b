// Package httpwire builds and sends HTTP/1.1 requests with exact control
// over the bytes that hit the wire.
//
// DESIGN: Byte budgets against a notarized TLS channel are enforced
// pre-send, so the request serialization must be deterministic and its
// size computable without sending. The standard http.Client injects
// headers (User-Agent, chunked framing) that would break the accounting,
// so requests are serialized by hand and written to the raw connection.
package httpwire

import (
	"strconv"
	"strings"
)

// Header is one ordered name/value pair. Order is preserved on the wire.
type Header struct {
	Name  string
	Value string
}

// Request is a fully specified HTTP/1.1 request. Headers are emitted in
// the order given; nothing is added implicitly.
type Request struct {
	Method  string
	Path    string
	Headers []Header
	Body    string
}

// AddHeader appends a header pair.
func (r *Request) AddHeader(name, value string) {
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
}

// HeaderValue returns the value of the first header with the given name
// (case-insensitive), or "".
func (r *Request) HeaderValue(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// WireSize returns the exact number of bytes Bytes() will produce:
// request-line + Σ(name + ": " + value + CRLF) + CRLF + body.
func (r *Request) WireSize() int {
	// "POST /path HTTP/1.1\r\n"
	size := len(r.Method) + 1 + len(r.Path) + len(" HTTP/1.1\r\n")
	for _, h := range r.Headers {
		size += len(h.Name) + 2 + len(h.Value) + 2
	}
	size += 2 // header/body separator
	size += len(r.Body)
	return size
}

// Bytes serializes the request for the wire.
func (r *Request) Bytes() []byte {
	var b strings.Builder
	b.Grow(r.WireSize())

	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.Path)
	b.WriteString(" HTTP/1.1\r\n")

	for _, h := range r.Headers {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}

	b.WriteString("\r\n")
	b.WriteString(r.Body)

	return []byte(b.String())
}

// ContentLengthHeader builds the Content-Length pair for a body.
func ContentLengthHeader(body string) Header {
	return Header{Name: "Content-Length", Value: strconv.Itoa(len(body))}
}

package httpwire

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Approximate status line length ("HTTP/1.1 200 OK\r\n" and friends).
const statusLineSize = 20

// ErrChunkedNotSupported is returned when the server responds with
// Transfer-Encoding: chunked. A chunked body cannot be committed as a
// contiguous span, so the exchange is rejected before the body is read.
var ErrChunkedNotSupported = errors.New(
	"server returned Transfer-Encoding: chunked, which cannot be notarized; ensure streaming is disabled in the request")

// Response is a fully read HTTP response with its wire size accounted.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// WireSize returns the on-wire size of the response:
// status-line estimate + Σ(name + ": " + value + CRLF) + CRLF + body.
func (r *Response) WireSize() int {
	return statusLineSize + headerBlockSize(r.Header) + 2 + len(r.Body)
}

func headerBlockSize(h http.Header) int {
	size := 0
	for name, values := range h {
		for _, v := range values {
			size += len(name) + 2 + len(v) + 2
		}
	}
	return size
}

// ReadResponse consumes one response from the stream. It fails with
// ErrChunkedNotSupported before touching the body when the transfer
// encoding is chunked.
func ReadResponse(parsed *http.Response) (*Response, error) {
	for _, te := range parsed.TransferEncoding {
		if strings.EqualFold(te, "chunked") {
			_ = parsed.Body.Close()
			return nil, ErrChunkedNotSupported
		}
	}
	// Some servers announce the header without hyper-style normalization.
	if strings.EqualFold(parsed.Header.Get("Transfer-Encoding"), "chunked") {
		_ = parsed.Body.Close()
		return nil, ErrChunkedNotSupported
	}

	body, err := io.ReadAll(parsed.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if err := parsed.Body.Close(); err != nil {
		return nil, fmt.Errorf("closing response body: %w", err)
	}

	return &Response{
		StatusCode: parsed.StatusCode,
		Header:     parsed.Header,
		Body:       body,
	}, nil
}

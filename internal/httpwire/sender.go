package httpwire

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Sender dispatches a request and returns the fully read response.
type Sender interface {
	// Do writes the request to the wire and reads one response.
	// The context deadline, if any, bounds the whole exchange.
	Do(ctx context.Context, req *Request) (*Response, error)
}

// ConnSender drives HTTP/1.1 over a single connection. It supports
// keep-alive reuse: consecutive Do calls share the connection and its
// read buffer.
type ConnSender struct {
	conn net.Conn
	br   *bufio.Reader
}

// NewConnSender wraps an established connection (typically TLS).
func NewConnSender(conn net.Conn) *ConnSender {
	return &ConnSender{conn: conn, br: bufio.NewReader(conn)}
}

// Do implements Sender.
func (s *ConnSender) Do(ctx context.Context, req *Request) (*Response, error) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		if err := s.conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("setting connection deadline: %w", err)
		}
		defer func() {
			_ = s.conn.SetDeadline(time.Time{})
		}()
	}

	wire := req.Bytes()
	if _, err := s.conn.Write(wire); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	log.Trace().Int("bytes", len(wire)).Str("path", req.Path).Msg("request written")

	parsed, err := http.ReadResponse(s.br, nil)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return ReadResponse(parsed)
}

// Close closes the underlying connection.
func (s *ConnSender) Close() error {
	return s.conn.Close()
}

var _ Sender = (*ConnSender)(nil)

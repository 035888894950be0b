// Package session provides the TLS session handle the drivers operate
// on: dial through the notary, exchange HTTP over the channel, then
// commit the recorded transcript for notarization.
//
// DESIGN: The MPC machinery itself is behind the Dialer interface. The
// in-repo dialer records the plaintext streams of a standard TLS
// connection and notarizes them with the configured notary (in-process
// for ephemeral mode, over the notarization channel for remote modes).
// MPC-backed implementations satisfy the same interface externally.
package session

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/elusaegis/ai-passport/internal/httpwire"
	"github.com/elusaegis/ai-passport/internal/notary"
)

// SignFunc asks the session's notary to sign an attestation payload.
// It returns the hex signature and the notary's hex public key.
type SignFunc func(ctx context.Context, message []byte) (signature, publicKey string, err error)

// Committed is the fixed transcript of a finished session. Ownership
// passes to the finalizer, which builds the attestation artifact.
type Committed struct {
	SessionID  string
	ServerName string
	// Sent is the full plaintext byte stream written to the server.
	Sent []byte
	// Recv is the full plaintext byte stream read from the server.
	Recv []byte
	// Sign binds the transcript to the notary that witnessed it.
	Sign SignFunc
}

// Session is one live TLS channel to the LLM server.
type Session struct {
	ID         string
	serverName string

	sender *httpwire.ConnSender
	rec    *recordingConn
	sign   SignFunc
	closer func() error

	committed bool
}

// Sender returns the HTTP sender bound to this session's channel.
func (s *Session) Sender() httpwire.Sender {
	return s.sender
}

// Commit closes the channel and fixes the recorded transcript.
// The session cannot be used afterwards.
func (s *Session) Commit(ctx context.Context) (*Committed, error) {
	if s.committed {
		return nil, fmt.Errorf("session %s already committed", s.ID)
	}
	s.committed = true

	if err := s.sender.Close(); err != nil {
		log.Debug().Err(err).Str("session_id", s.ID).Msg("closing session channel")
	}

	sent, recv := s.rec.streams()
	log.Debug().
		Str("session_id", s.ID).
		Int("sent", len(sent)).
		Int("recv", len(recv)).
		Msg("session committed")

	return &Committed{
		SessionID:  s.ID,
		ServerName: s.serverName,
		Sent:       sent,
		Recv:       recv,
		Sign:       s.sign,
	}, nil
}

// Discard abandons the session without notarizing. The partial
// transcript is dropped.
func (s *Session) Discard() {
	s.committed = true
	_ = s.sender.Close()
	if s.closer != nil {
		_ = s.closer()
	}
	log.Debug().Str("session_id", s.ID).Msg("session discarded, transcript dropped")
}

// Close releases the notary channel after the transcript has been
// sealed into an artifact.
func (s *Session) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// Dialer opens notarized sessions. This is the boundary behind which
// the MPC backend lives.
type Dialer interface {
	Dial(ctx context.Context, nc notary.Config, serverName string, port int) (*Session, error)
}

// recordingConn tees the plaintext streams of a connection. It sits
// above the TLS layer, so the recorded bytes are the decrypted
// application data.
type recordingConn struct {
	net.Conn

	mu   sync.Mutex
	sent []byte
	recv []byte
}

func (c *recordingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.mu.Lock()
		c.recv = append(c.recv, p[:n]...)
		c.mu.Unlock()
	}
	return n, err
}

func (c *recordingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.mu.Lock()
		c.sent = append(c.sent, p[:n]...)
		c.mu.Unlock()
	}
	return n, err
}

func (c *recordingConn) streams() (sent, recv []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent, c.recv
}

// New assembles a Session over an established connection. External
// backends use this to expose their own channels through the same
// handle; closer, if non-nil, releases the notary channel.
func New(conn net.Conn, serverName string, sign SignFunc, closer func() error) *Session {
	rec := &recordingConn{Conn: conn}
	return &Session{
		ID:         uuid.NewString(),
		serverName: serverName,
		sender:     httpwire.NewConnSender(rec),
		rec:        rec,
		sign:       sign,
		closer:     closer,
	}
}

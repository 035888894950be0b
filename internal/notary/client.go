package notary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
)

// PolicyRejectionError reports that the requested channel capacity
// exceeds the notary's published limits. Fatal for this configuration.
type PolicyRejectionError struct {
	MaxSent   int
	MaxRecv   int
	Dimension string // "sent", "recv" or "" when the notary did not say
	Reason    string
}

func (e *PolicyRejectionError) Error() string {
	dim := e.Dimension
	if dim == "" {
		dim = "sent/recv"
	}
	msg := fmt.Sprintf(
		"notary rejected the requested channel capacity (%s): sent=%d recv=%d bytes",
		dim, e.MaxSent, e.MaxRecv)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg + "\n" +
		"Total limits can exceed the notary policy even when single-message caps look fine:\n" +
		"  - in single-shot mode total sent grows ~O(n²) with the round count; reduce rounds or message sizes\n" +
		"  - lower the max single request/response sizes, or raise the totals within policy"
}

// sessionRequest declares the channel capacity in the handshake.
type sessionRequest struct {
	ClientType        string `json:"clientType"`
	MaxSentData       int    `json:"maxSentData"`
	MaxRecvData       int    `json:"maxRecvData"`
	MaxRecvDataOnline int    `json:"maxRecvDataOnline"`
	DeferDecryption   bool   `json:"deferDecryption"`
	Network           string `json:"network"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
}

// RemoteChannel is an accepted notarization channel to a remote notary.
// The websocket carries the MPC traffic and, at finalization, the
// signing exchange.
type RemoteChannel struct {
	SessionID string
	ws        *websocket.Conn
}

// Connect performs the notary handshake: the capacity declaration via
// the session API, then the channel upgrade. A declined declaration
// surfaces as a PolicyRejectionError.
func Connect(ctx context.Context, cfg Config) (*RemoteChannel, error) {
	scheme, wsScheme := "https", "wss"
	if cfg.Mode == ModeRemoteNonTLS {
		scheme, wsScheme = "http", "ws"
	}

	base := fmt.Sprintf("%s://%s:%d%s", scheme, cfg.Domain, cfg.Port, normalizePrefix(cfg.PathPrefix))

	reqBody, err := json.Marshal(sessionRequest{
		ClientType:        "websocket",
		MaxSentData:       cfg.MaxTotalSent,
		MaxRecvData:       cfg.MaxTotalRecv,
		MaxRecvDataOnline: cfg.MaxDecryptedOnline,
		DeferDecryption:   cfg.DeferDecryption,
		Network:           string(cfg.Network),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/session", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("building session request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("requesting notarization session: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden ||
			resp.StatusCode == http.StatusRequestEntityTooLarge {
			return nil, &PolicyRejectionError{
				MaxSent: cfg.MaxTotalSent,
				MaxRecv: cfg.MaxTotalRecv,
				Reason:  string(bytes.TrimSpace(body)),
			}
		}
		return nil, fmt.Errorf("notary session request failed with status %d: %s", resp.StatusCode, body)
	}

	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("decoding session response: %w", err)
	}

	wsURL := fmt.Sprintf("%s://%s:%d%s/notarize?sessionId=%s",
		wsScheme, cfg.Domain, cfg.Port, normalizePrefix(cfg.PathPrefix), session.SessionID)

	ws, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrading notarization channel: %w", err)
	}

	log.Debug().
		Str("session_id", session.SessionID).
		Int("max_sent", cfg.MaxTotalSent).
		Int("max_recv", cfg.MaxTotalRecv).
		Msg("notary session accepted")

	return &RemoteChannel{SessionID: session.SessionID, ws: ws}, nil
}

type signRequest struct {
	Commitment string `json:"commitment"`
}

type signResponse struct {
	Signature string `json:"signature"`
	PublicKey string `json:"publicKey"`
	Error     string `json:"error,omitempty"`
}

// Sign submits an attestation payload over the channel and returns the
// notary's signature and public key, both hex-encoded.
func (c *RemoteChannel) Sign(ctx context.Context, message []byte) (signature, publicKey string, err error) {
	req, err := json.Marshal(signRequest{Commitment: string(message)})
	if err != nil {
		return "", "", fmt.Errorf("encoding sign request: %w", err)
	}
	if err := c.ws.Write(ctx, websocket.MessageText, req); err != nil {
		return "", "", fmt.Errorf("sending sign request: %w", err)
	}

	_, data, err := c.ws.Read(ctx)
	if err != nil {
		return "", "", fmt.Errorf("reading sign response: %w", err)
	}

	var resp signResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", "", fmt.Errorf("decoding sign response: %w", err)
	}
	if resp.Error != "" {
		return "", "", fmt.Errorf("notary refused to sign: %s", resp.Error)
	}
	return resp.Signature, resp.PublicKey, nil
}

// Close shuts the notarization channel down.
func (c *RemoteChannel) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "session complete")
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	if prefix[0] != '/' {
		return "/" + prefix
	}
	return prefix
}

package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/elusaegis/ai-passport/internal/notary"
)

// TLSDialer opens recorded TLS sessions witnessed by the configured
// notary. Remote modes run the capacity handshake before the server
// connection so a policy rejection surfaces before any bytes are
// exchanged with the LLM.
type TLSDialer struct {
	// TLSConfig overrides the client TLS configuration, for tests
	// against self-signed servers. Nil uses system roots.
	TLSConfig *tls.Config
}

// Dial implements Dialer.
func (d *TLSDialer) Dial(ctx context.Context, nc notary.Config, serverName string, port int) (*Session, error) {
	if err := nc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid notary config: %w", err)
	}

	sign, closer, err := d.attachNotary(ctx, nc)
	if err != nil {
		return nil, err
	}

	conn, err := d.dialServer(ctx, serverName, port)
	if err != nil {
		if closer != nil {
			_ = closer()
		}
		return nil, err
	}

	log.Debug().
		Str("server", serverName).
		Int("port", port).
		Str("notary_mode", string(nc.Mode)).
		Msg("session established")

	return New(conn, serverName, sign, closer), nil
}

// attachNotary obtains the signing capability for the session.
func (d *TLSDialer) attachNotary(ctx context.Context, nc notary.Config) (SignFunc, func() error, error) {
	if nc.Mode == notary.ModeEphemeral {
		signer, err := notary.EphemeralSigner()
		if err != nil {
			return nil, nil, err
		}
		sign := func(_ context.Context, message []byte) (string, string, error) {
			return signer.Sign(message), signer.PublicKeyHex(), nil
		}
		return sign, nil, nil
	}

	channel, err := notary.Connect(ctx, nc)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to notary: %w", err)
	}
	return channel.Sign, channel.Close, nil
}

// dialServer opens the TLS connection to the LLM host.
func (d *TLSDialer) dialServer(ctx context.Context, serverName string, port int) (net.Conn, error) {
	addr := net.JoinHostPort(serverName, fmt.Sprintf("%d", port))

	tcpConn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	tlsCfg := d.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{ServerName: serverName}
	} else if tlsCfg.ServerName == "" {
		tlsCfg = tlsCfg.Clone()
		tlsCfg.ServerName = serverName
	}

	tlsConn := tls.Client(tcpConn, tlsCfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = tcpConn.Close()
		return nil, fmt.Errorf("TLS handshake with %s: %w", addr, err)
	}
	return tlsConn, nil
}

var _ Dialer = (*TLSDialer)(nil)

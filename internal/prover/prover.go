// Package prover implements the four proving strategies.
//
// DESIGN: Each strategy runs the shared interaction loop under its own
// budget and connection discipline:
//
//   - Direct:        plain HTTPS, unlimited budget, no proof
//   - Proxy:         TLS via the attestation proxy, proof on demand
//   - TlsSingleShot: one notarized session, one proof at the end
//   - TlsPerMessage: fresh notarized session per round, pre-warmed,
//     one proof per round
//
// All strategies consume messages until the input source terminates.
// The returned paths are the written proof artifacts; Direct produces
// none.
package prover

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/elusaegis/ai-passport/internal/config"
	"github.com/elusaegis/ai-passport/internal/interaction"
	"github.com/elusaegis/ai-passport/internal/store"
)

// Kind selects which session driver runs.
type Kind string

const (
	KindDirect        Kind = "direct"
	KindProxy         Kind = "proxy"
	KindTlsSingleShot Kind = "tls_single_shot"
	KindTlsPerMessage Kind = "tls_per_message"
)

// ParseKind parses a prover selector, accepting the CLI/env aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct":
		return KindDirect, nil
	case "proxy":
		return KindProxy, nil
	case "tls-single", "tls_single", "tls-single-shot", "tls_single_shot", "single-shot":
		return KindTlsSingleShot, nil
	case "tls-per-message", "tls_per_message", "per-message", "per_message":
		return KindTlsPerMessage, nil
	default:
		return "", fmt.Errorf(
			"unknown prover %q (expected direct, proxy, tls-single or tls-per-message)", s)
	}
}

// Prover runs one proving session: it consumes messages from the input
// source until it terminates, and returns the proof file paths it
// wrote. A non-nil error may still come with proofs covering the
// completed rounds.
type Prover interface {
	Run(ctx context.Context, cfg *config.ProveConfig, input *interaction.Holder) ([]string, error)
}

// dialTLS opens a TLS connection with an optional config override.
func dialTLS(ctx context.Context, domain string, port int, override *tls.Config) (net.Conn, error) {
	addr := net.JoinHostPort(domain, fmt.Sprintf("%d", port))

	tcpConn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	cfg := override
	if cfg == nil {
		cfg = &tls.Config{ServerName: domain}
	} else if cfg.ServerName == "" {
		cfg = cfg.Clone()
		cfg.ServerName = domain
	}

	tlsConn := tls.Client(tcpConn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = tcpConn.Close()
		return nil, fmt.Errorf("TLS handshake with %s: %w", addr, err)
	}
	return tlsConn, nil
}

// recordProof indexes a written artifact when a registry is configured.
func recordProof(ctx context.Context, registry *store.Registry, cfg *config.ProveConfig, kind Kind, stage, path string) {
	if registry == nil {
		return
	}
	if _, err := registry.Record(ctx, store.Proof{
		Model:    cfg.ModelID,
		Provider: cfg.API.Name(),
		Strategy: string(kind),
		Stage:    stage,
		Path:     path,
	}); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to index proof in registry")
	}
}

// Package notary holds the notary session configuration and the
// clients used to obtain a notarization channel: a remote notary
// reached over its HTTP session API, or an in-process ephemeral notary
// backed by a bundled signing key.
package notary

import (
	"fmt"
	"strings"
)

// Mode selects how the notary is reached.
type Mode string

const (
	// ModeRemoteTLS uses HTTPS to a public notary server.
	ModeRemoteTLS Mode = "remote_tls"
	// ModeRemoteNonTLS uses plaintext HTTP, for local or test notaries.
	ModeRemoteNonTLS Mode = "remote_non_tls"
	// ModeEphemeral runs the notary in process with a bundled key.
	ModeEphemeral Mode = "ephemeral"
)

// ParseMode parses a notary type string, accepting the CLI aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remote", "remote_tls", "remote-tls":
		return ModeRemoteTLS, nil
	case "remote_non_tls", "remote-non-tls":
		return ModeRemoteNonTLS, nil
	case "ephemeral":
		return ModeEphemeral, nil
	default:
		return "", fmt.Errorf("unknown notary type %q (expected remote, remote_non_tls or ephemeral)", s)
	}
}

// NetworkSetting is the MPC network optimization strategy.
type NetworkSetting string

const (
	NetworkLatency   NetworkSetting = "latency"
	NetworkBandwidth NetworkSetting = "bandwidth"
)

// ParseNetworkSetting parses a network optimization string.
func ParseNetworkSetting(s string) (NetworkSetting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "latency":
		return NetworkLatency, nil
	case "bandwidth":
		return NetworkBandwidth, nil
	default:
		return "", fmt.Errorf("unknown network optimization %q (expected latency or bandwidth)", s)
	}
}

// Config describes one notary session. It is created once per session;
// per-message drivers derive a tightened copy per round.
type Config struct {
	// Domain of the notary server.
	Domain string
	// Port of the notary server.
	Port int
	// PathPrefix is the API version prefix on notary routes.
	PathPrefix string
	// Mode selects remote TLS, remote plaintext or ephemeral.
	Mode Mode
	// MaxTotalSent is the session cap on bytes sent to the server.
	MaxTotalSent int
	// MaxTotalRecv is the session cap on bytes received.
	MaxTotalRecv int
	// MaxDecryptedOnline caps bytes decrypted during the online phase.
	MaxDecryptedOnline int
	// DeferDecryption postpones decryption to the end of the session.
	DeferDecryption bool
	// Network is the MPC network optimization strategy.
	Network NetworkSetting
}

// WithCaps returns a copy with replaced channel capacity limits.
func (c Config) WithCaps(maxSent, maxRecv int) Config {
	c.MaxTotalSent = maxSent
	c.MaxTotalRecv = maxRecv
	return c
}

// Validate checks the fields required by the selected mode.
func (c Config) Validate() error {
	if c.MaxTotalSent <= 0 || c.MaxTotalRecv <= 0 {
		return fmt.Errorf("notary channel caps must be positive (sent=%d recv=%d)", c.MaxTotalSent, c.MaxTotalRecv)
	}
	if c.Mode != ModeEphemeral && c.Domain == "" {
		return fmt.Errorf("notary domain is required for %s mode", c.Mode)
	}
	return nil
}

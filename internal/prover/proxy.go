package prover

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/elusaegis/ai-passport/internal/attest"
	"github.com/elusaegis/ai-passport/internal/budget"
	"github.com/elusaegis/ai-passport/internal/chat"
	"github.com/elusaegis/ai-passport/internal/config"
	"github.com/elusaegis/ai-passport/internal/httpwire"
	"github.com/elusaegis/ai-passport/internal/interaction"
	"github.com/elusaegis/ai-passport/internal/store"
)

// Proxy drives the conversation through an attestation proxy. The
// proxy forwards each request by its Host header, records the
// transcript, and returns a signed attestation on demand. No byte
// limits apply locally.
type Proxy struct {
	Proxy config.ProxyConfig
	// Registry, if set, indexes written proofs.
	Registry *store.Registry
	// TLSConfig overrides the client TLS configuration, for tests.
	TLSConfig *tls.Config
}

// Run implements Prover.
func (p *Proxy) Run(ctx context.Context, cfg *config.ProveConfig, input *interaction.Holder) ([]string, error) {
	log.Info().
		Str("proxy", fmt.Sprintf("%s:%d", p.Proxy.Host, p.Proxy.Port)).
		Str("target", fmt.Sprintf("%s:%d", cfg.API.Domain, cfg.API.Port)).
		Msg("connecting through attestation proxy")

	conn, err := dialTLS(ctx, p.Proxy.Host, p.Proxy.Port, p.TLSConfig)
	if err != nil {
		return nil, err
	}
	sender := httpwire.NewConnSender(conn)
	defer sender.Close()

	b := budget.NewUnlimited()
	roundCfg := interaction.RoundConfig{
		API:     cfg.API,
		ModelID: cfg.ModelID,
		Timeout: cfg.RequestTimeout,
	}

	var history []chat.Message
	for {
		done, err := interaction.Round(ctx, sender, input, roundCfg, &history, b)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}

	if len(history) == 0 {
		log.Info().Msg("no rounds exchanged, skipping attestation")
		return nil, nil
	}

	path, err := p.fetchAttestation(ctx, sender, cfg)
	if err != nil {
		return nil, err
	}

	recordProof(ctx, p.Registry, cfg, KindProxy, "proxy", path)
	return []string{path}, nil
}

// fetchAttestation ends the proxied session with GET /__attest and
// writes the returned pre-signed artifact. The censor list covers both
// directions; the proxy overwrites matching header values before
// signing.
func (p *Proxy) fetchAttestation(ctx context.Context, sender httpwire.Sender, cfg *config.ProveConfig) (string, error) {
	censor := cfg.API.CensorHeaders()
	log.Debug().Strs("censor_headers", censor).Msg("requesting attestation from proxy")

	req := &httpwire.Request{Method: "GET", Path: "/__attest"}
	req.AddHeader("Host", cfg.API.Domain)
	req.AddHeader("x-censor-headers", strings.Join(censor, ","))
	req.AddHeader("Connection", "close")

	resp, err := sender.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("attestation request failed: %w", err)
	}
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("attestation request failed with status %d", resp.StatusCode)
	}

	path, err := attest.WriteProxyProof(resp.Body, "proxy", cfg.API.Domain)
	if err != nil {
		return "", err
	}

	log.Info().Str("path", path).Msg("attestation saved")
	return path, nil
}

var _ Prover = (*Proxy)(nil)

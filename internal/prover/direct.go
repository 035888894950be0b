package prover

import (
	"context"
	"crypto/tls"

	"github.com/rs/zerolog/log"

	"github.com/elusaegis/ai-passport/internal/budget"
	"github.com/elusaegis/ai-passport/internal/chat"
	"github.com/elusaegis/ai-passport/internal/config"
	"github.com/elusaegis/ai-passport/internal/httpwire"
	"github.com/elusaegis/ai-passport/internal/interaction"
)

// Direct is the passthrough strategy: a plain HTTPS connection to the
// model API, unlimited budget, no proofs. For development and testing.
type Direct struct {
	// TLSConfig overrides the client TLS configuration, for tests.
	TLSConfig *tls.Config
}

// Run implements Prover.
func (d *Direct) Run(ctx context.Context, cfg *config.ProveConfig, input *interaction.Holder) ([]string, error) {
	log.Info().
		Str("model", cfg.ModelID).
		Str("api", cfg.API.Domain).
		Msg("direct mode: passthrough, no proofs will be generated")

	conn, err := dialTLS(ctx, cfg.API.Domain, cfg.API.Port, d.TLSConfig)
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

	log.Info().Int("rounds", len(history)/2).Msg("direct session complete")
	return nil, nil
}

var _ Prover = (*Direct)(nil)

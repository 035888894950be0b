package prover

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/elusaegis/ai-passport/internal/attest"
	"github.com/elusaegis/ai-passport/internal/budget"
	"github.com/elusaegis/ai-passport/internal/capacity"
	"github.com/elusaegis/ai-passport/internal/chat"
	"github.com/elusaegis/ai-passport/internal/config"
	"github.com/elusaegis/ai-passport/internal/interaction"
	"github.com/elusaegis/ai-passport/internal/notary"
	"github.com/elusaegis/ai-passport/internal/session"
	"github.com/elusaegis/ai-passport/internal/store"
)

// PerMessage runs a fresh notarized session per round and writes one
// proof per exchange. While a round notarizes, the next session's
// handshake is already running in a pre-warmed slot, hiding its
// latency.
type PerMessage struct {
	Notary notary.Config
	Dialer session.Dialer
	// Registry, if set, indexes written proofs.
	Registry *store.Registry
}

// setupResult is the outcome of one background session handshake.
type setupResult struct {
	sess    *session.Session
	planned notary.Config
	err     error
}

// Run implements Prover.
func (p *PerMessage) Run(ctx context.Context, cfg *config.ProveConfig, input *interaction.Holder) ([]string, error) {
	b := budget.New(
		budget.Limited(p.Notary.MaxTotalSent, p.Notary.MaxTotalRecv),
		cfg.API.ExpectedOverhead(),
	)

	// spawn plans a session for a round `lookahead` rounds ahead of the
	// given history and starts its handshake in the background. The
	// spawned task owns its planned config; only the finished session
	// crosses back.
	spawn := func(history []chat.Message, lookahead int) <-chan setupResult {
		planned := capacity.PlanRound(p.Notary, capacity.PlanInput{
			MaxRequestBytes:  cfg.MaxRequestBytes,
			MaxResponseBytes: cfg.MaxResponseBytes,
			RequestOverhead:  b.RequestOverhead(),
			ResponseOverhead: b.ResponseOverhead(),
		}, history, lookahead)

		// One exchange per session: decryption always waits for the end.
		planned.DeferDecryption = true
		planned.MaxDecryptedOnline = 0

		ch := make(chan setupResult, 1)
		go func() {
			sess, err := p.Dialer.Dial(ctx, planned, cfg.API.Domain, cfg.API.Port)
			ch <- setupResult{sess: sess, planned: planned, err: err}
		}()
		return ch
	}

	roundCfg := interaction.RoundConfig{
		API:             cfg.API,
		ModelID:         cfg.ModelID,
		Timeout:         cfg.RequestTimeout,
		CloseConnection: true,
	}

	var history []chat.Message
	var proofs []string

	current := spawn(history, 1)
	warm := spawn(history, 2)

	for counter := 0; ; counter++ {
		res := <-current
		if res.err != nil {
			discardWarm(warm)
			return proofs, fmt.Errorf("session setup failed: %w", res.err)
		}

		// Fresh capacity for this round, planned for the current history
		// with lookahead 1 and never above the session's own caps;
		// learned overhead persists.
		round := capacity.PlanRound(p.Notary, capacity.PlanInput{
			MaxRequestBytes:  cfg.MaxRequestBytes,
			MaxResponseBytes: cfg.MaxResponseBytes,
			RequestOverhead:  b.RequestOverhead(),
			ResponseOverhead: b.ResponseOverhead(),
		}, history, 1)
		b.Reset().SetCapacity(budget.Limited(
			min(round.MaxTotalSent, res.planned.MaxTotalSent),
			min(round.MaxTotalRecv, res.planned.MaxTotalRecv),
		))

		done, err := interaction.Round(ctx, res.sess.Sender(), input, roundCfg, &history, b)
		if done {
			res.sess.Discard()
			discardWarm(warm)
			break
		}
		if err != nil {
			res.sess.Discard()
			discardWarm(warm)
			return proofs, err
		}

		// Notarize this round while the warm slot keeps handshaking.
		committed, err := res.sess.Commit(ctx)
		if err != nil {
			discardWarm(warm)
			return proofs, err
		}

		att, err := attest.Finalize(ctx, committed, cfg.API)
		if err != nil {
			discardWarm(warm)
			return proofs, err
		}

		stage := fmt.Sprintf("part_%d_per_message", counter)
		path, err := attest.WriteTLSProof(att, cfg.ModelID, stage)
		if err != nil {
			discardWarm(warm)
			return proofs, err
		}
		_ = res.sess.Close()

		recordProof(ctx, p.Registry, cfg, KindTlsPerMessage, stage, path)
		proofs = append(proofs, path)

		log.Debug().Int("round", counter).Str("path", path).Msg("per-message proof written")

		// Promote the warm slot and start the next handshake.
		current = warm
		warm = spawn(history, 2)
	}

	return proofs, nil
}

// discardWarm drops an unused pre-warmed session once its handshake
// settles, without blocking the caller.
func discardWarm(ch <-chan setupResult) {
	go func() {
		if res := <-ch; res.err == nil {
			res.sess.Discard()
		}
	}()
}

var _ Prover = (*PerMessage)(nil)

package prover

import (
	"context"
	"errors"

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

// SingleShot runs the whole conversation over one notarized session
// and produces one proof at the end. Sent bytes grow O(n²) with the
// round count since every request re-sends the conversation prefix.
type SingleShot struct {
	Notary notary.Config
	Dialer session.Dialer
	// MaxRounds is the planned round count for capacity pre-sizing.
	// 0 skips planning and uses the notary caps as-is.
	MaxRounds int
	// Registry, if set, indexes written proofs.
	Registry *store.Registry
}

// Run implements Prover.
func (s *SingleShot) Run(ctx context.Context, cfg *config.ProveConfig, input *interaction.Holder) ([]string, error) {
	expected := cfg.API.ExpectedOverhead()

	planned, err := capacity.PlanSingleShot(s.Notary, capacity.PlanInput{
		Rounds:           s.MaxRounds,
		MaxRequestBytes:  cfg.MaxRequestBytes,
		MaxResponseBytes: cfg.MaxResponseBytes,
		RequestOverhead:  expected.Request,
		ResponseOverhead: expected.Response,
	})
	if err != nil {
		return nil, err
	}

	sess, err := s.Dialer.Dial(ctx, planned, cfg.API.Domain, cfg.API.Port)
	if err != nil {
		return nil, err
	}

	b := budget.New(budget.Limited(planned.MaxTotalSent, planned.MaxTotalRecv), expected)
	roundCfg := interaction.RoundConfig{
		API:     cfg.API,
		ModelID: cfg.ModelID,
		Timeout: cfg.RequestTimeout,
	}

	var history []chat.Message
	var roundErr error
	for {
		done, err := interaction.Round(ctx, sess.Sender(), input, roundCfg, &history, b)
		if err != nil {
			if completedRounds(history) > 0 && notarizableFailure(err) {
				// The failed request never hit the wire; the committed
				// transcript covers the completed rounds only.
				roundErr = err
				break
			}
			sess.Discard()
			return nil, err
		}
		if done {
			break
		}
	}

	if completedRounds(history) == 0 {
		sess.Discard()
		return nil, roundErr
	}

	log.Debug().Int("rounds", completedRounds(history)).Msg("notarizing the session")

	committed, err := sess.Commit(ctx)
	if err != nil {
		return nil, err
	}

	att, err := attest.Finalize(ctx, committed, cfg.API)
	if err != nil {
		return nil, err
	}

	path, err := attest.WriteTLSProof(att, cfg.ModelID, "single_shot")
	if err != nil {
		return nil, err
	}
	_ = sess.Close()

	recordProof(ctx, s.Registry, cfg, KindTlsSingleShot, "single_shot", path)
	return []string{path}, roundErr
}

// notarizableFailure reports whether a round failure left the
// transcript covering only completed rounds. Budget exhaustion is
// detected pre-send; any failure after bytes moved leaves a dangling
// half-round that must not be notarized.
func notarizableFailure(err error) bool {
	var exceeded *budget.ExceededError
	return errors.As(err, &exceeded)
}

// completedRounds counts full user/assistant pairs.
func completedRounds(history []chat.Message) int {
	return len(history) / 2
}

var _ Prover = (*SingleShot)(nil)

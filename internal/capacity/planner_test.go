package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elusaegis/ai-passport/internal/chat"
	"github.com/elusaegis/ai-passport/internal/notary"
)

func baseConfig() notary.Config {
	return notary.Config{
		Domain:       "localhost",
		Port:         7047,
		Mode:         notary.ModeRemoteNonTLS,
		MaxTotalSent: 16384,
		MaxTotalRecv: 16384,
		Network:      notary.NetworkLatency,
	}
}

func sizedInput() PlanInput {
	return PlanInput{
		Rounds:           3,
		MaxRequestBytes:  500,
		MaxResponseBytes: 2000,
		RequestOverhead:  300,
		ResponseOverhead: 600,
	}
}

func TestPlanSingleShotFormula(t *testing.T) {
	cfg, err := PlanSingleShot(baseConfig(), sizedInput())
	require.NoError(t, err)

	// sent = R' + (N-1)(R+S) = 800 + 2*2500
	assert.Equal(t, 800+2*2500, cfg.MaxTotalSent)
	// recv = N * S' = 3 * 2600
	assert.Equal(t, 3*2600, cfg.MaxTotalRecv)
}

func TestPlanSingleShotFallsBackWithoutSizes(t *testing.T) {
	base := baseConfig()

	cfg, err := PlanSingleShot(base, PlanInput{Rounds: 3})
	require.NoError(t, err)
	assert.Equal(t, base, cfg)
}

func TestPlanSingleShotRejectsOverPolicy(t *testing.T) {
	in := sizedInput()
	in.Rounds = 50 // sent total blows past 16 KiB

	_, err := PlanSingleShot(baseConfig(), in)
	require.Error(t, err)

	var rejection *notary.PolicyRejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "sent", rejection.Dimension)
}

func TestPlanSingleShotRejectsRecvDimension(t *testing.T) {
	base := baseConfig()
	base.MaxTotalSent = 1 << 20 // plenty of send room
	in := sizedInput()
	in.Rounds = 10 // recv = 10*2600 > 16384

	_, err := PlanSingleShot(base, in)
	require.Error(t, err)

	var rejection *notary.PolicyRejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "recv", rejection.Dimension)
}

func TestPlanRoundEmptyHistory(t *testing.T) {
	base := baseConfig()
	cfg := PlanRound(base, sizedInput(), nil, 1)

	// First round is far smaller than the base caps.
	assert.Less(t, cfg.MaxTotalSent, base.MaxTotalSent)
	assert.Less(t, cfg.MaxTotalRecv, base.MaxTotalRecv)

	// Single-exchange sessions defer all decryption.
	assert.True(t, cfg.DeferDecryption)
	assert.Equal(t, 0, cfg.MaxDecryptedOnline)

	// sent = (300 + 2 + 500) * 1.2, recv = (600 + 2000) * 1.2
	assert.Equal(t, int(float64(300+2+500)*1.2), cfg.MaxTotalSent)
	assert.Equal(t, int(float64(600+2000)*1.2), cfg.MaxTotalRecv)
}

func TestPlanRoundGrowsWithHistory(t *testing.T) {
	base := baseConfig()
	empty := PlanRound(base, sizedInput(), nil, 1)

	history := []chat.Message{
		chat.User("Hello, how are you?"),
		chat.Assistant("I'm doing well, thank you for asking!"),
	}
	withHistory := PlanRound(base, sizedInput(), history, 1)

	assert.Greater(t, withHistory.MaxTotalSent, empty.MaxTotalSent)
	// Responses do not re-send history.
	assert.Equal(t, empty.MaxTotalRecv, withHistory.MaxTotalRecv)
}

func TestPlanRoundLookaheadIncreasesCapacity(t *testing.T) {
	base := baseConfig()
	one := PlanRound(base, sizedInput(), nil, 1)
	two := PlanRound(base, sizedInput(), nil, 2)

	assert.Greater(t, two.MaxTotalSent, one.MaxTotalSent)
}

func TestPlanRoundClampsToBase(t *testing.T) {
	base := baseConfig()
	in := sizedInput()
	in.MaxRequestBytes = 100000
	in.MaxResponseBytes = 100000

	cfg := PlanRound(base, in, nil, 1)
	assert.Equal(t, base.MaxTotalSent, cfg.MaxTotalSent)
	assert.Equal(t, base.MaxTotalRecv, cfg.MaxTotalRecv)
}

func TestPlanRoundFallsBackWithoutSizes(t *testing.T) {
	base := baseConfig()
	cfg := PlanRound(base, PlanInput{}, nil, 1)
	assert.Equal(t, base, cfg)
}

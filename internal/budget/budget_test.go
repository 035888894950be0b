package budget

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elusaegis/ai-passport/internal/chat"
)

func makeLimited(sentCap, recvCap int) *Budget {
	return New(Limited(sentCap, recvCap), ExpectedOverhead{})
}

func TestUnlimitedBudget(t *testing.T) {
	b := NewUnlimited()
	assert.True(t, b.IsUnlimited())

	require.NoError(t, b.CheckRequestFits(1<<30))

	_, ok := b.MaxTokensForResponse()
	assert.False(t, ok)
	_, ok = b.AvailableInputBytes(nil)
	assert.False(t, ok)
	_, ok = b.AvailableRecvBytes()
	assert.False(t, ok)
}

func TestCheckRequestFits(t *testing.T) {
	b := makeLimited(1000, 2000)
	require.NoError(t, b.CheckRequestFits(1000))

	b = makeLimited(50, 2000)
	err := b.CheckRequestFits(120)
	require.Error(t, err)

	var exceeded *ExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, "sent", exceeded.Direction)
	assert.Equal(t, 120, exceeded.Need)
	assert.Equal(t, 50, exceeded.Remaining)
}

func TestRecordSentAccumulates(t *testing.T) {
	b := makeLimited(1000, 2000)

	b.RecordSent(150, 100)
	assert.Equal(t, 150, b.SentUsed())

	b.RecordSent(200, 150)
	assert.Equal(t, 350, b.SentUsed())

	// Monotone: usage never decreases and fits are checked against it.
	err := b.CheckRequestFits(700)
	require.Error(t, err)
}

func TestMaxTokensUsesEstimateInitially(t *testing.T) {
	b := makeLimited(1000, 10000)

	tokens, ok := b.MaxTokensForResponse()
	require.True(t, ok)
	// (10000 - 5000 estimate) / 5
	assert.Equal(t, 1000, tokens)
}

func TestAvailableInputBytes(t *testing.T) {
	b := makeLimited(1000, 2000)

	available, ok := b.AvailableInputBytes(nil)
	require.True(t, ok)
	// 1000 - 2 ("[]") - 285 estimate
	assert.Equal(t, 1000-2-RequestOverheadEstimate, available)
}

func TestAvailableInputBytesSubtractsHistory(t *testing.T) {
	b := makeLimited(5000, 2000)
	history := []chat.Message{
		chat.User("What is Go?"),
		chat.Assistant("A programming language."),
	}

	available, ok := b.AvailableInputBytes(history)
	require.True(t, ok)
	assert.Equal(t, 5000-chat.JSONSize(history)-RequestOverheadEstimate, available)
}

func TestObservedOverheadSupersedesEstimates(t *testing.T) {
	b := makeLimited(1000, 10000)

	// Initially estimates apply.
	available, _ := b.AvailableInputBytes(nil)
	assert.Equal(t, 1000-2-285, available)
	tokens, _ := b.MaxTokensForResponse()
	assert.Equal(t, 1000, tokens)

	b.RecordSent(300, 100) // request overhead = 200
	b.RecordRecv(400, 200) // response overhead = 200

	available, _ = b.AvailableInputBytes(nil)
	assert.Equal(t, 1000-300-2-200, available)

	// recv remaining = 9600, minus observed overhead 200
	tokens, _ = b.MaxTokensForResponse()
	assert.Equal(t, (9600-200)/BytesPerToken, tokens)
}

func TestRequestOverheadFirstObservationWins(t *testing.T) {
	b := makeLimited(10000, 10000)

	b.RecordSent(300, 100)
	assert.Equal(t, 200, b.RequestOverhead())

	// A later differing observation is logged but ignored.
	b.RecordSent(500, 100)
	assert.Equal(t, 200, b.RequestOverhead())
}

func TestResponseOverheadLastObservationWins(t *testing.T) {
	b := makeLimited(10000, 10000)

	b.RecordRecv(400, 200)
	assert.Equal(t, 200, b.ResponseOverhead())

	b.RecordRecv(500, 200)
	assert.Equal(t, 300, b.ResponseOverhead())
}

func TestExpectedOverheadHints(t *testing.T) {
	b := New(Limited(1000, 10000), ExpectedOverhead{Request: 250, Response: 510})

	available, _ := b.AvailableInputBytes(nil)
	assert.Equal(t, 1000-2-250, available)

	tokens, _ := b.MaxTokensForResponse()
	assert.Equal(t, (10000-510)/BytesPerToken, tokens)

	// Observations still supersede hints.
	b.RecordSent(300, 100)
	assert.Equal(t, 200, b.RequestOverhead())
}

func TestResetPreservesOverhead(t *testing.T) {
	b := makeLimited(1000, 10000)

	b.RecordSent(300, 100)
	b.RecordRecv(400, 200)

	b.Reset()

	assert.Equal(t, 0, b.SentUsed())
	assert.Equal(t, 0, b.RecvUsed())

	available, _ := b.AvailableInputBytes(nil)
	assert.Equal(t, 1000-2-200, available)
}

func TestSetCapacity(t *testing.T) {
	b := makeLimited(1000, 1000)
	b.Reset().SetCapacity(Limited(2000, 4000))

	available, ok := b.AvailableRecvBytes()
	require.True(t, ok)
	assert.Equal(t, 4000, available)

	b.SetCapacity(Unlimited())
	assert.True(t, b.IsUnlimited())
}

func TestMaxTokensFloorsAtOne(t *testing.T) {
	b := makeLimited(1000, 100) // remaining < overhead estimate

	tokens, ok := b.MaxTokensForResponse()
	require.True(t, ok)
	assert.Equal(t, 1, tokens)
}

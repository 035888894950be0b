// Package capacity pre-sizes notary channel caps for upcoming sessions.
//
// DESIGN: Planning is pure (inputs in, notary config out) and separate
// from the runtime budget, so the formulas are unit-testable without a
// live network. The chat API is stateless, so round i resends the full
// conversation prefix; single-shot sessions therefore grow O(n²) in
// sent bytes while per-message sessions are sized for one round only.
package capacity

import (
	"github.com/rs/zerolog/log"

	"github.com/elusaegis/ai-passport/internal/budget"
	"github.com/elusaegis/ai-passport/internal/chat"
	"github.com/elusaegis/ai-passport/internal/notary"
)

// bufferFactor is the safety margin applied to per-round estimates.
const bufferFactor = 1.2

// jsonPerMessageOverhead approximates the JSON structure cost of one
// message in the history array (role/content keys, quoting, commas).
const jsonPerMessageOverhead = 50

// PlanInput carries the sizing hints for a conversation.
type PlanInput struct {
	// Rounds is the number of user/assistant exchanges planned.
	Rounds int
	// MaxRequestBytes bounds a single user message.
	MaxRequestBytes int
	// MaxResponseBytes bounds a single assistant reply.
	MaxResponseBytes int
	// RequestOverhead and ResponseOverhead are the per-direction HTTP
	// envelope costs (observed, provider hints, or estimates).
	RequestOverhead  int
	ResponseOverhead int
}

func (in PlanInput) sized() bool {
	return in.MaxRequestBytes > 0 && in.MaxResponseBytes > 0
}

func (in PlanInput) overheads() (req, resp int) {
	req, resp = in.RequestOverhead, in.ResponseOverhead
	if req <= 0 {
		req = budget.RequestOverheadEstimate
	}
	if resp <= 0 {
		resp = budget.ResponseOverheadEstimate
	}
	return req, resp
}

// PlanSingleShot sizes one session covering all rounds.
//
// With per-message sizes R and S and envelope sizes R' and S', the
// session sends R' + (N-1)(R+S) bytes (request headers amortize inside
// the keep-alive connection) and receives N*S' (each response carries
// its own headers). Plans exceeding the base caps are rejected with a
// diagnostic naming the offending dimension.
func PlanSingleShot(base notary.Config, in PlanInput) (notary.Config, error) {
	if !in.sized() || in.Rounds <= 0 {
		return base, nil
	}

	ohReq, ohResp := in.overheads()
	sent := in.MaxRequestBytes + ohReq + (in.Rounds-1)*(in.MaxRequestBytes+in.MaxResponseBytes)
	recv := in.Rounds * (in.MaxResponseBytes + ohResp)

	if sent > base.MaxTotalSent {
		return notary.Config{}, &notary.PolicyRejectionError{
			MaxSent:   sent,
			MaxRecv:   recv,
			Dimension: "sent",
			Reason:    "planned sent total exceeds the notary cap",
		}
	}
	if recv > base.MaxTotalRecv {
		return notary.Config{}, &notary.PolicyRejectionError{
			MaxSent:   sent,
			MaxRecv:   recv,
			Dimension: "recv",
			Reason:    "planned recv total exceeds the notary cap",
		}
	}

	log.Debug().
		Int("rounds", in.Rounds).
		Int("sent", sent).
		Int("recv", recv).
		Msg("planned single-shot capacity")

	return base.WithCaps(sent, recv), nil
}

// PlanRound sizes a fresh session for one upcoming round.
//
// lookahead is how many rounds ahead the session will run (1 = next
// round). Each round beyond the first adds one request, one response
// and their JSON structure to the history that must be re-sent. The
// result carries a 20% safety margin, never exceeds the base caps, and
// defers all decryption since only one exchange happens per session.
// Missing size hints fall back to the base config unchanged.
func PlanRound(base notary.Config, in PlanInput, history []chat.Message, lookahead int) notary.Config {
	if !in.sized() {
		return base
	}

	ohReq, ohResp := in.overheads()
	historySize := chat.JSONSize(history)

	growthPerRound := in.MaxRequestBytes + in.MaxResponseBytes + 2*jsonPerMessageOverhead
	totalGrowth := growthPerRound * max(lookahead-1, 0)

	sendContent := historySize + totalGrowth + in.MaxRequestBytes
	sendCap := int(float64(ohReq+sendContent) * bufferFactor)
	sendCap = min(sendCap, base.MaxTotalSent)

	recvCap := int(float64(ohResp+in.MaxResponseBytes) * bufferFactor)
	recvCap = min(recvCap, base.MaxTotalRecv)

	planned := base.WithCaps(sendCap, recvCap)
	planned.DeferDecryption = true
	planned.MaxDecryptedOnline = 0

	log.Debug().
		Int("lookahead", lookahead).
		Int("history_bytes", historySize).
		Int("sent_cap", sendCap).
		Int("recv_cap", recvCap).
		Msg("planned per-round capacity")

	return planned
}

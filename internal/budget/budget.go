// Package budget tracks byte usage against the capacity of a notarized
// TLS channel.
//
// DESIGN: The notary fixes max sent/recv bytes at handshake time, so
// every HTTP exchange must be accounted for before it happens. The
// budget learns real per-direction HTTP overhead from observations and
// uses conservative estimates until then. Request overhead is constant
// (the client controls its own framing) and is pinned at the first
// observation; response overhead may drift with vendor headers and is
// updated per observation.
package budget

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/elusaegis/ai-passport/internal/chat"
)

// BytesPerToken is the conservative byte-per-token estimate used to
// convert a remaining byte budget into a max_tokens ceiling. Accounts
// for UTF-8 and JSON escaping.
const BytesPerToken = 5

// Initial overhead estimates, used until real values are observed.
const (
	RequestOverheadEstimate  = 285
	ResponseOverheadEstimate = 5000
)

// ExpectedOverhead carries per-provider overhead hints for capacity
// planning. Zero fields mean "no hint, use the package estimates".
type ExpectedOverhead struct {
	Request  int
	Response int
}

// observedOverhead holds learned per-direction overhead. Initially the
// provider hints (or package estimates) apply; observations supersede.
type observedOverhead struct {
	request     int
	response    int
	requestSet  bool
	responseSet bool
	expected    ExpectedOverhead
}

func (o *observedOverhead) requestOverhead() int {
	if o.requestSet {
		return o.request
	}
	if o.expected.Request > 0 {
		return o.expected.Request
	}
	return RequestOverheadEstimate
}

func (o *observedOverhead) responseOverhead() int {
	if o.responseSet {
		return o.response
	}
	if o.expected.Response > 0 {
		return o.expected.Response
	}
	return ResponseOverheadEstimate
}

// updateRequest pins the request overhead on the first observation.
// The client generates its own requests, so the overhead cannot change;
// a differing later observation is logged and ignored.
func (o *observedOverhead) updateRequest(totalBytes, contentBytes int) {
	overhead := max(totalBytes-contentBytes, 0)
	if o.requestSet {
		if o.request != overhead {
			log.Warn().
				Int("previous", o.request).
				Int("observed", overhead).
				Msg("request overhead changed unexpectedly; keeping first observation")
		}
		return
	}
	log.Debug().
		Int("overhead", overhead).
		Int("total", totalBytes).
		Int("content", contentBytes).
		Msg("overhead: observed request overhead")
	o.request = overhead
	o.requestSet = true
}

// updateResponse records the response overhead; the last observation
// wins. A change is logged since the value is constant in practice.
func (o *observedOverhead) updateResponse(totalBytes, contentBytes int) {
	overhead := max(totalBytes-contentBytes, 0)
	if o.responseSet && o.response != overhead {
		log.Warn().
			Int("previous", o.response).
			Int("observed", overhead).
			Msg("response overhead changed unexpectedly (expected constant)")
	} else if !o.responseSet {
		log.Debug().
			Int("overhead", overhead).
			Int("total", totalBytes).
			Int("content", contentBytes).
			Msg("overhead: observed response overhead")
	}
	o.response = overhead
	o.responseSet = true
}

// Capacity is the byte limit configuration of a channel. Unlimited is
// used by passthrough modes (direct, proxy); limited capacity mirrors
// the notary session caps.
type Capacity struct {
	limited bool
	SentCap int
	RecvCap int
}

// Unlimited returns a capacity with no byte limits.
func Unlimited() Capacity {
	return Capacity{}
}

// Limited returns a capacity with the given per-direction byte limits.
func Limited(sentCap, recvCap int) Capacity {
	return Capacity{limited: true, SentCap: sentCap, RecvCap: recvCap}
}

// ExceededError reports a pre-send budget failure. Recoverable by the
// caller: shorten the input or start a new session.
type ExceededError struct {
	Direction string // "sent" or "recv"
	Need      int
	Remaining int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf(
		"insufficient %s budget: need %d bytes but only %d remaining (use shorter messages or start a new session)",
		e.Direction, e.Need, e.Remaining)
}

// Budget tracks channel usage against capacity and learns overhead.
// A Budget is owned by a single session driver and is not safe for
// concurrent use.
type Budget struct {
	sent     int
	recv     int
	capacity Capacity
	overhead observedOverhead
}

// New creates a budget with the given capacity and provider overhead
// hints.
func New(capacity Capacity, expected ExpectedOverhead) *Budget {
	return &Budget{capacity: capacity, overhead: observedOverhead{expected: expected}}
}

// NewUnlimited creates a budget for passthrough modes.
func NewUnlimited() *Budget {
	return New(Unlimited(), ExpectedOverhead{})
}

// IsUnlimited reports whether the budget has no byte limits.
func (b *Budget) IsUnlimited() bool {
	return !b.capacity.limited
}

// Reset zeroes usage counters while preserving learned overhead. Used
// between per-message sessions, where each round gets fresh capacity
// but overhead learning persists.
func (b *Budget) Reset() *Budget {
	b.sent = 0
	b.recv = 0
	return b
}

// SetCapacity replaces the capacity configuration.
func (b *Budget) SetCapacity(capacity Capacity) *Budget {
	b.capacity = capacity
	return b
}

// CheckRequestFits verifies that totalBytes can still be sent within
// the channel capacity. Always succeeds for unlimited budgets.
func (b *Budget) CheckRequestFits(totalBytes int) error {
	if !b.capacity.limited {
		return nil
	}
	if b.sent+totalBytes > b.capacity.SentCap {
		return &ExceededError{
			Direction: "sent",
			Need:      totalBytes,
			Remaining: max(b.capacity.SentCap-b.sent, 0),
		}
	}
	return nil
}

// RecordSent accounts for a dispatched request. contentBytes is the
// JSON size of the message history carried in the body; the difference
// feeds the request overhead learner.
func (b *Budget) RecordSent(totalBytes, contentBytes int) {
	b.sent += totalBytes
	b.overhead.updateRequest(totalBytes, contentBytes)

	if b.capacity.limited {
		log.Debug().
			Int("bytes", totalBytes).
			Int("remaining", max(b.capacity.SentCap-b.sent, 0)).
			Msg("budget: sent")
	}
}

// RecordRecv accounts for a received response. contentBytes is the JSON
// size of the parsed assistant message.
func (b *Budget) RecordRecv(totalBytes, contentBytes int) {
	b.recv += totalBytes
	b.overhead.updateResponse(totalBytes, contentBytes)

	if b.capacity.limited {
		log.Debug().
			Int("bytes", totalBytes).
			Int("remaining", max(b.capacity.RecvCap-b.recv, 0)).
			Msg("budget: received")
	}
}

// SentUsed returns bytes sent so far.
func (b *Budget) SentUsed() int { return b.sent }

// RecvUsed returns bytes received so far.
func (b *Budget) RecvUsed() int { return b.recv }

// RequestOverhead returns the effective request overhead: observed
// value if present, otherwise the provider hint or package estimate.
func (b *Budget) RequestOverhead() int { return b.overhead.requestOverhead() }

// ResponseOverhead returns the effective response overhead.
func (b *Budget) ResponseOverhead() int { return b.overhead.responseOverhead() }

// MaxBytesForResponse returns how many content bytes the next response
// may carry: recv capacity minus usage minus exactly one response
// overhead. ok is false for unlimited budgets (no ceiling applies).
func (b *Budget) MaxBytesForResponse() (bytes int, ok bool) {
	if !b.capacity.limited {
		return 0, false
	}
	remaining := max(b.capacity.RecvCap-b.recv, 0)
	return max(remaining-b.ResponseOverhead(), 0), true
}

// MaxTokensForResponse converts the remaining receive budget into a
// max_tokens ceiling. Returns at least 1 so a request can always be
// attempted while any budget remains.
func (b *Budget) MaxTokensForResponse() (tokens int, ok bool) {
	bytes, ok := b.MaxBytesForResponse()
	if !ok {
		return 0, false
	}
	return max(bytes/BytesPerToken, 1), true
}

// AvailableInputBytes returns how many bytes a new user message may
// occupy: sent capacity minus usage, minus the re-sent history JSON,
// minus exactly one request overhead. ok is false for unlimited
// budgets.
func (b *Budget) AvailableInputBytes(history []chat.Message) (bytes int, ok bool) {
	if !b.capacity.limited {
		return 0, false
	}
	remaining := max(b.capacity.SentCap-b.sent, 0)
	remaining = max(remaining-chat.JSONSize(history), 0)
	return max(remaining-b.RequestOverhead(), 0), true
}

// AvailableRecvBytes returns the raw remaining receive capacity, for
// user display. ok is false for unlimited budgets.
func (b *Budget) AvailableRecvBytes() (bytes int, ok bool) {
	if !b.capacity.limited {
		return 0, false
	}
	return max(b.capacity.RecvCap-b.recv, 0), true
}

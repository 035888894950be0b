package interaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elusaegis/ai-passport/internal/budget"
	"github.com/elusaegis/ai-passport/internal/chat"
	"github.com/elusaegis/ai-passport/internal/httpwire"
	"github.com/elusaegis/ai-passport/internal/provider"
)

// TimeoutError reports that a response exceeded the configured wall
// clock. Fatal for the round; the transcript for it is discarded.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s (raise the request timeout or retry with a shorter message)", e.After)
}

// RoundConfig carries the per-session parameters of the loop.
type RoundConfig struct {
	API     *provider.API
	ModelID string
	// MaxTokens is the user-configured response cap. 0 means none.
	MaxTokens int
	// CloseConnection selects Connection: close over keep-alive.
	CloseConnection bool
	// Timeout bounds one request/response exchange. 0 means none.
	Timeout time.Duration
}

// Round executes one user→assistant exchange.
//
// The user message is appended to history, the request is sized and
// checked against the budget before sending, the reply is parsed and
// appended. Budget updates and history appends are sequenced; a failed
// round records nothing in the budget, even when its request was
// already sent.
// done is true when the input source ends the session.
func Round(ctx context.Context, sender httpwire.Sender, input *Holder, cfg RoundConfig, history *[]chat.Message, b *budget.Budget) (done bool, err error) {
	userMsg, err := input.Next(b, cfg.ModelID, *history)
	if err != nil {
		return false, fmt.Errorf("reading user input: %w", err)
	}
	if userMsg == nil {
		return true, nil
	}

	*history = append(*history, *userMsg)
	contentSent := chat.JSONSize(*history)

	req, reqSize, err := buildRequest(cfg, *history, b)
	if err != nil {
		return false, err
	}

	resp, err := send(ctx, sender, req, cfg.Timeout)
	if err != nil {
		return false, err
	}

	if resp.StatusCode != 200 {
		return false, fmt.Errorf("model API returned status %d: %s", resp.StatusCode, truncate(resp.Body, 200))
	}

	reply, err := cfg.API.ParseReply(resp.Body)
	if err != nil {
		return false, err
	}
	contentRecv := chat.JSONSize([]chat.Message{reply})

	// Record and append atomically with respect to this driver: no
	// other round may interleave here.
	b.RecordSent(reqSize, contentSent)
	b.RecordRecv(resp.WireSize(), contentRecv)
	*history = append(*history, reply)

	log.Debug().
		Int("request_bytes", reqSize).
		Int("response_bytes", resp.WireSize()).
		Int("rounds", len(*history)/2).
		Msg("round complete")

	return false, nil
}

// buildRequest assembles the chat request and verifies it fits the
// send budget. The returned size is the exact wire size.
func buildRequest(cfg RoundConfig, history []chat.Message, b *budget.Budget) (*httpwire.Request, int, error) {
	maxTokens := cfg.MaxTokens
	if budgetTokens, ok := b.MaxTokensForResponse(); ok {
		if maxTokens <= 0 || budgetTokens < maxTokens {
			maxTokens = budgetTokens
		}
	}

	body, err := cfg.API.BuildChatBody(cfg.ModelID, history, maxTokens)
	if err != nil {
		return nil, 0, fmt.Errorf("building chat body: %w", err)
	}

	connection := "keep-alive"
	if cfg.CloseConnection {
		connection = "close"
	}

	req := &httpwire.Request{
		Method: "POST",
		Path:   cfg.API.ChatEndpoint(),
		Body:   body,
	}
	req.AddHeader("Host", cfg.API.Domain)
	req.AddHeader("Accept-Encoding", "identity")
	req.AddHeader("Connection", connection)
	req.AddHeader("Content-Type", "application/json")
	for _, h := range cfg.API.AuthHeaders() {
		req.Headers = append(req.Headers, h)
	}
	req.Headers = append(req.Headers, httpwire.ContentLengthHeader(body))

	size := req.WireSize()
	if err := b.CheckRequestFits(size); err != nil {
		return nil, 0, err
	}
	return req, size, nil
}

// send dispatches the request under the optional timeout.
func send(ctx context.Context, sender httpwire.Sender, req *httpwire.Request, timeout time.Duration) (*httpwire.Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := sender.Do(ctx, req)
	if err != nil {
		if timeout > 0 && (errors.Is(err, context.DeadlineExceeded) || isTimeout(err)) {
			return nil, &TimeoutError{After: timeout}
		}
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return resp, nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

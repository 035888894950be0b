package attest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/elusaegis/ai-passport/internal/provider"
	"github.com/elusaegis/ai-passport/internal/session"
)

// Finalize walks a committed transcript, censors the provider's
// designated header values per direction, and produces the signed
// attestation. A signing failure discards the transcript.
func Finalize(ctx context.Context, committed *session.Committed, api *provider.API) (*Attestation, error) {
	requests, err := parseRequests(committed.Sent)
	if err != nil {
		return nil, fmt.Errorf("parsing sent transcript: %w", err)
	}
	responses, err := parseResponses(committed.Recv)
	if err != nil {
		return nil, fmt.Errorf("parsing received transcript: %w", err)
	}

	for i := range requests {
		requests[i].CensorHeaders(api.RequestCensorHeaders())
	}
	for i := range responses {
		responses[i].CensorHeaders(api.ResponseCensorHeaders())
	}

	transcript := interleave(requests, responses)

	log.Debug().
		Str("session_id", committed.SessionID).
		Int("requests", len(requests)).
		Int("responses", len(responses)).
		Msg("finalizing committed transcript")

	return buildSigned(ctx, transcript, committed.ServerName, committed.Sign)
}

// interleave restores dispatch order: request i precedes response i.
func interleave(requests, responses []Entry) []Entry {
	transcript := make([]Entry, 0, len(requests)+len(responses))
	for i := 0; i < len(requests) || i < len(responses); i++ {
		if i < len(requests) {
			transcript = append(transcript, requests[i])
		}
		if i < len(responses) {
			transcript = append(transcript, responses[i])
		}
	}
	return transcript
}

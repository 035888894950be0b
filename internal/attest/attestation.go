package attest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elusaegis/ai-passport/internal/notary"
	"github.com/elusaegis/ai-passport/internal/session"
)

// Attestation binds a transcript, a server identity and a timestamp
// under the notary's key. Censored header values are already replaced
// before the signature is produced, so the artifact verifies as-is.
type Attestation struct {
	TargetHost string  `json:"target_host"`
	Timestamp  string  `json:"timestamp"`
	Transcript []Entry `json:"transcript"`
	Signature  string  `json:"signature"`
	NotaryKey  string  `json:"notary_key,omitempty"`
}

// unsignedAttestation is the view the signature covers.
type unsignedAttestation struct {
	TargetHost string  `json:"target_host"`
	Timestamp  string  `json:"timestamp"`
	Transcript []Entry `json:"transcript"`
}

// NotarizationError reports a failed commit/sign. The partial
// transcript is discarded, never written.
type NotarizationError struct {
	Err error
}

func (e *NotarizationError) Error() string {
	return fmt.Sprintf("notarization failed: %v (the session transcript was discarded)", e.Err)
}

func (e *NotarizationError) Unwrap() error { return e.Err }

// signingPayload returns the canonical JSON the signature covers.
func signingPayload(targetHost, timestamp string, transcript []Entry) ([]byte, error) {
	payload, err := json.Marshal(unsignedAttestation{
		TargetHost: targetHost,
		Timestamp:  timestamp,
		Transcript: transcript,
	})
	if err != nil {
		return nil, fmt.Errorf("serializing attestation payload: %w", err)
	}
	return payload, nil
}

// buildSigned stamps and signs an already-censored transcript.
func buildSigned(ctx context.Context, transcript []Entry, targetHost string, sign session.SignFunc) (*Attestation, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339)

	payload, err := signingPayload(targetHost, timestamp, transcript)
	if err != nil {
		return nil, &NotarizationError{Err: err}
	}

	signature, publicKey, err := sign(ctx, payload)
	if err != nil {
		return nil, &NotarizationError{Err: err}
	}

	return &Attestation{
		TargetHost: targetHost,
		Timestamp:  timestamp,
		Transcript: transcript,
		Signature:  signature,
		NotaryKey:  publicKey,
	}, nil
}

// BuildAndSign censors the given header names in every entry, then
// stamps and signs the result. This is the proxy-style flow where one
// censor list covers both directions.
func BuildAndSign(ctx context.Context, transcript []Entry, targetHost string, censorHeaders []string, sign session.SignFunc) (*Attestation, error) {
	for i := range transcript {
		transcript[i].CensorHeaders(censorHeaders)
	}
	return buildSigned(ctx, transcript, targetHost, sign)
}

// Verify checks the attestation signature. An empty publicKeyHex uses
// the key embedded in the artifact.
func (a *Attestation) Verify(publicKeyHex string) error {
	if publicKeyHex == "" {
		publicKeyHex = a.NotaryKey
	}
	if publicKeyHex == "" {
		return fmt.Errorf("no notary public key available to verify against")
	}

	payload, err := signingPayload(a.TargetHost, a.Timestamp, a.Transcript)
	if err != nil {
		return err
	}
	if err := notary.VerifySignature(a.Signature, publicKeyHex, payload); err != nil {
		return fmt.Errorf("attestation for %s does not verify: %w", a.TargetHost, err)
	}
	return nil
}

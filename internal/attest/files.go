package attest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// tlsProofDir holds artifacts from the TLS strategies.
	tlsProofDir = "model_ips"
	// proxyProofDir holds artifacts returned by the attestation proxy.
	proxyProofDir = "proofs"
)

// WriteTLSProof writes an attestation produced by a TLS strategy to
// ./model_ips/<sanitized-model>_<unix-ts>_<stage>_interaction_proof.json.
func WriteTLSProof(att *Attestation, modelID, stage string) (string, error) {
	if err := os.MkdirAll(tlsProofDir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s directory: %w", tlsProofDir, err)
	}

	data, err := json.MarshalIndent(att, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializing attestation: %w", err)
	}

	name := fmt.Sprintf("%s_%d_%s_interaction_proof.json",
		sanitizeModelID(modelID), time.Now().Unix(), stage)
	path := filepath.Join(tlsProofDir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing interaction proof: %w", err)
	}
	return path, nil
}

// WriteProxyProof writes a pre-signed artifact received from the
// attestation proxy to ./proofs/<prefix>_<sanitized-host>_<unix-ts>.json.
func WriteProxyProof(raw []byte, prefix, host string) (string, error) {
	if err := os.MkdirAll(proxyProofDir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s directory: %w", proxyProofDir, err)
	}

	name := fmt.Sprintf("%s_%s_%d.json", prefix, sanitizeHost(host), time.Now().Unix())
	path := filepath.Join(proxyProofDir, name)

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("writing attestation file: %w", err)
	}
	return path, nil
}

// ReadProof loads an attestation artifact from disk.
func ReadProof(path string) (*Attestation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading proof file: %w", err)
	}
	var att Attestation
	if err := json.Unmarshal(data, &att); err != nil {
		return nil, fmt.Errorf("parsing proof file %s: %w", path, err)
	}
	return &att, nil
}

func sanitizeModelID(s string) string {
	return strings.NewReplacer(" ", "_", "/", "_").Replace(s)
}

func sanitizeHost(s string) string {
	return strings.NewReplacer(" ", "_", "/", "_", ".", "_").Replace(s)
}

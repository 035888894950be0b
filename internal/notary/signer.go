package notary

import (
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Signer signs attestation payloads with a secp256k1 key, the signature
// scheme verifiers check attestations against.
type Signer struct {
	key *secp256k1.PrivateKey
}

// NewSigner wraps a secp256k1 private key.
func NewSigner(key *secp256k1.PrivateKey) *Signer {
	return &Signer{key: key}
}

// Sign produces a hex-encoded 64-byte compact ECDSA signature (r || s)
// over SHA-256 of the message.
func (s *Signer) Sign(message []byte) string {
	digest := sha256.Sum256(message)
	sig := ecdsa.Sign(s.key, digest[:])

	var compact [64]byte
	r, sv := sig.R(), sig.S()
	r.PutBytesUnchecked(compact[:32])
	sv.PutBytesUnchecked(compact[32:])
	return hex.EncodeToString(compact[:])
}

// PublicKeyHex returns the compressed public key in hex.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.key.PubKey().SerializeCompressed())
}

// VerifySignature checks a compact hex signature against a message and
// a compressed hex public key.
func VerifySignature(signatureHex, publicKeyHex string, message []byte) error {
	sigBytes, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("decoding signature: %w", err)
	}
	if len(sigBytes) != 64 {
		return fmt.Errorf("signature must be 64 bytes, got %d", len(sigBytes))
	}

	pubBytes, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return fmt.Errorf("decoding public key: %w", err)
	}
	pubKey, err := secp256k1.ParsePubKey(pubBytes)
	if err != nil {
		return fmt.Errorf("parsing public key: %w", err)
	}

	var r, sv secp256k1.ModNScalar
	if overflow := r.SetByteSlice(sigBytes[:32]); overflow {
		return fmt.Errorf("signature r overflows the curve order")
	}
	if overflow := sv.SetByteSlice(sigBytes[32:]); overflow {
		return fmt.Errorf("signature s overflows the curve order")
	}

	digest := sha256.Sum256(message)
	if !ecdsa.NewSignature(&r, &sv).Verify(digest[:], pubKey) {
		return fmt.Errorf("signature does not verify")
	}
	return nil
}

// OID for the secp256k1 named curve (1.3.132.0.10).
var oidSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}

// OID for id-ecPublicKey (1.2.840.10045.2.1).
var oidECPublicKey = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}

type pkcs8PrivateKey struct {
	Version    int
	Algorithm  pkix.AlgorithmIdentifier
	PrivateKey []byte
}

type sec1PrivateKey struct {
	Version       int
	PrivateKey    []byte
	NamedCurveOID asn1.ObjectIdentifier `asn1:"optional,explicit,tag:0"`
	PublicKey     asn1.BitString        `asn1:"optional,explicit,tag:1"`
}

// ParsePKCS8Key parses a PEM-encoded PKCS#8 secp256k1 private key.
// crypto/x509 refuses the curve, so the two ASN.1 layers are unwrapped
// here directly.
func ParsePKCS8Key(pemData []byte) (*Signer, error) {
	block, _ := pem.Decode(pemData)
	if block == nil || block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("no PKCS#8 PRIVATE KEY block found")
	}

	var outer pkcs8PrivateKey
	if _, err := asn1.Unmarshal(block.Bytes, &outer); err != nil {
		return nil, fmt.Errorf("parsing PKCS#8 structure: %w", err)
	}
	if !outer.Algorithm.Algorithm.Equal(oidECPublicKey) {
		return nil, fmt.Errorf("not an EC private key (algorithm %v)", outer.Algorithm.Algorithm)
	}

	var curve asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(outer.Algorithm.Parameters.FullBytes, &curve); err != nil {
		return nil, fmt.Errorf("parsing curve parameters: %w", err)
	}
	if !curve.Equal(oidSecp256k1) {
		return nil, fmt.Errorf("unsupported curve %v (want secp256k1)", curve)
	}

	var inner sec1PrivateKey
	if _, err := asn1.Unmarshal(outer.PrivateKey, &inner); err != nil {
		return nil, fmt.Errorf("parsing EC private key: %w", err)
	}
	if len(inner.PrivateKey) != 32 {
		return nil, fmt.Errorf("EC private key must be 32 bytes, got %d", len(inner.PrivateKey))
	}

	return NewSigner(secp256k1.PrivKeyFromBytes(inner.PrivateKey)), nil
}

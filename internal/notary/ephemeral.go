package notary

import (
	_ "embed"
	"fmt"
)

// The ephemeral notary ships with a fixed signing key so proofs made
// against it are reproducible in development and tests. It provides no
// trust: anyone holding this repository can forge them.
//
//go:embed fixtures/ephemeral_notary.key
var ephemeralKeyPEM []byte

// EphemeralSigner loads the bundled PKCS#8 secp256k1 key. A parse
// failure is fatal for ephemeral sessions.
func EphemeralSigner() (*Signer, error) {
	signer, err := ParsePKCS8Key(ephemeralKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing bundled ephemeral notary key: %w", err)
	}
	return signer, nil
}

package pgpcrypto

import (
	"io"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// DecryptionContext opens an OpenPGP encrypted message for reading given a
// certificate holding private key material for at least one recipient
// subkey (the configured encryption key, or one of its configured
// additional decryption keys).
type DecryptionContext struct {
	keyring openpgp.EntityList
}

// NewDecryptionContext builds a context able to decrypt with any of certs.
func NewDecryptionContext(certs ...*Certificate) *DecryptionContext {
	keyring := make(openpgp.EntityList, 0, len(certs))
	for _, c := range certs {
		keyring = append(keyring, c.entity)
	}
	return &DecryptionContext{keyring: keyring}
}

// Reader wraps r, returning the decrypted plaintext stream. Every failure
// to open the message (no matching recipient, or a structurally invalid
// header) is returned as CannotDecrypt. A tampered ciphertext body is not
// detected here: it surfaces as a plain read error from the returned
// stream.
func (c *DecryptionContext) Reader(r io.Reader) (io.Reader, error) {
	md, err := openpgp.ReadMessage(r, c.keyring, nil, nil)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeCannotDecrypt, "opening OpenPGP encrypted message", err)
	}
	return md.UnverifiedBody, nil
}

package pgpcrypto

import (
	"io"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// EncryptionContext produces an authenticated-encryption writer over the
// certificate's usable encryption subkeys, recomputed fresh for every
// backup so a key rotated after a previous backup was taken is picked up
// automatically.
type EncryptionContext struct {
	cert *Certificate
}

// NewEncryptionContext builds a context over cert.
func NewEncryptionContext(cert *Certificate) *EncryptionContext {
	return &EncryptionContext{cert: cert}
}

// Writer opens a streaming encryption sink writing an OpenPGP encrypted
// message (literal data packet, no inner compression) to inner. createdAt
// is the policy evaluation time: recipients are filtered to those alive
// and not hard-revoked at that instant. An empty recipient set is fatal,
// per spec.md §4.2 item 3.
func (c *EncryptionContext) Writer(inner io.Writer, createdAt time.Time) (io.WriteCloser, error) {
	subkeys := c.cert.EncryptionSubkeys(createdAt)
	if len(subkeys) == 0 {
		return nil, apierr.New(apierr.CodeCannotEncrypt, "no usable encryption key found in certificate")
	}

	recipient := &openpgp.Entity{
		PrimaryKey: c.cert.entity.PrimaryKey,
		Identities: c.cert.entity.Identities,
		Subkeys:    []openpgp.Subkey{*subkeys[0]},
	}

	w, err := openpgp.Encrypt(inner, []*openpgp.Entity{recipient}, nil, nil, nil)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeCannotEncrypt, "opening OpenPGP encryption writer", err)
	}
	return &encryptWriteCloser{inner: w}, nil
}

// encryptWriteCloser translates the OpenPGP library's close error into the
// writer chain's ENCRYPT_FAILED code.
type encryptWriteCloser struct {
	inner io.WriteCloser
}

func (e *encryptWriteCloser) Write(p []byte) (int, error) { return e.inner.Write(p) }

func (e *encryptWriteCloser) Close() error {
	if err := e.inner.Close(); err != nil {
		return apierr.Wrap(apierr.CodeEncryptFailed, "finalizing OpenPGP encryption", err)
	}
	return nil
}

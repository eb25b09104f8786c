package pgpcrypto

import (
	"bytes"
	"crypto"
	"hash"
	"io"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// SigningContext selects a single signing-capable secret key from a
// certificate and produces a detached-signature writer.
type SigningContext struct {
	cert *Certificate
}

// NewSigningContext builds a context over cert.
func NewSigningContext(cert *Certificate) *SigningContext {
	return &SigningContext{cert: cert}
}

// Writer returns a fork-target: write the same bytes written to the
// primary chain into this writer too, then call Finalize to obtain the
// detached signature bytes for the `.sig` object.
func (c *SigningContext) Writer(createdAt time.Time) (*SignatureWriter, error) {
	subkey := c.cert.SigningSubkey(createdAt)
	if subkey == nil {
		return nil, apierr.New(apierr.CodeCannotSign, "no usable signing key found in certificate")
	}
	if subkey.PrivateKey == nil {
		return nil, apierr.New(apierr.CodeCannotSign, "signing key has no private key material")
	}

	hashAlgo := crypto.SHA256
	return &SignatureWriter{
		hasher:     hashAlgo.New(),
		hashAlgo:   hashAlgo,
		privateKey: subkey.PrivateKey,
	}, nil
}

// SignatureWriter accumulates a running hash of everything written to it;
// Finalize signs that hash and serializes the detached signature packet.
type SignatureWriter struct {
	hasher     hash.Hash
	hashAlgo   crypto.Hash
	privateKey *packet.PrivateKey
}

func (s *SignatureWriter) Write(p []byte) (int, error) { return s.hasher.Write(p) }

// Finalize produces the serialized OpenPGP detached signature packet.
func (s *SignatureWriter) Finalize() ([]byte, error) {
	sig := &packet.Signature{
		Version:      s.privateKey.Version,
		SigType:      packet.SigTypeBinary,
		PubKeyAlgo:   s.privateKey.PubKeyAlgo,
		Hash:         s.hashAlgo,
		CreationTime: time.Now(),
		IssuerKeyId:  &s.privateKey.KeyId,
	}

	if err := sig.Sign(s.hasher, s.privateKey, nil); err != nil {
		return nil, apierr.Wrap(apierr.CodeSignFailed, "signing backup digest", err)
	}

	var buf bytes.Buffer
	if err := sig.Serialize(&buf); err != nil {
		return nil, apierr.Wrap(apierr.CodeSignFailed, "serializing OpenPGP signature", err)
	}
	return buf.Bytes(), nil
}

var _ io.Writer = (*SignatureWriter)(nil)

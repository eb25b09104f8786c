package pgpcrypto

import (
	"bytes"
	"hash"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// VerificationContext checks a detached signature against a running hash
// of the bytes it was streamed alongside.
type VerificationContext struct {
	cert *Certificate
}

// NewVerificationContext builds a context over cert.
func NewVerificationContext(cert *Certificate) *VerificationContext {
	return &VerificationContext{cert: cert}
}

// ParseDetached parses a serialized detached signature packet.
func ParseDetached(raw []byte) (*packet.Signature, error) {
	reader := packet.NewReader(bytes.NewReader(raw))
	pkt, err := reader.Next()
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeIntegrityCheckMalformed, "parsing OpenPGP signature packet", err)
	}
	sig, ok := pkt.(*packet.Signature)
	if !ok {
		return nil, apierr.New(apierr.CodeIntegrityCheckMalformed, "object is not an OpenPGP signature packet")
	}
	return sig, nil
}

// Verify checks sig against hasher, which must already have consumed
// exactly the bytes the signer hashed, at policy time createdAt. It
// requires a signing key that is alive and not hard-revoked at createdAt
// whose key ID matches the signature's issuer.
func (v *VerificationContext) Verify(sig *packet.Signature, hasher hash.Hash, createdAt time.Time) error {
	subkey := v.cert.SigningSubkey(createdAt)
	if subkey == nil {
		return apierr.New(apierr.CodeIntegrityCheckFailed, "no trusted signing key available at backup creation time")
	}
	if sig.IssuerKeyId == nil || *sig.IssuerKeyId != subkey.PublicKey.KeyId {
		return apierr.New(apierr.CodeIntegrityCheckFailed, "signature issuer does not match the configured signing key")
	}

	if err := subkey.PublicKey.VerifySignature(hasher, sig); err != nil {
		return apierr.Wrap(apierr.CodeIntegrityCheckFailed, "OpenPGP signature verification failed", err)
	}
	return nil
}

package integrity

import (
	"bytes"
	"strconv"

	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// Suffix identifies which variant of Check a store key's trailing
// extension selects.
type Suffix string

const (
	SuffixSha256 Suffix = ".sha256"
	SuffixSig    Suffix = ".sig"
)

// Kind distinguishes the two Check variants.
type Kind int

const (
	KindSha256 Kind = iota
	KindPgpSignature
)

// Check is a tagged value: either a raw 32-byte SHA-256 digest or a
// parsed detached OpenPGP signature packet. Exactly one of Digest/Signature
// is populated, selected by Kind.
type Check struct {
	Kind      Kind
	Digest    [32]byte
	Signature *packet.Signature

	// Key is the store object this check was loaded from, kept for
	// error messages and deletion on a failed verification cleanup.
	Key string
}

// NewDigestCheck validates raw as a 32-byte SHA-256 digest.
func NewDigestCheck(key string, raw []byte) (Check, error) {
	if len(raw) != 32 {
		return Check{}, apierr.New(apierr.CodeIntegrityCheckMalformed,
			"digest payload must be exactly 32 bytes, got "+strconv.Itoa(len(raw)))
	}
	c := Check{Kind: KindSha256, Key: key}
	copy(c.Digest[:], raw)
	return c, nil
}

// NewSignatureCheck parses raw as a detached OpenPGP signature packet.
func NewSignatureCheck(key string, raw []byte) (Check, error) {
	sig, err := parseDetachedSignature(raw)
	if err != nil {
		return Check{}, err
	}
	return Check{Kind: KindPgpSignature, Signature: sig, Key: key}, nil
}

func parseDetachedSignature(raw []byte) (*packet.Signature, error) {
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

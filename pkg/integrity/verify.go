package integrity

import (
	"crypto/sha256"
	"hash"
	"io"
	"time"

	"github.com/cuemby/sentryd/pkg/pgpcrypto"
)

// Verifier forks a single byte stream into every active check of a Set
// and, once the stream has been read to completion, applies the decision
// rule of §4.3.
type Verifier struct {
	set              Set
	signingMandatory bool
	createdAt        time.Time
	vctx             *pgpcrypto.VerificationContext

	digestHash hash.Hash
	sigHash    hash.Hash
}

// NewVerifier builds a Verifier for set. vctx may be nil if set has no
// Signature check (it is then never consulted).
func NewVerifier(set Set, vctx *pgpcrypto.VerificationContext, createdAt time.Time, signingMandatory bool) *Verifier {
	v := &Verifier{set: set, signingMandatory: signingMandatory, createdAt: createdAt, vctx: vctx}

	if set.Digest != nil {
		v.digestHash = sha256.New()
	}
	if set.Signature != nil {
		algo := set.Signature.Signature.Hash
		v.sigHash = algo.New()
	}

	return v
}

// Reader wraps inner so that every byte read through the result is also
// fed to every active check's hasher. Callers must read the result to
// completion (EOF) before calling Outcome.
func (v *Verifier) Reader(inner io.Reader) io.Reader {
	var sides []io.Writer
	if v.digestHash != nil {
		sides = append(sides, v.digestHash)
	}
	if v.sigHash != nil {
		sides = append(sides, v.sigHash)
	}
	if len(sides) == 0 {
		return inner
	}
	return io.TeeReader(inner, io.MultiWriter(sides...))
}

// Outcome applies the §4.3 decision rule once the forked stream has been
// read to completion. A nil return means the restore is trusted.
func (v *Verifier) Outcome() error {
	hasSig := v.set.Signature != nil
	sigVerifies := false
	if hasSig {
		sigVerifies = v.vctx.Verify(v.set.Signature.Signature, v.sigHash, v.createdAt) == nil
	}

	hasHash := v.set.Digest != nil
	hashMatches := false
	if hasHash {
		sum := v.digestHash.Sum(nil)
		hashMatches = [32]byte(sum) == v.set.Digest.Digest
	}

	return Decide(v.signingMandatory, hasSig, sigVerifies, hasHash, hashMatches)
}

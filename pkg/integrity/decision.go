package integrity

import "github.com/cuemby/sentryd/pkg/apierr"

// Decide applies the §4.3 decision rule to the outcome of verifying one
// Integrity Set against a restored byte stream. It is a pure function of
// the five verification booleans so every combination can be exercised
// exhaustively in tests.
//
// signingMandatory is the configured policy; hasSig/sigVerifies and
// hasHash/hashMatches describe what was found and whether it checked out.
// A nil return means the restore is trusted.
func Decide(signingMandatory, hasSig, sigVerifies, hasHash, hashMatches bool) error {
	if signingMandatory && !hasSig {
		return apierr.New(apierr.CodeIntegrityCheckMissing, "signing is mandatory but no signature was found")
	}

	if hasSig {
		if !sigVerifies {
			return apierr.New(apierr.CodeIntegrityCheckFailed, "signature did not verify")
		}
		// Tie-break: a verifying signature over tampered-after-signing bytes
		// whose digest also happens to be present and wrong is refused
		// rather than trusted, since the two checks disagree.
		if hasHash && !hashMatches {
			return apierr.New(apierr.CodeIntegrityDivergent, "signature verifies but digest does not match")
		}
		return nil
	}

	if hasHash {
		if !hashMatches {
			return apierr.New(apierr.CodeIntegrityCheckFailed, "digest does not match")
		}
		return nil
	}

	return apierr.New(apierr.CodeIntegrityCheckMissing, "no integrity check present")
}

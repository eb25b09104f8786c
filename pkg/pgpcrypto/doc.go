// Package pgpcrypto wraps github.com/ProtonMail/go-crypto/openpgp with the
// policy sentryd needs: recipient/signer selection restricted to keys that
// are alive and not revoked at a given point in time, and the revocation
// semantics (hard vs soft vs unproven) spec.md §4.5 describes.
//
// A Certificate wraps an opaque bundle of primary key, subkeys, user IDs
// and revocation signatures. EncryptionContext, SigningContext and
// VerificationContext each hold a Certificate; the policy time used to
// evaluate it is passed to each Writer or Verify call.
package pgpcrypto

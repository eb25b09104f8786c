package pgpcrypto

import (
	"os"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// RevocationStatus classifies how a revoked key should be treated.
type RevocationStatus int

const (
	// NotRevoked means no revocation signature was found.
	NotRevoked RevocationStatus = iota
	// SoftRevoked means the key carries a KeyRetired or KeySuperseded
	// revocation: the key is being phased out deliberately, not because
	// of a compromise.
	SoftRevoked
	// HardRevoked means the key carries a KeyCompromised revocation, or
	// any other reason besides retirement/supersession: it must never be
	// used again.
	HardRevoked
	// ExternallyRevocable means a CouldBe designator exists with no
	// revocation signature actually published; logged, not enforced.
	ExternallyRevocable
)

// Certificate is an opaque bundle of primary key, subkeys, user IDs and
// revocation signatures, queryable for its usable encryption/signing
// subkeys and revocation status.
type Certificate struct {
	entity *openpgp.Entity
}

// LoadCertificateFile parses a single OpenPGP certificate (armored or
// binary) from path.
func LoadCertificateFile(path string) (*Certificate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeConfigError, "opening PGP certificate file", err)
	}
	defer f.Close()

	entities, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		if _, rerr := f.Seek(0, 0); rerr == nil {
			entities, err = openpgp.ReadKeyRing(f)
		}
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeConfigError, "parsing PGP certificate", err)
	}
	if len(entities) == 0 {
		return nil, apierr.New(apierr.CodeConfigError, "PGP certificate file contains no keys")
	}

	return &Certificate{entity: entities[0]}, nil
}

// EncryptionSubkeys returns the subkeys usable for storage encryption at t:
// not expired, not hard-revoked.
func (c *Certificate) EncryptionSubkeys(t time.Time) []*openpgp.Subkey {
	var keys []*openpgp.Subkey
	for i := range c.entity.Subkeys {
		sk := &c.entity.Subkeys[i]
		if !sk.Sig.FlagsValid || !sk.Sig.FlagEncryptStorage {
			continue
		}
		if !isAlive(sk.Sig, t) {
			continue
		}
		if revocationStatus(sk.Revocations) == HardRevoked {
			continue
		}
		keys = append(keys, sk)
	}
	return keys
}

// SigningSubkey returns the first alive, non-hard-revoked signing-capable
// subkey at t, or nil.
func (c *Certificate) SigningSubkey(t time.Time) *openpgp.Subkey {
	for i := range c.entity.Subkeys {
		sk := &c.entity.Subkeys[i]
		if !sk.Sig.FlagsValid || !sk.Sig.FlagSign {
			continue
		}
		if !isAlive(sk.Sig, t) {
			continue
		}
		if revocationStatus(sk.Revocations) == HardRevoked {
			continue
		}
		return sk
	}
	return nil
}

// PrimaryRevocationStatus classifies the primary key's own revocations.
func (c *Certificate) PrimaryRevocationStatus() RevocationStatus {
	return revocationStatus(c.entity.Revocations)
}

func isAlive(sig *packet.Signature, t time.Time) bool {
	if sig.KeyLifetimeSecs == nil || *sig.KeyLifetimeSecs == 0 {
		return true
	}
	expiry := sig.CreationTime.Add(time.Duration(*sig.KeyLifetimeSecs) * time.Second)
	return t.Before(expiry)
}

// revocationStatus inspects a set of revocation signatures and returns the
// most severe status found, per spec.md §4.5: KeyCompromised is hard;
// KeyRetired/KeySuperseded are soft; CouldBe is logged only; anything else
// is treated as a hard revocation.
func revocationStatus(revocations []*packet.Signature) RevocationStatus {
	status := NotRevoked
	for _, rev := range revocations {
		if rev.RevocationReason == nil {
			status = worse(status, HardRevoked)
			continue
		}
		switch *rev.RevocationReason {
		case packet.KeyCompromised:
			return HardRevoked
		case packet.KeyRetired, packet.KeySuperseded:
			status = worse(status, SoftRevoked)
		default:
			status = worse(status, HardRevoked)
		}
	}
	return status
}

func worse(a, b RevocationStatus) RevocationStatus {
	if b > a {
		return b
	}
	return a
}

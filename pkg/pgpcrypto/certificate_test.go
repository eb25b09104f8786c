package pgpcrypto

import (
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/stretchr/testify/assert"
)

func reasonPtr(r packet.ReasonForRevocation) *packet.ReasonForRevocation { return &r }

func TestRevocationStatusKeyCompromisedIsHard(t *testing.T) {
	sigs := []*packet.Signature{{RevocationReason: reasonPtr(packet.KeyCompromised)}}
	assert.Equal(t, HardRevoked, revocationStatus(sigs))
}

func TestRevocationStatusRetiredIsSoft(t *testing.T) {
	sigs := []*packet.Signature{{RevocationReason: reasonPtr(packet.KeyRetired)}}
	assert.Equal(t, SoftRevoked, revocationStatus(sigs))
}

func TestRevocationStatusSupersededIsSoft(t *testing.T) {
	sigs := []*packet.Signature{{RevocationReason: reasonPtr(packet.KeySuperseded)}}
	assert.Equal(t, SoftRevoked, revocationStatus(sigs))
}

func TestRevocationStatusNoRevocations(t *testing.T) {
	assert.Equal(t, NotRevoked, revocationStatus(nil))
}

func TestRevocationStatusCompromisedOutweighsSoft(t *testing.T) {
	sigs := []*packet.Signature{
		{RevocationReason: reasonPtr(packet.KeyRetired)},
		{RevocationReason: reasonPtr(packet.KeyCompromised)},
	}
	assert.Equal(t, HardRevoked, revocationStatus(sigs))
}

func TestRevocationStatusUnspecifiedIsHard(t *testing.T) {
	sigs := []*packet.Signature{{RevocationReason: reasonPtr(packet.NoReason)}}
	assert.Equal(t, HardRevoked, revocationStatus(sigs))
}

package integrity

import (
	"bytes"
	"crypto/sha256"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sentryd/pkg/apierr"
)

func TestVerifierTrustsMatchingDigest(t *testing.T) {
	payload := []byte("restored archive bytes")
	sum := sha256.Sum256(payload)
	digest, err := NewDigestCheck("name.sha256", sum[:])
	require.NoError(t, err)

	set := Set{Digest: &digest}
	v := NewVerifier(set, nil, time.Now(), false)

	forked := v.Reader(bytes.NewReader(payload))
	_, err = io.Copy(io.Discard, forked)
	require.NoError(t, err)

	assert.NoError(t, v.Outcome())
}

func TestVerifierRejectsMismatchedDigest(t *testing.T) {
	payload := []byte("restored archive bytes")
	wrongSum := sha256.Sum256([]byte("tampered bytes"))
	digest, err := NewDigestCheck("name.sha256", wrongSum[:])
	require.NoError(t, err)

	set := Set{Digest: &digest}
	v := NewVerifier(set, nil, time.Now(), false)

	forked := v.Reader(bytes.NewReader(payload))
	_, err = io.Copy(io.Discard, forked)
	require.NoError(t, err)

	err = v.Outcome()
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeIntegrityCheckFailed))
}

func TestVerifierRefusesEmptySet(t *testing.T) {
	v := NewVerifier(Set{}, nil, time.Now(), false)
	forked := v.Reader(bytes.NewReader([]byte("payload")))
	_, err := io.Copy(io.Discard, forked)
	require.NoError(t, err)

	err = v.Outcome()
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeIntegrityCheckMissing))
}

func TestVerifierReaderPassesThroughUntransformed(t *testing.T) {
	payload := []byte("archive bytes flow through unchanged")
	sum := sha256.Sum256(payload)
	digest, err := NewDigestCheck("name.sha256", sum[:])
	require.NoError(t, err)

	v := NewVerifier(Set{Digest: &digest}, nil, time.Now(), false)
	forked := v.Reader(bytes.NewReader(payload))

	got, err := io.ReadAll(forked)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

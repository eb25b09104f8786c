package backup

import "time"

// Metadata is the metadata synthesized purely from listing the object
// store, with no artifact bytes read. can_be_restored here is a
// one-sided indicator: true does not guarantee a restore will succeed,
// but false guarantees it will not.
type Metadata struct {
	ID            string
	Description   string
	CreatedAt     time.Time
	IsSigned      bool
	IsEncrypted   bool
	CanBeRestored bool
}

// FullMetadata extends Metadata with fields that require reading and
// verifying the backup's actual bytes.
type FullMetadata struct {
	Metadata

	IsIntact           bool
	SigningKeyID       string // hex-encoded fingerprint, empty if unsigned
	IsSignatureTrusted *bool
	IsSignatureValid   *bool
	EncryptionKeyID    string // hex-encoded fingerprint, empty if unencrypted
	IsEncryptionValid  *bool
	IsTrusted          bool
}

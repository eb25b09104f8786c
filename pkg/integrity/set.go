package integrity

import (
	"context"
	"io"
	"strings"

	"github.com/cuemby/sentryd/pkg/apierr"
	"github.com/cuemby/sentryd/pkg/objectstore"
)

// Set is the unordered collection of Checks associated with one backup
// name. At most one check per Suffix is kept (Invariant I1).
type Set struct {
	Digest    *Check
	Signature *Check
}

// Empty reports whether the set carries neither a digest nor a signature
// check (Invariant I2: restore must refuse an empty set).
func (s Set) Empty() bool {
	return s.Digest == nil && s.Signature == nil
}

// Discover loads the Integrity Set for primary key name from store,
// pre-validating every check it finds before returning (§4.3
// pre-validation runs before any backup byte is read). Keys with an
// unrecognized suffix are skipped with no error.
func Discover(ctx context.Context, store objectstore.Store, name string) (Set, error) {
	keys, err := store.Find(ctx, name)
	if err != nil {
		return Set{}, err
	}

	var set Set
	for _, key := range keys {
		if key == name {
			continue
		}
		suffix := strings.TrimPrefix(key, name)

		switch Suffix(suffix) {
		case SuffixSha256:
			raw, err := readAll(ctx, store, key)
			if err != nil {
				return Set{}, err
			}
			check, err := NewDigestCheck(key, raw)
			if err != nil {
				return Set{}, err
			}
			set.Digest = &check

		case SuffixSig:
			raw, err := readAll(ctx, store, key)
			if err != nil {
				return Set{}, err
			}
			check, err := NewSignatureCheck(key, raw)
			if err != nil {
				return Set{}, err
			}
			set.Signature = &check

		default:
			// Unknown suffix: warn and ignore, per §4.3 discovery rule.
			// Logging is the caller's responsibility; Discover itself stays
			// side-effect free beyond the store reads.
		}
	}

	return set, nil
}

func readAll(ctx context.Context, store objectstore.Store, key string) ([]byte, error) {
	r, err := store.Reader(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeUnreadable, "reading integrity check "+key, err)
	}
	return data, nil
}

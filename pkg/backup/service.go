package backup

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/cuemby/sentryd/pkg/apierr"
	"github.com/cuemby/sentryd/pkg/config"
	"github.com/cuemby/sentryd/pkg/integrity"
	"github.com/cuemby/sentryd/pkg/objectstore"
	"github.com/cuemby/sentryd/pkg/pgpcrypto"
	"github.com/cuemby/sentryd/pkg/writerchain"
)

// CreateResult is returned from CreateBackup: the primary artifact's
// store key plus the keys of every auxiliary integrity object uploaded
// alongside it.
type CreateResult struct {
	BackupID     string
	DigestIDs    []string
	SignatureIDs []string
}

// RestoreResult is returned from RestoreBackup once extraction has been
// trusted.
type RestoreResult struct {
	RestoredBytes uint64
}

// Service implements backup creation, listing, metadata synthesis and
// restore orchestration (C4).
type Service struct {
	store objectstore.Store

	archivePaths     []writerchain.ArchivePath
	compressionLevel int32

	signingEnabled, signingMandatory bool
	signingCert                      *pgpcrypto.Certificate

	encryptionEnabled, encryptionMandatory bool
	encryptionCert                         *pgpcrypto.Certificate
	decryptionContext                      *pgpcrypto.DecryptionContext

	lifecycle StateChecker

	// now is overridden in tests for deterministic backup names.
	now func() time.Time
}

// NewService builds a Service from cfg's archiving/compression/signing/
// encryption sections. signingCert carries the private key used to
// produce new signatures and is also used to verify them; decryptionCerts
// are every certificate (the encryption cert plus any configured
// additional decryption keys) tried when opening an encrypted backup for
// restore.
func NewService(
	cfg *config.Config,
	store objectstore.Store,
	lifecycle StateChecker,
	signingCert *pgpcrypto.Certificate,
	encryptionCert *pgpcrypto.Certificate,
	decryptionCerts []*pgpcrypto.Certificate,
) *Service {
	paths := make([]writerchain.ArchivePath, 0, len(cfg.Archiving.Paths))
	for _, p := range cfg.Archiving.Paths {
		paths = append(paths, writerchain.ArchivePath{LocalPath: p.LocalPath, ArchivePath: p.ArchivePath})
	}

	var decryptCtx *pgpcrypto.DecryptionContext
	if len(decryptionCerts) > 0 {
		decryptCtx = pgpcrypto.NewDecryptionContext(decryptionCerts...)
	}

	return &Service{
		store:             store,
		archivePaths:      paths,
		compressionLevel:  cfg.Compression.ZstdCompressionLevel,
		signingEnabled:    cfg.Signing.Enabled,
		signingMandatory:  cfg.Signing.Mandatory,
		signingCert:       signingCert,
		encryptionEnabled: cfg.Encryption.Enabled,
		encryptionMandatory: cfg.Encryption.Mandatory,
		encryptionCert:    encryptionCert,
		decryptionContext: decryptCtx,
		lifecycle:         lifecycle,
		now:               time.Now,
	}
}

// CreateBackup implements spec.md §4.4's 10-step create_backup algorithm.
func (s *Service) CreateBackup(ctx context.Context, description string, frontendTar io.Reader) (*CreateResult, error) {
	if err := s.lifecycle.RequireOperational(); err != nil {
		return nil, err
	}

	createdAt := s.now()
	name, err := Name(description, createdAt)
	if err != nil {
		return nil, err
	}

	fileName := FileName(FileName(name, "tar"), "zst")
	if s.encryptionEnabled {
		fileName = FileName(fileName, "gpg")
	}

	w, err := s.store.Writer(ctx, fileName, false)
	if err != nil {
		return nil, err
	}
	abandon := func() { _ = s.store.Delete(ctx, fileName) }

	hasher := sha256.New()
	var sigWriter *pgpcrypto.SignatureWriter
	teeSides := []io.Writer{hasher}
	if s.signingEnabled {
		sigWriter, err = pgpcrypto.NewSigningContext(s.signingCert).Writer(createdAt)
		if err != nil {
			_ = w.Close()
			abandon()
			return nil, err
		}
		teeSides = append(teeSides, sigWriter)
	}

	layers := []writerchain.Layer{writerchain.Tee(teeSides...)}
	if s.encryptionEnabled {
		layers = append(layers, writerchain.Encrypt(pgpcrypto.NewEncryptionContext(s.encryptionCert), createdAt))
	}
	layers = append(layers, writerchain.Compress(s.compressionLevel))
	layers = append(layers, writerchain.Archive(s.archivePaths))

	pipeline, err := writerchain.New(layers...).Build(w)
	if err != nil {
		_ = w.Close()
		abandon()
		return nil, err
	}

	archiveSink := pipeline.Outer().(*writerchain.ArchiveSink)

	if err := copyTarEntries(archiveSink.TarWriter(), frontendTar); err != nil {
		pipeline.Abandon()
		_ = w.Close()
		abandon()
		return nil, apierr.Wrap(apierr.CodeCannotArchive, "copying frontend archive entries", err)
	}

	if err := archiveSink.AppendTrees(); err != nil {
		pipeline.Abandon()
		_ = w.Close()
		abandon()
		return nil, err
	}

	if err := pipeline.Finalize(); err != nil {
		abandon()
		return nil, err
	}

	result := &CreateResult{BackupID: fileName}

	digestName := FileName(fileName, "sha256")
	if err := uploadBytes(ctx, s.store, digestName, hasher.Sum(nil)); err != nil {
		abandon()
		return nil, apierr.Wrap(apierr.CodeIntegrityCheckFailed, "uploading digest", err)
	}
	result.DigestIDs = []string{digestName}

	if s.signingEnabled {
		sigBytes, err := sigWriter.Finalize()
		if err != nil {
			return result, err
		}
		sigName := FileName(fileName, "sig")
		if err := uploadBytes(ctx, s.store, sigName, sigBytes); err != nil {
			return result, err
		}
		result.SignatureIDs = []string{sigName}
	}

	return result, nil
}

func copyTarEntries(tw *tar.Writer, src io.Reader) error {
	if src == nil {
		return nil
	}
	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := io.Copy(tw, tr); err != nil {
			return err
		}
	}
}

func uploadBytes(ctx context.Context, store objectstore.Store, key string, data []byte) error {
	w, err := store.Writer(ctx, key, false)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// ListBackups implements spec.md §4.4's list_backups algorithm.
func (s *Service) ListBackups(ctx context.Context) ([]Metadata, error) {
	keys, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	checkKeys, err := s.store.ListAllAfter(ctx, keys[0])
	if err != nil {
		return nil, err
	}
	checks := make(map[string]bool, len(checkKeys))
	for _, k := range checkKeys {
		checks[k] = true
	}

	out := make([]Metadata, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, string(integrity.SuffixSig)) || strings.HasSuffix(key, string(integrity.SuffixSha256)) {
			continue
		}

		comps, err := Parse(key)
		if err != nil {
			continue
		}

		isSigned := checks[key+string(integrity.SuffixSig)]
		isEncrypted := strings.HasSuffix(key, ".gpg")

		out = append(out, Metadata{
			ID:            key,
			Description:   comps.Description,
			CreatedAt:     comps.CreatedAt,
			IsSigned:      isSigned,
			IsEncrypted:   isEncrypted,
			CanBeRestored: s.canBeRestored(isSigned, isEncrypted),
		})
	}
	return out, nil
}

func (s *Service) canBeRestored(isSigned, isEncrypted bool) bool {
	return (!s.signingMandatory || isSigned) && (!s.encryptionMandatory || isEncrypted)
}

// GetBackup implements spec.md §4.4's get_backup operation.
func (s *Service) GetBackup(ctx context.Context, id string) (*Metadata, error) {
	if _, err := s.store.Metadata(ctx, id); err != nil {
		return nil, err
	}

	comps, err := Parse(id)
	if err != nil {
		return nil, err
	}

	checkKeys, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	isSigned := false
	for _, k := range checkKeys {
		if k == id+string(integrity.SuffixSig) {
			isSigned = true
		}
	}
	isEncrypted := strings.HasSuffix(id, ".gpg")

	return &Metadata{
		ID:            id,
		Description:   comps.Description,
		CreatedAt:     comps.CreatedAt,
		IsSigned:      isSigned,
		IsEncrypted:   isEncrypted,
		CanBeRestored: s.canBeRestored(isSigned, isEncrypted),
	}, nil
}

// RestoreBackup implements spec.md §4.4's 7-step restore_backup algorithm.
func (s *Service) RestoreBackup(ctx context.Context, id, destination string) (*RestoreResult, error) {
	if err := s.lifecycle.RequireOperational(); err != nil {
		return nil, err
	}

	set, err := integrity.Discover(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if set.Empty() {
		return nil, apierr.New(apierr.CodeIntegrityCheckMissing, "no integrity checks found for backup "+id)
	}

	comps, err := Parse(id)
	if err != nil {
		return nil, err
	}

	reader, err := s.store.Reader(ctx, id)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	// The digest and signature were computed over the exact bytes written
	// to the store object (writerchain.Tee sits innermost, adjacent to the
	// store sink), so the fork for verification must read the raw object
	// before decryption, not the decrypted plaintext.
	verifier := integrity.NewVerifier(set, pgpcrypto.NewVerificationContext(s.signingCert), comps.CreatedAt, s.signingMandatory)
	forked := verifier.Reader(reader)

	var plain io.Reader = forked
	if strings.HasSuffix(id, ".gpg") {
		if s.decryptionContext == nil {
			return nil, apierr.New(apierr.CodeCannotDecrypt, "no decryption key material configured")
		}
		plain, err = s.decryptionContext.Reader(forked)
		if err != nil {
			return nil, err
		}
	}

	zr, err := zstd.NewReader(plain)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeCompressFailed, "opening zstd decoder", err)
	}
	defer zr.Close()

	restoredBytes, extractErr := extractTar(zr, destination)
	if extractErr != nil {
		_ = os.RemoveAll(destination)
		return nil, apierr.Wrap(apierr.CodeArchiveFailed, "extracting backup archive", extractErr)
	}

	// The tar reader stops at the end-of-archive marker; drain the rest so
	// the verifier has seen every byte of the stored object.
	if _, err := io.Copy(io.Discard, zr); err != nil {
		_ = os.RemoveAll(destination)
		return nil, apierr.Wrap(apierr.CodeArchiveFailed, "reading backup stream to its end", err)
	}

	if err := verifier.Outcome(); err != nil {
		_ = os.RemoveAll(destination)
		return nil, err
	}

	return &RestoreResult{RestoredBytes: restoredBytes}, nil
}

func extractTar(r io.Reader, destination string) (uint64, error) {
	if err := os.MkdirAll(destination, 0o700); err != nil {
		return 0, err
	}

	tr := tar.NewReader(r)
	var total uint64
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}

		target := filepath.Join(destination, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return total, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
				return total, err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return total, err
			}
			n, copyErr := io.Copy(f, tr)
			_ = f.Close()
			total += uint64(n)
			if copyErr != nil {
				return total, copyErr
			}
		}
	}
}

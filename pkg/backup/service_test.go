package backup

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sentryd/pkg/apierr"
	"github.com/cuemby/sentryd/pkg/config"
	"github.com/cuemby/sentryd/pkg/objectstore"
)

type alwaysOperational struct{}

func (alwaysOperational) RequireOperational() error { return nil }

type neverOperational struct{}

func (neverOperational) RequireOperational() error {
	return apierr.New(apierr.CodePreconditionFailed, "backend not running")
}

func newTestService(t *testing.T, lifecycle StateChecker) (*Service, objectstore.Store) {
	t.Helper()
	store, err := objectstore.NewFsStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		Compression: config.CompressionConfig{ZstdCompressionLevel: 3},
	}
	svc := NewService(cfg, store, lifecycle, nil, nil, nil)
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	return svc, store
}

func buildFrontendTar(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o600, Size: int64(len(content))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

// TestCreateBackupUnsignedUnencrypted matches spec.md §8 scenario 1.
func TestCreateBackupUnsignedUnencrypted(t *testing.T) {
	svc, store := newTestService(t, alwaysOperational{})
	ctx := context.Background()

	result, err := svc.CreateBackup(ctx, "daily", bytes.NewReader(nil))
	require.NoError(t, err)

	assert.Equal(t, "1700000000-daily.tar.zst", result.BackupID)
	assert.Equal(t, []string{"1700000000-daily.tar.zst.sha256"}, result.DigestIDs)
	assert.Empty(t, result.SignatureIDs)

	keys, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1700000000-daily.tar.zst", "1700000000-daily.tar.zst.sha256"}, keys)

	metas, err := svc.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.False(t, metas[0].IsSigned)
	assert.False(t, metas[0].IsEncrypted)
	assert.True(t, metas[0].CanBeRestored)
	assert.Equal(t, "daily", metas[0].Description)
}

func TestCreateBackupRequiresOperationalState(t *testing.T) {
	svc, _ := newTestService(t, neverOperational{})
	_, err := svc.CreateBackup(context.Background(), "daily", bytes.NewReader(nil))
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodePreconditionFailed))
}

func TestCreateBackupPacksFrontendAndConfiguredTrees(t *testing.T) {
	store, err := objectstore.NewFsStore(t.TempDir())
	require.NoError(t, err)

	localDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "config.lua"), []byte("setting = true"), 0o600))

	cfg := &config.Config{
		Compression: config.CompressionConfig{ZstdCompressionLevel: 3},
		Archiving: config.ArchivingConfig{
			Paths: []config.ArchivePath{{LocalPath: localDir, ArchivePath: "prosody-config"}},
		},
	}
	svc := NewService(cfg, store, alwaysOperational{}, nil, nil, nil)
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	frontend := buildFrontendTar(t, map[string]string{"hello.txt": "hi"})

	ctx := context.Background()
	_, err = svc.CreateBackup(ctx, "weekly", bytes.NewReader(frontend))
	require.NoError(t, err)

	destination := t.TempDir()
	restoreResult, err := svc.RestoreBackup(ctx, "1700000000-weekly.tar.zst", destination)
	require.NoError(t, err)
	assert.Greater(t, restoreResult.RestoredBytes, uint64(0))

	helloContents, err := os.ReadFile(filepath.Join(destination, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(helloContents))

	configContents, err := os.ReadFile(filepath.Join(destination, "prosody-config", "config.lua"))
	require.NoError(t, err)
	assert.Equal(t, "setting = true", string(configContents))
}

func TestRestoreBackupFailsOnTamperedDigest(t *testing.T) {
	svc, store := newTestService(t, alwaysOperational{})
	ctx := context.Background()

	frontend := buildFrontendTar(t, map[string]string{"hello.txt": "hi"})
	_, err := svc.CreateBackup(ctx, "daily", bytes.NewReader(frontend))
	require.NoError(t, err)

	// Flip a bit in the digest: scenario 3 of spec.md §8.
	r, err := store.Reader(ctx, "1700000000-daily.tar.zst.sha256")
	require.NoError(t, err)
	digest, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	digest[0] ^= 0xFF

	require.NoError(t, store.Delete(ctx, "1700000000-daily.tar.zst.sha256"))
	w, err := store.Writer(ctx, "1700000000-daily.tar.zst.sha256", false)
	require.NoError(t, err)
	_, err = w.Write(digest)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = svc.RestoreBackup(ctx, "1700000000-daily.tar.zst", t.TempDir())
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeIntegrityCheckFailed))
}

func TestRestoreBackupFailsWhenIntegrityCheckMissing(t *testing.T) {
	svc, store := newTestService(t, alwaysOperational{})
	ctx := context.Background()

	frontend := buildFrontendTar(t, map[string]string{"hello.txt": "hi"})
	_, err := svc.CreateBackup(ctx, "daily", bytes.NewReader(frontend))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "1700000000-daily.tar.zst.sha256"))

	metas, err := svc.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.True(t, metas[0].CanBeRestored)

	_, err = svc.RestoreBackup(ctx, "1700000000-daily.tar.zst", t.TempDir())
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeIntegrityCheckMissing))
}

func TestGetBackupTranslatesNotFound(t *testing.T) {
	svc, _ := newTestService(t, alwaysOperational{})
	_, err := svc.GetBackup(context.Background(), "1700000000-missing.tar.zst")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeNotFound))
}

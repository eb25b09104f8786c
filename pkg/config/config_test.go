package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentryd.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesStaticDefaults(t *testing.T) {
	path := writeConfig(t, `
[backups]
backend = "fs"
[backups.fs]
directory = "/var/lib/sentryd/backups"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint8(1), cfg.Archiving.Version)
	assert.Equal(t, int32(3), cfg.Compression.ZstdCompressionLevel)
	assert.Equal(t, "SHA-256", cfg.Hashing.Algorithm)
	assert.False(t, cfg.Signing.Enabled)
	assert.False(t, cfg.Encryption.Enabled)
}

func TestSigningPgpEnabledInheritsSigningEnabled(t *testing.T) {
	path := writeConfig(t, `
[signing]
enabled = true
[backups]
backend = "fs"
[backups.fs]
directory = "/tmp/backups"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Signing.Pgp)
	assert.True(t, cfg.Signing.Pgp.Enabled)
}

func TestMandatorySigningWithoutEnabledFailsPrecondition(t *testing.T) {
	path := writeConfig(t, `
[signing]
mandatory = true
[backups]
backend = "fs"
[backups.fs]
directory = "/tmp/backups"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestMandatorySigningWithPgpDisabledFailsPrecondition(t *testing.T) {
	path := writeConfig(t, `
[signing]
enabled = true
mandatory = true
pgp.enabled = false
pgp.key = "/keys/x.asc"
[backups]
backend = "fs"
[backups.fs]
directory = "/tmp/backups"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestUnknownBackendRejected(t *testing.T) {
	path := writeConfig(t, `
[backups]
backend = "azure"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverlayOverridesTomlValue(t *testing.T) {
	path := writeConfig(t, `
[backups]
backend = "fs"
[backups.fs]
directory = "/tmp/backups"
`)
	t.Setenv("SENTRYD__BACKUPS__BACKEND", "s3")
	t.Setenv("SENTRYD__BACKUPS__S3__BUCKET", "sentryd-backups")
	t.Setenv("SENTRYD__BACKUPS__S3__REGION", "us-east-1")

	// Load reads os.Environ() directly, so the t.Setenv values above
	// override the file's fs backend with the s3 settings.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.Backups.Backend)
	require.NotNil(t, cfg.Backups.S3)
	assert.Equal(t, "sentryd-backups", cfg.Backups.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.Backups.S3.Region)
}

func TestParseDurationHours(t *testing.T) {
	d, err := ParseDuration("PT3H")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour, d.Std())
}

func TestParseDurationWeeks(t *testing.T) {
	d, err := ParseDuration("P1W")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d.Std())
}

func TestParseDurationMinutes(t *testing.T) {
	d, err := ParseDuration("PT15M")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d.Std())
}

func TestParseDurationRejectsMissingP(t *testing.T) {
	_, err := ParseDuration("3H")
	require.Error(t, err)
}

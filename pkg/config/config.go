package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// EnvPrefix is the prefix every environment-variable override must carry.
// The remainder of the variable name, with __ as a path separator, names
// the dotted TOML key it overrides (SENTRYD__BACKUPS__BACKEND -> backups.backend).
const EnvPrefix = "SENTRYD__"

// Config is sentryd's full daemon configuration.
type Config struct {
	Archiving   ArchivingConfig   `toml:"archiving"`
	Compression CompressionConfig `toml:"compression"`
	Hashing     HashingConfig     `toml:"hashing"`
	Signing     SigningConfig     `toml:"signing"`
	Encryption  EncryptionConfig  `toml:"encryption"`
	Backups     BackupsConfig     `toml:"backups"`
	Auth        AuthConfig        `toml:"auth"`
	Server      ServerConfig      `toml:"server"`
	Prosody     ProsodyConfig     `toml:"prosody"`
	Lifecycle   LifecycleConfig   `toml:"lifecycle"`
	AdminShell  AdminShellConfig  `toml:"admin_shell"`
}

// AdminShellConfig names the prosodyctl shell child process the admin
// shell proxy (C7) speaks to over stdin/stdout.
type AdminShellConfig struct {
	Binary         string   `toml:"binary"`
	Args           []string `toml:"args"`
	DefaultTimeout Duration `toml:"default_timeout"`
	LongTimeout    Duration `toml:"long_timeout"`
	Strict         bool     `toml:"strict"`
}

// LifecycleConfig names the durable transition log the lifecycle
// supervisor's single-voter raft group keeps its state in.
type LifecycleConfig struct {
	NodeID   string `toml:"node_id"`
	BindAddr string `toml:"bind_addr"`
	DataDir  string `toml:"data_dir"`
}

// ProsodyConfig names how the backend XMPP process is launched, supervised
// and reached for readiness checks and admin-shell commands.
type ProsodyConfig struct {
	Binary        string   `toml:"binary"`
	ConfigFile    string   `toml:"config_file"`
	Args          []string `toml:"args"`
	AdminSocket   string   `toml:"admin_socket"`
	ReadyAddress  string   `toml:"ready_address"`
	ReadyTimeout  Duration `toml:"ready_timeout"`
	StopTimeout   Duration `toml:"stop_timeout"`
}

// ArchivingConfig controls the tar layer of the writer chain.
type ArchivingConfig struct {
	Version uint8          `toml:"version"`
	Paths   []ArchivePath  `toml:"paths"`
}

// ArchivePath maps a local filesystem path to its name inside the archive.
type ArchivePath struct {
	LocalPath   string `toml:"local_path"`
	ArchivePath string `toml:"archive_path"`
}

// CompressionConfig controls the zstd layer of the writer chain.
type CompressionConfig struct {
	ZstdCompressionLevel int32 `toml:"zstd_compression_level"`
}

// HashingConfig names the algorithm used for the .sha256 integrity check.
type HashingConfig struct {
	Algorithm string `toml:"algorithm"`
}

// SigningConfig controls whether and how new backups are signed.
type SigningConfig struct {
	Enabled   bool             `toml:"enabled"`
	Mandatory bool             `toml:"mandatory"`
	Pgp       *SigningPgpConfig `toml:"pgp"`
}

// SigningPgpConfig names the PGP certificate used to produce detached
// signatures, plus any additional trusted keys used only for verification.
type SigningPgpConfig struct {
	Enabled            bool     `toml:"enabled"`
	Key                string   `toml:"key"`
	AdditionalTrustedKeys []string `toml:"additional_trusted_keys"`
}

// EncryptionConfig controls whether and how new backups are encrypted.
type EncryptionConfig struct {
	Enabled   bool                 `toml:"enabled"`
	Mandatory bool                 `toml:"mandatory"`
	Mode      string               `toml:"mode"`
	Pgp       *EncryptionPgpConfig `toml:"pgp"`
}

// EncryptionPgpConfig names the PGP certificate(s) used to encrypt new
// backups and, optionally, additional keys used only to decrypt older ones.
type EncryptionPgpConfig struct {
	Key                     string   `toml:"key"`
	AdditionalEncryptionKeys []string `toml:"additional_encryption_keys"`
	AdditionalDecryptionKeys []string `toml:"additional_decryption_keys"`
}

// BackupsConfig selects the object storage backend and its settings.
type BackupsConfig struct {
	Backend string           `toml:"backend"`
	Fs      *FsBackendConfig `toml:"fs"`
	S3      *S3BackendConfig `toml:"s3"`
}

// FsBackendConfig configures the filesystem object store provider.
type FsBackendConfig struct {
	Directory string `toml:"directory"`
}

// S3BackendConfig configures the S3-compatible object store provider.
type S3BackendConfig struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	ForcePathStyle  bool   `toml:"force_path_style"`
}

// AuthConfig controls the admin API's bearer-token cache.
type AuthConfig struct {
	TokenTTL               Duration `toml:"token_ttl"`
	OAuth2RegistrationKey  string   `toml:"oauth2_registration_key"`
}

// ServerConfig names the XMPP domain and HTTP listener sentryd serves.
type ServerConfig struct {
	Domain        string `toml:"domain"`
	LocalHostname string `toml:"local_hostname"`
	HTTPPort      uint16 `toml:"http_port"`
}

// Default returns the static defaults applied before a config file and the
// environment overlay are merged in, matching the zero-config TOML baseline
// every section below documents.
func Default() *Config {
	return &Config{
		Archiving: ArchivingConfig{
			Version: 1,
			Paths: []ArchivePath{
				{LocalPath: "/var/lib/prosody", ArchivePath: "prosody-data"},
				{LocalPath: "/etc/prosody", ArchivePath: "prosody-config"},
			},
		},
		Compression: CompressionConfig{ZstdCompressionLevel: 3},
		Hashing:     HashingConfig{Algorithm: "SHA-256"},
		Signing:     SigningConfig{Enabled: false, Mandatory: false},
		Encryption:  EncryptionConfig{Enabled: false, Mandatory: false, Mode: "pgp"},
		Backups:     BackupsConfig{Backend: "fs", Fs: &FsBackendConfig{Directory: "/var/lib/sentryd/backups"}},
		Server:      ServerConfig{HTTPPort: 5280},
		Prosody: ProsodyConfig{
			Binary:       "/usr/bin/prosody",
			ConfigFile:   "/etc/prosody/prosody.cfg.lua",
			AdminSocket:  "/var/run/prosody/prosody.sock",
			ReadyAddress: "127.0.0.1:5347",
			ReadyTimeout: Duration(30 * time.Second),
			StopTimeout:  Duration(10 * time.Second),
		},
		Lifecycle: LifecycleConfig{
			NodeID:   "sentryd-1",
			BindAddr: "127.0.0.1:5281",
			DataDir:  "/var/lib/sentryd/lifecycle",
		},
		AdminShell: AdminShellConfig{
			Binary:         "prosodyctl",
			Args:           []string{"shell", "--quiet"},
			DefaultTimeout: Duration(200 * time.Millisecond),
			LongTimeout:    Duration(10 * time.Second),
		},
	}
}

// Load reads path as TOML on top of Default, applies the SENTRYD__ environment
// overlay, fills dynamic defaults (signing.pgp.enabled inherits signing.enabled
// when the [signing.pgp] section is absent) and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apierr.Wrap(apierr.CodeConfigError, "reading config file", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, apierr.Wrap(apierr.CodeConfigError, "parsing config file", err)
		}
	}

	if err := applyEnvOverlay(cfg, os.Environ()); err != nil {
		return nil, err
	}

	applyDynamicDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDynamicDefaults resolves the one config value the TOML schema leaves
// ambiguous: signing.pgp.enabled. When the [signing.pgp] section is absent
// and signing.enabled is true, an enabled pgp section is filled in. When the
// section is present, its enabled value is used as decoded, so a section
// that omits enabled leaves it false whatever signing.enabled says.
func applyDynamicDefaults(cfg *Config) {
	if cfg.Signing.Enabled && cfg.Signing.Pgp == nil {
		cfg.Signing.Pgp = &SigningPgpConfig{Enabled: true}
	}
}

// Validate enforces the bootstrap preconditions named in the admin surface's
// wire documentation: mandatory signing or encryption requires a usable PGP
// method, never a silently-false default.
func Validate(cfg *Config) error {
	if cfg.Signing.Mandatory {
		if !cfg.Signing.Enabled {
			return apierr.New(apierr.CodePreconditionFailed, "signing.mandatory requires signing.enabled")
		}
		if cfg.Signing.Pgp == nil || !cfg.Signing.Pgp.Enabled {
			return apierr.New(apierr.CodePreconditionFailed, "signing is mandatory but no enabled signing method is configured")
		}
	}

	if cfg.Encryption.Mandatory {
		if !cfg.Encryption.Enabled {
			return apierr.New(apierr.CodePreconditionFailed, "encryption.mandatory requires encryption.enabled")
		}
		if cfg.Encryption.Pgp == nil {
			return apierr.New(apierr.CodePreconditionFailed, "encryption is mandatory but no encryption key is configured")
		}
	}

	switch cfg.Backups.Backend {
	case "fs":
		if cfg.Backups.Fs == nil {
			return apierr.New(apierr.CodeConfigError, "backups.backend = \"fs\" requires a [backups.fs] section")
		}
	case "s3":
		if cfg.Backups.S3 == nil {
			return apierr.New(apierr.CodeConfigError, "backups.backend = \"s3\" requires a [backups.s3] section")
		}
	default:
		return apierr.New(apierr.CodeConfigError, fmt.Sprintf("unknown backups.backend %q", cfg.Backups.Backend))
	}

	if cfg.Prosody.Binary == "" {
		return apierr.New(apierr.CodeConfigError, "prosody.binary must not be empty")
	}
	if cfg.Lifecycle.NodeID == "" {
		return apierr.New(apierr.CodeConfigError, "lifecycle.node_id must not be empty")
	}
	if cfg.Lifecycle.DataDir == "" {
		return apierr.New(apierr.CodeConfigError, "lifecycle.data_dir must not be empty")
	}
	if _, _, err := net.SplitHostPort(cfg.Lifecycle.BindAddr); err != nil {
		return apierr.Wrap(apierr.CodeConfigError, "lifecycle.bind_addr is not a valid host:port", err)
	}
	if cfg.AdminShell.Binary == "" {
		return apierr.New(apierr.CodeConfigError, "admin_shell.binary must not be empty")
	}

	return nil
}

// applyEnvOverlay walks environ for SENTRYD__-prefixed variables and sets the
// corresponding dotted TOML field on cfg via reflection-free, explicit
// path resolution.
func applyEnvOverlay(cfg *Config, environ []string) error {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		path := strings.Split(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "__")
		if err := setByPath(cfg, path, value); err != nil {
			return apierr.Wrap(apierr.CodeConfigError, fmt.Sprintf("applying %s", name), err)
		}
	}
	return nil
}

// setByPath assigns value to the field named by path. Only the concrete set
// of paths sentryd actually exposes is supported; unknown paths are rejected
// rather than silently ignored, so a typo'd override fails loudly at boot.
func setByPath(cfg *Config, path []string, value string) error {
	if len(path) == 0 {
		return fmt.Errorf("empty override path")
	}

	join := strings.Join(path, ".")
	switch join {
	case "archiving.version":
		v, err := parseUint8(value)
		if err != nil {
			return err
		}
		cfg.Archiving.Version = v
	case "compression.zstd_compression_level":
		v, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Compression.ZstdCompressionLevel = int32(v)
	case "hashing.algorithm":
		cfg.Hashing.Algorithm = value
	case "signing.enabled":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		cfg.Signing.Enabled = v
	case "signing.mandatory":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		cfg.Signing.Mandatory = v
	case "signing.pgp.enabled":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		ensureSigningPgp(cfg).Enabled = v
	case "signing.pgp.key":
		ensureSigningPgp(cfg).Key = value
	case "encryption.enabled":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		cfg.Encryption.Enabled = v
	case "encryption.mandatory":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		cfg.Encryption.Mandatory = v
	case "encryption.mode":
		cfg.Encryption.Mode = value
	case "encryption.pgp.key":
		ensureEncryptionPgp(cfg).Key = value
	case "backups.backend":
		cfg.Backups.Backend = value
	case "backups.fs.directory":
		if cfg.Backups.Fs == nil {
			cfg.Backups.Fs = &FsBackendConfig{}
		}
		cfg.Backups.Fs.Directory = value
	case "backups.s3.bucket":
		ensureS3(cfg).Bucket = value
	case "backups.s3.region":
		ensureS3(cfg).Region = value
	case "backups.s3.endpoint":
		ensureS3(cfg).Endpoint = value
	case "backups.s3.access_key_id":
		ensureS3(cfg).AccessKeyID = value
	case "backups.s3.secret_access_key":
		ensureS3(cfg).SecretAccessKey = value
	case "auth.token_ttl":
		d, err := ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Auth.TokenTTL = d
	case "auth.oauth2_registration_key":
		cfg.Auth.OAuth2RegistrationKey = value
	case "server.domain":
		cfg.Server.Domain = value
	case "server.local_hostname":
		cfg.Server.LocalHostname = value
	case "server.http_port":
		v, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return err
		}
		cfg.Server.HTTPPort = uint16(v)
	case "prosody.binary":
		cfg.Prosody.Binary = value
	case "prosody.config_file":
		cfg.Prosody.ConfigFile = value
	case "prosody.admin_socket":
		cfg.Prosody.AdminSocket = value
	case "prosody.ready_address":
		cfg.Prosody.ReadyAddress = value
	case "prosody.ready_timeout":
		d, err := ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Prosody.ReadyTimeout = d
	case "prosody.stop_timeout":
		d, err := ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Prosody.StopTimeout = d
	case "lifecycle.node_id":
		cfg.Lifecycle.NodeID = value
	case "lifecycle.bind_addr":
		cfg.Lifecycle.BindAddr = value
	case "lifecycle.data_dir":
		cfg.Lifecycle.DataDir = value
	case "admin_shell.binary":
		cfg.AdminShell.Binary = value
	case "admin_shell.default_timeout":
		d, err := ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.AdminShell.DefaultTimeout = d
	case "admin_shell.long_timeout":
		d, err := ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.AdminShell.LongTimeout = d
	case "admin_shell.strict":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("parsing admin_shell.strict: %w", err)
		}
		cfg.AdminShell.Strict = v
	default:
		return fmt.Errorf("unrecognized override path %q", join)
	}
	return nil
}

func ensureSigningPgp(cfg *Config) *SigningPgpConfig {
	if cfg.Signing.Pgp == nil {
		cfg.Signing.Pgp = &SigningPgpConfig{}
	}
	return cfg.Signing.Pgp
}

func ensureEncryptionPgp(cfg *Config) *EncryptionPgpConfig {
	if cfg.Encryption.Pgp == nil {
		cfg.Encryption.Pgp = &EncryptionPgpConfig{}
	}
	return cfg.Encryption.Pgp
}

func ensureS3(cfg *Config) *S3BackendConfig {
	if cfg.Backups.S3 == nil {
		cfg.Backups.S3 = &S3BackendConfig{}
	}
	return cfg.Backups.S3
}

func parseUint8(value string) (uint8, error) {
	v, err := strconv.ParseUint(value, 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}

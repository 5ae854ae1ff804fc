package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for caprev.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Blob       BlobConfig       `toml:"blob"`
	Store      StoreConfig      `toml:"store"`
	Encryption EncryptionConfig `toml:"encryption"`
	Thumbnail  ThumbnailConfig  `toml:"thumbnail"`
	Server     ServerConfig     `toml:"server"`
	Export     ExportConfig     `toml:"export"`
	Log        LogConfig        `toml:"log"`
}

// BlobConfig selects the blob store backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BlobConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", "s3" or "minio"

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`   // optional, for S3-compatible services
	S3AccessKey string `toml:"s3_access_key,omitempty"` // empty uses the default credential chain
	S3SecretKey string `toml:"s3_secret_key,omitempty"`

	// MinIO-specific fields (only used when Type == "minio")
	MinioEndpoint  string `toml:"minio_endpoint,omitempty"`
	MinioAccessKey string `toml:"minio_access_key,omitempty"`
	MinioSecretKey string `toml:"minio_secret_key,omitempty"`
	MinioBucket    string `toml:"minio_bucket,omitempty"`
	MinioRegion    string `toml:"minio_region,omitempty"`
	MinioUseSSL    bool   `toml:"minio_use_ssl,omitempty"`
}

// StoreConfig locates the flat-file asset and folder records.
type StoreConfig struct {
	DataDir string `toml:"data_dir"`
}

// EncryptionConfig enables age encryption of blobs at rest. The private key is
// stored encrypted with a passphrase and unlocked at startup.
type EncryptionConfig struct {
	Enabled        bool   `toml:"enabled"`
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// ThumbnailConfig controls ffmpeg thumbnail extraction.
type ThumbnailConfig struct {
	Enabled    bool   `toml:"enabled"`
	FFmpegPath string `toml:"ffmpeg_path"`
	Offset     string `toml:"offset"`  // seek position, e.g. "00:00:01"
	Width      int    `toml:"width"`   // output width in pixels; height keeps the aspect ratio
	Workers    int    `toml:"workers"` // concurrent ffmpeg processes
	Timeout    string `toml:"timeout"` // per-video limit, e.g. "30s"
}

// ServerConfig holds HTTP and admin session settings.
type ServerConfig struct {
	Port              int    `toml:"port"`
	Env               string `toml:"env"` // "production" marks session cookies Secure
	AdminUsername     string `toml:"admin_username"`
	AdminPasswordHash string `toml:"admin_password_hash"` // bcrypt
	SessionSecret     string `toml:"session_secret"`
	SessionTTL        string `toml:"session_ttl"`
	MaxUploadMB       int64  `toml:"max_upload_mb"`
	// Per-address request limits. A zero count disables the limit.
	RateLimitRequests   int    `toml:"rate_limit_requests"`
	RateLimitWindow     string `toml:"rate_limit_window"`
	UploadLimitRequests int    `toml:"upload_limit_requests"`
	UploadLimitWindow   string `toml:"upload_limit_window"`
}

// IsProduction reports whether the server runs in production mode.
func (s ServerConfig) IsProduction() bool {
	return s.Env == "production"
}

// SessionDuration parses SessionTTL, defaulting to 24h.
func (s ServerConfig) SessionDuration() (time.Duration, error) {
	if s.SessionTTL == "" {
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid session_ttl %q: %w", s.SessionTTL, err)
	}
	return d, nil
}

// LimitWindows parses the request and upload limit windows, defaulting to
// 15m and 1h.
func (s ServerConfig) LimitWindows() (requests, uploads time.Duration, err error) {
	if requests, err = parseWindow("rate_limit_window", s.RateLimitWindow, 15*time.Minute); err != nil {
		return 0, 0, err
	}
	if uploads, err = parseWindow("upload_limit_window", s.UploadLimitWindow, time.Hour); err != nil {
		return 0, 0, err
	}
	return requests, uploads, nil
}

func parseWindow(key, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, value)
	}
	return d, nil
}

// ExportConfig tunes caption export.
type ExportConfig struct {
	SubtitleFontColor string `toml:"subtitle_font_color"` // empty disables the <font> wrapper
}

// LogConfig controls log file rotation.
type LogConfig struct {
	MaxSizeMB  int  `toml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days"`
	Compress   bool `toml:"compress"`
	Debug      bool `toml:"debug"` // include debug-level records
}

// NewConfig creates a Config rooted at baseDir with filesystem storage and
// default thumbnail, server and log settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Blob: BlobConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "blobs"),
		},
		Store: StoreConfig{DataDir: filepath.Join(baseDir, "data")},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "caprev.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "caprev.key"),
		},
		Thumbnail: ThumbnailConfig{
			Enabled:    true,
			FFmpegPath: "ffmpeg",
			Offset:     "00:00:01",
			Width:      320,
			Workers:    2,
			Timeout:    "30s",
		},
		Server: ServerConfig{
			Port:          3000,
			Env:           "development",
			AdminUsername: "admin",
			SessionTTL:    "24h",
			MaxUploadMB:   2048,

			RateLimitRequests:   100,
			RateLimitWindow:     "15m",
			UploadLimitRequests: 50,
			UploadLimitWindow:   "1h",
		},
		Log: LogConfig{MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 30},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path with owner-only
// permissions, since it may hold the session secret.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
